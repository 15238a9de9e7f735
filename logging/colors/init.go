package colors

// init will ensure that ANSI coloring is enabled on Windows and Unix systems. ANSI coloring is supported by default on
// Unix systems while Windows needs a console mode query.
func init() {
	EnableColor()
}
