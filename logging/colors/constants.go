package colors

// Color is an ANSI SGR code.
type Color int

// ANSI codes taken from zerolog's console writer.
// Source: https://github.com/rs/zerolog/blob/4fff5db29c3403bc26dee9895e12a108aacc0203/console.go
const (
	// BLACK is the ANSI code for black
	BLACK Color = iota + 30
	// RED is the ANSI code for red
	RED
	// GREEN is the ANSI code for green
	GREEN
	// YELLOW is the ANSI code for yellow
	YELLOW
	// BLUE is the ANSI code for blue
	BLUE
	// MAGENTA is the ANSI code for magenta
	MAGENTA
	// CYAN is the ANSI code for cyan
	CYAN
	// WHITE is the ANSI code for white
	WHITE
	// BOLD is the ANSI code for bold text
	BOLD = 1
)

// Glyphs used for console output.
const (
	// LEFT_ARROW is the unicode string for a left arrow glyph
	LEFT_ARROW = "⇾"
	// CHECK_MARK is the unicode string for a check mark glyph
	CHECK_MARK = "✔"
	// CROSS_MARK is the unicode string for a cross mark glyph
	CROSS_MARK = "✘"
)
