package cmd

// DefaultHistoryLimit describes how many runs the history command lists when --limit is not provided.
const DefaultHistoryLimit = 10

// SchemaFlagDescription describes the --schema flag shared by commands that accept an interface description.
const SchemaFlagDescription = "path to the contract interface description (JSON or YAML)"
