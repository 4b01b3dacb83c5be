package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Maximum width of the transcript, 0 for the terminal width
	MaxWidth    uint
	EnableMouse bool
	// Show the key help below the status bar from the start
	ShowHelp bool

	// Engine and model names for the status bar
	Engine string
	Model  string

	// For debugging the UI
	HighlightColor string `env:"HANDGUIDE_HIGHLIGHT_COLOR" envDefault:"226"`
	AltScreen      bool   `env:"HANDGUIDE_ALT_SCREEN"      envDefault:"true"`
}
