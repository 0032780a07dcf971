package interfaces

// ParseOptions customises Markdown formatting. Names stay readable so they
// can be filled from configuration files and CLI flags.
type ParseOptions struct {
	Extensions []string
	HardWraps  bool
}
