package domain

// Invocation is a parsed chat command. It only lives for the duration of a dispatch.
type Invocation struct {
	Issuer Viewer
	Name   string
	Args   []string
	// Rest is the raw text after the command name, used as the free-text argument.
	Rest string
	Raw  string
	Seq  uint64
}

// Arg returns the i-th argument or an empty string.
func (i Invocation) Arg(n int) string {
	if n < 0 || n >= len(i.Args) {
		return ""
	}
	return i.Args[n]
}
