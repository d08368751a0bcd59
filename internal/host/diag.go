package host

// Diagnostic is a decoded error report emitted while compiling, opening or
// running a program.
type Diagnostic struct {
	Program  string `json:"program,omitempty"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// DiagHandler receives diagnostics. It may be called from any goroutine.
type DiagHandler func(Diagnostic)
