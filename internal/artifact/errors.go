package artifact

// InvalidInputError reports arguments rejected by the input schema. The
// wrapped error is the schema engine's structured validation error, so
// callers can reach the full issue list with errors.As.
type InvalidInputError struct {
	Err error
}

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Err.Error() }
func (e *InvalidInputError) Unwrap() error { return e.Err }

// InvalidOutputError reports a result rejected by the output schema.
type InvalidOutputError struct {
	Err error
}

func (e *InvalidOutputError) Error() string { return "invalid output: " + e.Err.Error() }
func (e *InvalidOutputError) Unwrap() error { return e.Err }

// ExecutionError reports a failure inside the invoked function, including
// panics and timeouts surfaced by the sandbox.
type ExecutionError struct {
	Name string
	Err  error
}

func (e *ExecutionError) Error() string {
	return "execution of " + e.Name + " failed: " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }
