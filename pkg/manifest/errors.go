package manifest

// NotFoundError indicates the manifest file does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "package.json not found: " + e.Path
}

// ParseError indicates the manifest exists but is not a valid manifest document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
