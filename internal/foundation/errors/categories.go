package errors

// ErrorCategory decides the exit code a failure maps to.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound is a required input or artifact that is absent.
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryGit        ErrorCategory = "git"
	// CategoryBuild covers the external docs command: non-zero exit, missing
	// binary, timeout.
	CategoryBuild    ErrorCategory = "build"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity separates failures that end the run from ones a caller may
// log and move past (a failed watch rerun, for example).
type ErrorSeverity string

const (
	SeverityFatal ErrorSeverity = "fatal"
	SeverityError ErrorSeverity = "error"
)

// ErrorContext carries structured fields shown in verbose output and logs.
type ErrorContext map[string]any

// Set adds or updates a value, allocating the map on first use.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get returns the value stored under key.
func (c ErrorContext) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}
