// Package errors provides the classified errors docmake returns from every
// stage. The CLI maps a category to an exit code and prints the message with
// its cause, adding category, severity and context fields in verbose mode.
//
//	err := errors.WrapError(cause, errors.CategoryNotFound, "version file does not exist").
//		Fatal().
//		WithContext("path", versionFile).
//		Build()
package errors
