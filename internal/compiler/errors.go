package compiler

import (
	"errors"
	"fmt"
)

// ConfigError reports a configuration the compiler cannot start with.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config %s: %v", e.Field, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// ResolutionError reports a local import that does not resolve to a file. It
// aborts the pass it occurs in.
type ResolutionError struct {
	File      string
	Specifier string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s attempted to import %s, but it doesn't exist", e.File, e.Specifier)
}

// GenerationError reports a failure of the generator for one unit.
type GenerationError struct {
	File string
	Err  error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generating %s: %v", e.File, e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// IsConfig reports whether err (or any error in its chain) is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsResolution reports whether err (or any error in its chain) is a
// ResolutionError.
func IsResolution(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// IsGeneration reports whether err (or any error in its chain) is a
// GenerationError.
func IsGeneration(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

func configErrorf(field, format string, a ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, a...)}
}
