package rules

import (
	"errors"
	"fmt"
)

// Rule document errors.
var (
	ErrParse              = errors.New("invalid rule document")
	ErrNoID               = errors.New("rule has no id")
	ErrNoChecks           = errors.New("rule has no checks")
	ErrDuplicateCheckName = errors.New("rule has multiple checks with the same name")
)

// Check errors.
var (
	ErrNoCheckName          = errors.New("check has no name")
	ErrNoPattern            = errors.New("check has no pattern")
	ErrPattern              = errors.New("invalid pattern")
	ErrInvalidQueryVariable = errors.New("regex constrains a variable the pattern does not bind")
)

// Regex constraint errors.
var (
	ErrInvalidFormat = errors.New("regex constraint must have the form var=regex")
	ErrInvalidRegex  = errors.New("invalid regex")
)

// RegexError reports a malformed "var=regex" entry.
type RegexError struct {
	Entry string
	Err   error
}

func (e *RegexError) Error() string {
	return fmt.Sprintf("regex constraint %q: %v", e.Entry, e.Err)
}

func (e *RegexError) Unwrap() error { return e.Err }

// PatternError wraps a compile failure reported by the structural engine.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPattern, e.Err)
}

func (e *PatternError) Unwrap() []error { return []error{ErrPattern, e.Err} }

// QueryVariableError names a regex-constrained variable that the pattern
// never binds.
type QueryVariableError struct {
	Name string
}

func (e *QueryVariableError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidQueryVariable, e.Name)
}

func (e *QueryVariableError) Unwrap() error { return ErrInvalidQueryVariable }

// CheckError attributes an error to a named check of a rule.
type CheckError struct {
	Check string
	Err   error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("check %q: %v", e.Check, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// FileError attributes an error to the rule file it came from.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
