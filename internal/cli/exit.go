package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/RigiResearch/middleware-sub001/pkg/notation"
	"github.com/RigiResearch/middleware-sub001/pkg/spec"
	"github.com/RigiResearch/middleware-sub001/pkg/state"
	"github.com/RigiResearch/middleware-sub001/pkg/templates"
)

// Exit codes follow sysexits.h.
const (
	ExitFailure   = 1
	ExitDataError = 65
	ExitNoInput   = 66
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Classify wraps err with the exit code matching its cause. Malformed
// documents and duplicates are data errors; missing files, templates and
// state are missing input.
func Classify(err error) *ExitError {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	switch {
	case errors.Is(err, notation.ErrParse),
		errors.Is(err, spec.ErrDuplicateResource),
		errors.Is(err, spec.ErrDuplicateAttribute),
		errors.Is(err, templates.ErrDigestMismatch()):
		return &ExitError{Code: ExitDataError, Err: err}
	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, templates.ErrTemplateNotFound()),
		errors.Is(err, state.ErrNotFound()):
		return &ExitError{Code: ExitNoInput, Err: err}
	default:
		return &ExitError{Code: ExitFailure, Err: err}
	}
}
