package notation

import (
	"errors"
	"fmt"
)

var (
	// ErrParse matches any ParseError via errors.Is.
	ErrParse = errors.New("parse error")
	// ErrPrint matches any PrintError via errors.Is.
	ErrPrint = errors.New("print error")
)

// Position locates a parse failure in the source.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	if p.Filename == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// ParseError reports malformed source text.
type ParseError struct {
	Message  string
	Position Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Position, e.Message)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// PrintError reports a value the notation cannot express.
type PrintError struct {
	Path    string
	Message string
}

func (e *PrintError) Error() string {
	return fmt.Sprintf("print %s: %s", e.Path, e.Message)
}

func (e *PrintError) Is(target error) bool {
	return target == ErrPrint
}
