package types

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	// ErrConfiguration marks errors that must abort a run before execution starts.
	ErrConfiguration = errors.New("configuration error")

	ErrTimeout = errors.New("timeout")
	ErrType    = errors.New("type mismatch")
	ErrKey     = errors.New("missing key")
)

// SourceLocation points at the statement that produced a failure.
type SourceLocation struct {
	File      string
	Line      int
	Statement string
}

func (l SourceLocation) String() string {
	if l.File == "" {
		return ""
	}
	loc := fmt.Sprintf("%s:%d", filepath.Base(l.File), l.Line)
	if l.Statement != "" {
		loc += ": " + l.Statement
	}
	return loc
}

// Locatable is implemented by failures that know where they were raised.
type Locatable interface {
	Location() SourceLocation
}

// AssertionError is returned by Assert and Assertf when a check does not hold.
type AssertionError struct {
	Message string
	Loc     SourceLocation
}

func (e *AssertionError) Error() string {
	if e.Message == "" {
		return "assertion failed"
	}
	return "assertion failed: " + e.Message
}

func (e *AssertionError) Location() SourceLocation { return e.Loc }

// TypeError reports a value of an unexpected type.
type TypeError struct {
	Expected string
	Got      string
	Loc      SourceLocation
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error: expected %s, got %s", e.Expected, e.Got)
}

func (e *TypeError) Location() SourceLocation { return e.Loc }

func (e *TypeError) Is(target error) bool { return target == ErrType }

// KeyError reports a lookup of a key that is not present.
type KeyError struct {
	Key string
	Loc SourceLocation
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key error: %q not found", e.Key)
}

func (e *KeyError) Location() SourceLocation { return e.Loc }

func (e *KeyError) Is(target error) bool { return target == ErrKey }

// Assert returns an AssertionError pointing at the caller when cond is false.
func Assert(cond bool, msg string) error {
	if cond {
		return nil
	}
	return &AssertionError{Message: msg, Loc: CallerLocation(1)}
}

func Assertf(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return &AssertionError{Message: fmt.Sprintf(format, args...), Loc: CallerLocation(1)}
}

// NewTypeError captures the caller's location alongside the mismatch.
func NewTypeError(expected, got any) error {
	return &TypeError{
		Expected: fmt.Sprintf("%T", expected),
		Got:      fmt.Sprintf("%T", got),
		Loc:      CallerLocation(1),
	}
}

func NewKeyError(key string) error {
	return &KeyError{Key: key, Loc: CallerLocation(1)}
}

// CallerLocation resolves the location skip frames above its caller and,
// when the source file is readable, the statement text on that line.
func CallerLocation(skip int) SourceLocation {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return SourceLocation{}
	}
	return SourceLocation{File: file, Line: line, Statement: readSourceLine(file, line)}
}

func readSourceLine(file string, line int) string {
	f, err := os.Open(file)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		if n == line {
			return strings.TrimSpace(scanner.Text())
		}
	}
	return ""
}
