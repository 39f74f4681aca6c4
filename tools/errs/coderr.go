package errs

import (
	"errors"
	"fmt"
)

// CodeError is an error carrying a stable machine-readable code alongside a
// human-readable message. The code is what clients key on; the message is for
// people. Detail never crosses the wire.
type CodeError struct {
	Code   string `json:"code"`
	Msg    string `json:"message"`
	Detail string `json:"-"`
}

func New(code, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	if e.Detail == "" {
		return e.Code + ": " + e.Msg
	}
	return e.Code + ": " + e.Msg + " (" + e.Detail + ")"
}

// WithDetail returns a copy carrying extra context for logs. The original is
// left untouched so the predefined errors stay comparable.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) WrapMsg(format string, args ...any) *CodeError {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

// Is matches on code so WithDetail copies still compare equal to their base
// error via errors.Is.
func (e *CodeError) Is(target error) bool {
	var ce *CodeError
	if !errors.As(target, &ce) {
		return false
	}
	return e.Code == ce.Code
}

// Code extracts the machine code from err, or returns fallback when err is not
// a CodeError.
func Code(err error, fallback string) string {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return fallback
}
