package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrEmailExists  = errors.New("user with given email exists")
)

// invalidErr carries a client facing message and matches ErrInvalid.
type invalidErr struct {
	msg string
}

func (e *invalidErr) Error() string {
	return e.msg
}

func (e *invalidErr) Unwrap() error {
	return ErrInvalid
}

func Invalid(msg string) error {
	return &invalidErr{msg: msg}
}

// Message returns the client facing text of an Invalid error, or "" if err
// carries none.
func Message(err error) string {
	var ie *invalidErr
	if errors.As(err, &ie) {
		return ie.msg
	}
	return ""
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}
