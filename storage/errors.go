package storage

import (
	"fmt"
)

// Failure surfaced from a piece store. A piece that can't be persisted is treated as not
// downloaded.
type Error struct {
	Op    string
	Piece int
	Err   error
}

func (me *Error) Error() string {
	return fmt.Sprintf("storage %s piece %d: %v", me.Op, me.Piece, me.Err)
}

func (me *Error) Unwrap() error {
	return me.Err
}

func wrapErr(op string, piece int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Piece: piece, Err: err}
}
