package core

import "fmt"

// Error is a compile-time error (eg. unmatched brackets) with the source
// location it was detected at.
type Error struct {
	Msg string
	Pos Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at line %d col %d (offset %d)",
		e.Msg, e.Pos.Line, e.Pos.Column, e.Pos.Offset)
}
