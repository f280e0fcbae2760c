package property

import (
	"errors"
	"fmt"
)

var (
	ErrBuildingNotFound  = errors.New("building not found")
	ErrEntranceNotFound  = errors.New("entrance not found")
	ErrApartmentNotFound = errors.New("apartment not found")

	ErrAddressTaken         = errors.New("building address already exists")
	ErrEntranceNumberTaken  = errors.New("entrance number already exists in building")
	ErrApartmentNumberTaken = errors.New("apartment number already exists in entrance")
)

// ReferenceError reports a write whose foreign key points at a missing row.
type ReferenceError struct {
	Field string
	ID    int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %d does not exist", e.Field, e.ID)
}

// Message renders the error the way it is shown to API clients
func (e *ReferenceError) Message() string {
	return fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", e.ID)
}
