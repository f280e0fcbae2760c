package access

import "errors"

var (
	ErrUnknownRole     = errors.New("unknown role")
	ErrUnknownResource = errors.New("unknown resource")
	ErrUnknownAction   = errors.New("unknown action")
	ErrUnknownScope    = errors.New("unknown scope")
	ErrInvalidPolicy   = errors.New("invalid capability policy")
)
