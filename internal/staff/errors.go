package staff

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
	ErrGroupNotFound = errors.New("role group does not exist")
)
