package savings

import "errors"

var (
	ErrNotFound      = errors.New("goal not found")
	ErrDuplicateName = errors.New("name already in use")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidKind   = errors.New("invalid kind")
	ErrInvalidTime   = errors.New("invalid time of day")
)
