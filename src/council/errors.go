package council

import "errors"

var (
	ErrValidation       = errors.New("invalid input")
	ErrNotFound         = errors.New("proposal not found")
	ErrInvalidState     = errors.New("proposal is not active")
	ErrPermissionDenied = errors.New("not a member of the proposal electorate")
)
