package domain

import "errors"

var (
	ErrInvalidReaction   = errors.New("invalid reaction code")
	ErrMissingIdentifier = errors.New("missing item or user identifier")
)
