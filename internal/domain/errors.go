package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("chat room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrForbidden       = errors.New("not authorized")
	ErrInvalidArgument = errors.New("invalid argument")
)
