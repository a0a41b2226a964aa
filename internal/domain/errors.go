package domain

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrNotCreator        = errors.New("only the room creator can do that")
)
