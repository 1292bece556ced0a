package logrepo

import "errors"

var (
	ErrNotFound      = errors.New("log not found")
	ErrAlreadyExists = errors.New("log already exists")
)
