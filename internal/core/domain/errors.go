package domain

import "errors"

var (
	ErrInvalidChannelID   = errors.New("invalid channel id")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotChannelMember   = errors.New("user is not a member of the channel")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)
