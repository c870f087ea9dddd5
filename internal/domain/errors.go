package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidTrade = errors.New("invalid trade record")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrStorage      = errors.New("storage unavailable")
)
