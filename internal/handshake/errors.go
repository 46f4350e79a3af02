package handshake

import "errors"

var (
	ErrShortToken    = errors.New("handshake: short token")
	ErrUnknownScheme = errors.New("handshake: unknown scheme byte")
)
