package transport

import "errors"

var (
	ErrInvalidCertificate = errors.New("invalid certificate")
	ErrInvalidProtocol    = errors.New("invalid negotiated protocol")
	ErrListenerFailed     = errors.New("failed to create QUIC listener")
	ErrDialFailed         = errors.New("failed to dial feed endpoint")
	ErrStreamFailed       = errors.New("failed to open stream")
)
