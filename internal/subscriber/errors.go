package subscriber

import "errors"

var (
	ErrConnect       = errors.New("failed to establish feed subscription")
	ErrStreamBroken  = errors.New("feed stream broken")
	ErrSessionClosed = errors.New("session closed")
	ErrPongTimeout   = errors.New("keepalive ping not answered")
)
