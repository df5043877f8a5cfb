package types

import "errors"

var (
	ErrInvalidIdentifier        = errors.New("metax: invalid resource identifier")
	ErrInvalidListener          = errors.New("metax: invalid listener")
	ErrDuplicateSubscription    = errors.New("metax: listener already registered")
	ErrNotFound                 = errors.New("metax: no listener registered")
	ErrUnknownCallback          = errors.New("metax: listener not registered for resource")
	ErrCapacity                 = errors.New("metax: listener capacity reached")
	ErrRemoteRegistrationFailed = errors.New("metax: remote registration failed")
	ErrTransport                = errors.New("metax: transport error")
	ErrProtocolViolation        = errors.New("metax: protocol violation")
	ErrConnect                  = errors.New("metax: connect failed")
	ErrAlreadyConnected         = errors.New("metax: already connected")
)
