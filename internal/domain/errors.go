package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrMissingCredentials  = errors.New("missing api credentials")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNoOutcomes          = errors.New("market has no outcomes")
	ErrInvalidOptions      = errors.New("invalid fetch options")
	ErrWSDisconnect        = errors.New("websocket disconnected")
)
