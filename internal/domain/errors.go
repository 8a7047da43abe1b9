package domain

import "errors"

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrServerDisabled    = errors.New("realtime server is disabled")
	ErrDocumentNotFound  = errors.New("document not found")
)
