package payment

import "errors"

var (
	ErrUnknownSource = errors.New("unknown payment source")
	ErrInvalidRecord = errors.New("invalid payment record")
	ErrInvalidRules  = errors.New("invalid ingest rules")
)
