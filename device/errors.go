package device

import "errors"

// Personality independent error taxonomy. Personalities wrap these and
// translate them to the codes their host side expects.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotReady         = errors.New("not ready")
	ErrNotFound         = errors.New("not found")
	ErrAccessDenied     = errors.New("access denied")
	ErrIO               = errors.New("i/o error")
	ErrInternal         = errors.New("internal error")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)
