package climo

import "errors"

// ErrInvalidDate reports malformed local-date components on a record.
// Out-of-range months or days are rejected, never clamped.
var ErrInvalidDate = errors.New("invalid local date")

// ErrEncodingMismatch reports a decile blob whose layout or version tag
// does not match the format this build writes. Surfaced to the caller,
// never auto-repaired.
var ErrEncodingMismatch = errors.New("decile blob encoding mismatch")
