package queue

import "errors"

// ErrSessionNotFound indicates a lookup for a session key with no local
// document. Callers treat this as a programming error, not a sync state.
var ErrSessionNotFound = errors.New("session not found")
