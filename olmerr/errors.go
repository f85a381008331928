// Package olmerr collects the sentinel errors shared across the ratchet,
// session, account, group and pickle packages so callers can branch on
// errors.Is regardless of which layer produced the failure.
package olmerr

import "errors"

var (
	ErrNotEnoughRandom        = errors.New("olmcore: random source returned fewer bytes than requested")
	ErrBadMessageVersion      = errors.New("olmcore: unknown message version")
	ErrBadMessageFormat       = errors.New("olmcore: malformed message encoding")
	ErrBadMessageMac          = errors.New("olmcore: message MAC verification failed")
	ErrBadMessageKeyID        = errors.New("olmcore: pre-key message references an unknown one-time key")
	ErrInvalidBase64          = errors.New("olmcore: invalid base64 encoding")
	ErrBadAccountKey          = errors.New("olmcore: pickle key does not verify")
	ErrUnknownPickleVersion   = errors.New("olmcore: unsupported pickle version")
	ErrUnknownMessageIndex    = errors.New("olmcore: group message index older than the earliest known index")
	ErrBadLegacyAccountPickle = errors.New("olmcore: legacy account pickle failed validation")
	ErrBadSignature           = errors.New("olmcore: ed25519 signature verification failed")
	ErrInputBufferTooSmall    = errors.New("olmcore: input too small to be a valid framed object")
	ErrSASTheirKeyNotSet      = errors.New("olmcore: SAS peer key has not been set yet")
	ErrTooManySkippedKeys     = errors.New("olmcore: message counter too far ahead of chain head")
	ErrChainExhausted         = errors.New("olmcore: missing message key for requested index")
)
