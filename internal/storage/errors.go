package storage

import "errors"

var (
	// ErrTxDone is returned when a committed or rolled back transaction is used again.
	ErrTxDone = errors.New("storage: transaction already finished")

	// ErrSequenceGap indicates an appended entry does not carry the next sequence number.
	ErrSequenceGap = errors.New("storage: entry sequence is not contiguous")
)
