package chunk

import "errors"

var (
	// ErrNeedMore reports that the buffered bytes cannot complete the next
	// structure. It is a retry signal, not a failure: feed more bytes and
	// call Next again. The read position is restored before it is returned.
	ErrNeedMore = errors.New("chunk: need more data")

	ErrNoPreviousHeader   = errors.New("chunk: relative header on unseen channel")
	ErrInvalidChannelID   = errors.New("chunk: invalid channel id")
	ErrChannelNotAcquired = errors.New("chunk: channel not acquired")
	ErrNoStream           = errors.New("chunk: no stream for id")
)
