package jobqueue

import "errors"

// Queue errors
var (
	ErrQueueNotRunning = errors.New("jobqueue: queue is not running")
	ErrChannelFull     = errors.New("jobqueue: channel lane is full")
	ErrInvalidConfig   = errors.New("jobqueue: invalid configuration")
)
