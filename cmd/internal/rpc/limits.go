package rpc

import "time"

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	// Max mail/password/guid/token length accepted in a call payload.
	maxFieldBytes = 4 << 10
)

const (
	defaultSendQueueSize = 64
	minSendQueueSize     = 8

	defaultWriteTimeout = 5 * time.Second
	defaultReadIdle     = 2 * time.Minute
	closeGrace          = 1 * time.Second

	// Synchronous queries run on the read loop and are bounded by this.
	queryTimeout = 5 * time.Second

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
	maxPingFailures   = 3
)
