package rpc

import (
	"errors"
	"sync"

	"ssod/cmd/internal/auth/account"
	"ssod/cmd/internal/auth/session"
	"ssod/cmd/internal/metrics"
)

// errQueueFull is returned to the manager when a frame cannot be queued.
var errQueueFull = errors.New("rpc: send queue full or closed")

// peer is one connected websocket client.
//
// send is never closed: manager tasks may still deliver after the connection
// is gone, and they must see a closed peer rather than panic.
type peer struct {
	ID   string
	send chan Envelope

	done      chan struct{}
	closeOnce sync.Once
}

func newPeer(id string, sendQueueSize int) *peer {
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	return &peer{
		ID:   id,
		send: make(chan Envelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Done is closed when the peer is shutting down.
func (p *peer) Done() <-chan struct{} { return p.done }

// Close signals the peer goroutines to stop (idempotent).
func (p *peer) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// enqueue queues env without blocking. It reports false when the peer is closed
// or the queue is full; dropped frames are counted.
func (p *peer) enqueue(env Envelope) bool {
	select {
	case <-p.done:
		metrics.RPCDroppedFrames.Inc()
		return false
	default:
	}

	select {
	case p.send <- env:
		return true
	default:
		metrics.RPCDroppedFrames.Inc()
		return false
	}
}

// callCallback routes one call's result and account frames to the peer.
type callCallback struct {
	peer   *peer
	callID string
}

var _ session.Callback = callCallback{}

func (c callCallback) OnResult(r session.Result) error {
	if !c.peer.enqueue(newEnvelope(TypeResult, c.callID, "", encodePayload(FromResult(r)))) {
		return errQueueFull
	}
	return nil
}

func (c callCallback) OnAccountDelivered(a account.Account) error {
	if !c.peer.enqueue(newEnvelope(TypeAccount, c.callID, "", encodePayload(FromAccount(a)))) {
		return errQueueFull
	}
	return nil
}
