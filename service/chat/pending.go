package chat

import (
	"context"
	"sync"
	"time"

	"lchat/tools/ids"
)

// ProbeOutcome is the resolved state of one request/reply exchange. Every
// exchange ends in exactly one of these; a timeout is an outcome, not an
// error, so callers branch on it the same way they branch on Delivered.
type ProbeOutcome int

const (
	Delivered ProbeOutcome = iota
	TimedOut
	Errored
)

func (o ProbeOutcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TimedOut:
		return "timed_out"
	default:
		return "errored"
	}
}

// ProbeResult carries the outcome plus the reply payload when Delivered.
type ProbeResult struct {
	Outcome ProbeOutcome
	Reply   map[string]any
}

// PendingReplies correlates outbound frames that carry an ack_id with the
// "ack" frames clients send back. One instance per gateway; entries are
// removed on resolve, timeout or connection teardown.
type PendingReplies struct {
	mu sync.Mutex
	m  map[string]chan map[string]any
}

func NewPendingReplies() *PendingReplies {
	return &PendingReplies{m: make(map[string]chan map[string]any)}
}

// Register reserves a fresh ack id and returns it with its reply channel.
func (p *PendingReplies) Register() (string, <-chan map[string]any) {
	id := ids.GenerateString()
	ch := make(chan map[string]any, 1)
	p.mu.Lock()
	p.m[id] = ch
	p.mu.Unlock()
	return id, ch
}

// Resolve hands a reply to the waiter, if one is still registered. Late or
// duplicate acks are dropped here.
func (p *PendingReplies) Resolve(ackID string, data map[string]any) {
	p.mu.Lock()
	ch, ok := p.m[ackID]
	if ok {
		delete(p.m, ackID)
	}
	p.mu.Unlock()
	if ok {
		ch <- data
	}
}

// Drop removes a registration without resolving it.
func (p *PendingReplies) Drop(ackID string) {
	p.mu.Lock()
	delete(p.m, ackID)
	p.mu.Unlock()
}

// Await blocks until the reply arrives, the timeout elapses, or ctx is
// cancelled. Context cancellation maps to Errored.
func (p *PendingReplies) Await(ctx context.Context, ackID string, ch <-chan map[string]any, timeout time.Duration) ProbeResult {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case data := <-ch:
		return ProbeResult{Outcome: Delivered, Reply: data}
	case <-t.C:
		p.Drop(ackID)
		return ProbeResult{Outcome: TimedOut}
	case <-ctx.Done():
		p.Drop(ackID)
		return ProbeResult{Outcome: Errored}
	}
}
