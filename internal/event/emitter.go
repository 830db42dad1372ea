package event

import (
	"sync"
	"time"
)

// Emitter assigns the global monotonic sequence and hands envelopes to
// the output channel. Sends BLOCK: if the downstream consumer falls
// behind, emitters stall rather than lose an event. The consumer fans
// out to persistence (blocking) and publish (drop-on-full).
type Emitter struct {
	mu  sync.Mutex
	seq int64
	out chan<- Envelope
	now func() time.Time
}

// NewEmitter creates an emitter writing to out. A nil channel is
// allowed; sequences are still assigned but envelopes go nowhere,
// which tests use.
func NewEmitter(out chan<- Envelope) *Emitter {
	return &Emitter{
		out: out,
		now: time.Now,
	}
}

// Emit wraps the payload in an envelope with the next sequence and
// pushes it downstream.
// The lock is held across the send so envelopes reach the channel in
// sequence order even when ledger and pool emit concurrently.
func (e *Emitter) Emit(payload Event) Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	env := Envelope{
		Sequence:  e.seq,
		EventType: payload.EventType(),
		Timestamp: e.now(),
		Payload:   payload,
	}

	if e.out != nil {
		e.out <- env
	}
	return env
}

// Sequence returns the last assigned sequence number.
func (e *Emitter) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}
