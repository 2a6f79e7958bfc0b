package engine

import (
	"sync"
	"time"

	"RedScrip/internal/identity"
)

const (
	// channelBuffer is the buffer size for the event channel.
	channelBuffer = 1024

	// tailSize is how many recent events are retained for inspection.
	tailSize = 256
)

// EventKind labels a state change.
type EventKind string

const (
	EventCertificateCreated EventKind = "certificate_created"
	EventRedeemed           EventKind = "redeemed"
	EventCondensedRedeemed  EventKind = "condensed_redeemed"
)

// Event describes a committed state change. Events are observability
// only; dropping one never affects redemption state.
type Event struct {
	Kind           EventKind          `json:"kind"`
	Time           time.Time          `json:"time"`
	CertificateID  identity.ID        `json:"certificate_id"`
	CertificateIDs []identity.ID      `json:"certificate_ids,omitempty"`
	Holder         identity.Address   `json:"holder"`
	Amount         uint64             `json:"amount"`
	Delegates      []identity.Address `json:"delegates,omitempty"`
}

// events fans a stream out to a buffered channel for live consumers and
// keeps a bounded tail for the API.
type events struct {
	mu   sync.Mutex
	ch   chan Event
	tail []Event
	next int // overwrite position once the tail is full
}

func newEvents() *events {
	return &events{
		ch:   make(chan Event, channelBuffer),
		tail: make([]Event, 0, tailSize),
	}
}

// emit stamps the event and offers it to the channel without blocking.
func (e *events) emit(ev Event) {
	ev.Time = time.Now()

	e.mu.Lock()
	if len(e.tail) < tailSize {
		e.tail = append(e.tail, ev)
	} else {
		e.tail[e.next] = ev
		e.next = (e.next + 1) % tailSize
	}
	e.mu.Unlock()

	select {
	case e.ch <- ev:
	default:
		// Lagging consumer: drop instead of stalling redemptions.
	}
}

// recent returns the tail oldest first.
func (e *events) recent() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Event, 0, len(e.tail))
	out = append(out, e.tail[e.next:]...)
	out = append(out, e.tail[:e.next]...)

	return out
}
