// Package events fans out registration and delivery changes to live subscribers
// such as the staff counter screens.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Type names a change published on the hub.
type Type string

const (
	ParticipantIdentified Type = "participant.identified"
	ParticipantValidated  Type = "participant.validated"
	ParticipantBlocked    Type = "participant.blocked"
	KitWithdrawn          Type = "kit.withdrawn"
	BibsGenerated         Type = "bibs.generated"
	DeliveryChanged       Type = "delivery.changed"
)

// Event is one change notification. EntityID is a participant or order id.
type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	RaceID   string    `json:"raceId"`
	EntityID string    `json:"entityId"`
	Status   string    `json:"status,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(e Event)
}

const subscriberBuffer = 64

type subscriber struct {
	raceID string
	mu     sync.Mutex
	closed bool
	ch     chan Event
}

func (s *subscriber) offer(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Hub is an in-process pub/sub keyed by race. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	subs *xsync.MapOf[string, *subscriber]
	log  *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{subs: xsync.NewMapOf[string, *subscriber](), log: log}
}

// Publish delivers e to every subscriber of e.RaceID.
func (h *Hub) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	h.subs.Range(func(id string, s *subscriber) bool {
		if s.raceID != e.RaceID {
			return true
		}
		if !s.offer(e) {
			h.log.Warn("event dropped for slow subscriber",
				zap.String("subscriber", id), zap.String("type", string(e.Type)))
		}
		return true
	})
}

// Subscribe registers for events of raceID. The returned cancel func closes the
// channel and is safe to call more than once.
func (h *Hub) Subscribe(raceID string) (<-chan Event, func()) {
	id := uuid.NewString()
	s := &subscriber{raceID: raceID, ch: make(chan Event, subscriberBuffer)}
	h.subs.Store(id, s)
	h.log.Debug("subscriber added", zap.String("subscriber", id), zap.String("race_id", raceID))

	return s.ch, func() {
		h.subs.Delete(id)
		s.close()
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	return h.subs.Size()
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
