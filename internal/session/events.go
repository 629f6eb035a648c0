package session

// EventType identifies what changed in a session.
type EventType string

// Event types.
const (
	EventStep  EventType = "step"
	EventPhase EventType = "phase"
)

// Event reports a step or phase change. Error is set when a step change
// back to UPLOAD was caused by a failure.
type Event struct {
	Type       EventType `json:"type"`
	Step       Step      `json:"step,omitempty"`
	Phase      Phase     `json:"phase,omitempty"`
	PhaseIndex int       `json:"phaseIndex"`
	Error      string    `json:"error,omitempty"`
}

const subscriberBuffer = 32

// Subscribe returns a channel of session events and a function that
// unsubscribes and closes it. Events are dropped for a subscriber whose
// buffer is full; the session never blocks on a slow reader.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch

	var once bool
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Session) broadcastLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
