package generate

import "sync"

// Phase is the driver's lifecycle state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether no further transitions can happen.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Progress is a point-in-time view of a run.
type Progress struct {
	Phase     Phase  `json:"phase"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// Percent returns 100*Completed/Total. A run with no rows is 100% once it
// has left the running state.
func (p Progress) Percent() int {
	if p.Total == 0 {
		if p.Phase == PhaseCompleted {
			return 100
		}
		return 0
	}
	return p.Completed * 100 / p.Total
}

// broadcaster fans progress out to subscribers. Slow subscribers miss
// intermediate updates rather than stalling the run; the final update is
// always delivered before the channel closes.
type broadcaster struct {
	mu        sync.Mutex
	current   Progress
	listeners []chan Progress
	closed    bool
}

func (b *broadcaster) subscribe() <-chan Progress {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Progress, 16)
	ch <- b.current
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

func (b *broadcaster) publish(p Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = p
	for _, ch := range b.listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

// finish publishes the final state and closes every listener.
func (b *broadcaster) finish(p Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = p
	for _, ch := range b.listeners {
		// Make room so the terminal state is never dropped.
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
		close(ch)
	}
	b.listeners = nil
	b.closed = true
}

func (b *broadcaster) snapshot() Progress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
