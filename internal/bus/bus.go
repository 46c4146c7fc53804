package bus

// Fan-out layer between the engine and its consumers. Three delivery
// shapes, matching how each output is consumed:
//
//   - Snapshot: overwrite cell + push channel that drops when full. A slow
//     consumer loses intermediate frames, never freshness.
//   - Advice: capped ring + push channel with backpressure. Polling
//     consumers read recent history from the ring even when push delivery
//     missed them.
//   - Debrief: lossy push, idempotent per pull.
//
// Connection status gets the snapshot treatment (cell + lossy push); the
// tailer re-publishes it every few seconds so late consumers catch up.
//
// The mutex only guards the cells and the ring; it is never held across a
// channel send.

import (
	"sync"

	"github.com/MFredin/CombatCoaching/internal/rules"
)

// Snapshot is the latest-wins combat summary published after every event.
type Snapshot struct {
	PullElapsedMs  int64
	GcdGapMs       int64
	AvoidableCount int
	InCombat       bool
	InterruptCount int
	EncounterName  string
}

// Debrief is the once-per-pull closing summary.
type Debrief struct {
	PullNumber       int
	PullElapsedMs    int64
	Outcome          string
	AvoidableCount   int
	InterruptCount   int
	TotalAdviceFired int
	GcdGapCount      int
}

// ConnectionStatus reports subsystem health to consumers. Errors never
// cross the fan-out; this is how the UI learns a path is misconfigured.
type ConnectionStatus struct {
	LogTailing     bool
	AddonConnected bool
	Path           string
}

const (
	adviceRingCap = 50

	adviceChanCap  = 128
	snapChanCap    = 128
	debriefChanCap = 16
	statusChanCap  = 16
)

// Bus is the single point of cross-task sharing outside the store.
type Bus struct {
	mu           sync.Mutex
	latest       Snapshot
	haveSnapshot bool
	status       ConnectionStatus

	ring  []rules.Advice // circular, oldest at pos once full
	pos   int
	count int

	adviceCh  chan rules.Advice
	snapCh    chan Snapshot
	debriefCh chan Debrief
	statusCh  chan ConnectionStatus
}

func New() *Bus {
	return &Bus{
		ring:      make([]rules.Advice, 0, adviceRingCap),
		adviceCh:  make(chan rules.Advice, adviceChanCap),
		snapCh:    make(chan Snapshot, snapChanCap),
		debriefCh: make(chan Debrief, debriefChanCap),
		statusCh:  make(chan ConnectionStatus, statusChanCap),
	}
}

// Advice is the push feed of deduplicated advice.
func (b *Bus) Advice() <-chan rules.Advice { return b.adviceCh }

// Snapshots is the push feed of state snapshots (lossy).
func (b *Bus) Snapshots() <-chan Snapshot { return b.snapCh }

// Debriefs is the push feed of pull-end summaries (lossy).
func (b *Bus) Debriefs() <-chan Debrief { return b.debriefCh }

// StatusUpdates is the push feed of connection status changes (lossy).
func (b *Bus) StatusUpdates() <-chan ConnectionStatus { return b.statusCh }

// PublishAdvice appends to the ring and pushes with backpressure: the
// caller blocks until the consumer has room.
func (b *Bus) PublishAdvice(a rules.Advice) {
	b.mu.Lock()
	if len(b.ring) < cap(b.ring) {
		b.ring = append(b.ring, a)
	} else {
		b.ring[b.pos] = a
	}
	b.pos = (b.pos + 1) % cap(b.ring)
	b.count++
	b.mu.Unlock()

	b.adviceCh <- a
}

// RecentAdvice returns the ring contents oldest-first.
func (b *Bus) RecentAdvice() []rules.Advice {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.ring)
	out := make([]rules.Advice, 0, n)
	if n < cap(b.ring) || b.pos == 0 {
		return append(out, b.ring...)
	}
	out = append(out, b.ring[b.pos:]...)
	return append(out, b.ring[:b.pos]...)
}

// PublishSnapshot overwrites the cell and pushes without blocking.
func (b *Bus) PublishSnapshot(s Snapshot) {
	b.mu.Lock()
	b.latest = s
	b.haveSnapshot = true
	b.mu.Unlock()

	select {
	case b.snapCh <- s:
	default:
	}
}

// LatestSnapshot returns the most recent snapshot, if any was published.
func (b *Bus) LatestSnapshot() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.haveSnapshot
}

// PublishDebrief pushes a pull-end summary, dropping when full.
func (b *Bus) PublishDebrief(d Debrief) {
	select {
	case b.debriefCh <- d:
	default:
	}
}

func (b *Bus) publishStatusLocked() ConnectionStatus {
	status := b.status
	return status
}

// SetLogTailing merges the tailer's view into the status cell and pushes.
func (b *Bus) SetLogTailing(tailing bool, path string) {
	b.mu.Lock()
	b.status.LogTailing = tailing
	b.status.Path = path
	status := b.publishStatusLocked()
	b.mu.Unlock()
	b.pushStatus(status)
}

// SetAddonConnected merges the identity watcher's view and pushes.
func (b *Bus) SetAddonConnected(connected bool) {
	b.mu.Lock()
	b.status.AddonConnected = connected
	status := b.publishStatusLocked()
	b.mu.Unlock()
	b.pushStatus(status)
}

func (b *Bus) pushStatus(s ConnectionStatus) {
	select {
	case b.statusCh <- s:
	default:
	}
}

// Status returns the current merged connection status.
func (b *Bus) Status() ConnectionStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Close closes the push channels. Call only after every publisher has
// stopped; pull accessors stay valid.
func (b *Bus) Close() {
	close(b.adviceCh)
	close(b.snapCh)
	close(b.debriefCh)
	close(b.statusCh)
}
