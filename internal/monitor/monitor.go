// Package monitor turns kernel link notifications into device events.
package monitor

import (
	"context"
	"maps"
	"sync"
	"time"

	"grimm.is/ifctl/internal/clock"
	"grimm.is/ifctl/internal/logging"
)

// Type classifies a link event.
type Type string

const (
	TypeAdd    Type = "add"
	TypeDel    Type = "del"
	TypeUp     Type = "up"
	TypeDown   Type = "down"
	TypeRename Type = "rename"
	TypeMaster Type = "master"
	TypeChange Type = "change"
)

// Event describes one change to a device.
type Event struct {
	Type    Type      `json:"type" yaml:"type"`
	Name    string    `json:"name" yaml:"name"`
	Index   int       `json:"index" yaml:"index"`
	Up      bool      `json:"up" yaml:"up"`
	Running bool      `json:"running" yaml:"running"`
	MAC     string    `json:"mac,omitempty" yaml:"mac,omitempty"`
	Master  int       `json:"master,omitempty" yaml:"master,omitempty"`
	OldName string    `json:"old_name,omitempty" yaml:"old_name,omitempty"`
	Time    time.Time `json:"time" yaml:"time"`
}

// LinkState is the platform-neutral snapshot a subscriber reports for each
// notification.
type LinkState struct {
	Index   int
	Name    string
	Up      bool
	Running bool
	MAC     string
	Master  int
	Deleted bool
}

// Subscriber streams link snapshots until ctx is done. Initial snapshots of
// existing links are passed to seed before the subscriber returns.
type Subscriber func(ctx context.Context, out chan<- LinkState, seed func(LinkState)) error

// Monitor tracks link state and reports changes to registered callbacks.
type Monitor struct {
	subscribe Subscriber
	log       *logging.Logger

	mu        sync.RWMutex
	callbacks []func(Event)
	links     map[int]LinkState
	cancel    context.CancelFunc
	done      chan struct{}
	running   bool
}

// New returns a monitor fed by the kernel's link notifications.
func New() *Monitor {
	return NewWithSubscriber(kernelSubscriber)
}

// NewWithSubscriber returns a monitor fed by sub.
func NewWithSubscriber(sub Subscriber) *Monitor {
	return &Monitor{
		subscribe: sub,
		log:       logging.WithComponent("monitor"),
		links:     make(map[int]LinkState),
	}
}

// OnChange registers a callback for link events.
func (m *Monitor) OnChange(cb func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Start subscribes and processes notifications in the background. The
// subscriber runs without the monitor lock held, so it may seed and
// register callbacks synchronously.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	updates := make(chan LinkState, 64)
	seeded := make(map[int]LinkState)
	seed := func(s LinkState) { seeded[s.Index] = s }
	if err := m.subscribe(ctx, updates, seed); err != nil {
		cancel()
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	maps.Copy(m.links, seeded)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go m.process(ctx, updates, done)
	m.log.Info("link monitoring started")
	return nil
}

// Stop ends monitoring and waits for the processing goroutine.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running || m.done == nil {
		m.mu.Unlock()
		return
	}
	m.cancel()
	done := m.done
	m.running = false
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	<-done
	m.log.Info("link monitoring stopped")
}

func (m *Monitor) process(ctx context.Context, updates <-chan LinkState, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			m.handle(s)
		}
	}
}

func (m *Monitor) handle(s LinkState) {
	m.mu.Lock()
	prev, known := m.links[s.Index]
	if s.Deleted {
		delete(m.links, s.Index)
	} else {
		m.links[s.Index] = s
	}
	callbacks := m.callbacks
	m.mu.Unlock()

	ev, ok := classify(prev, known, s)
	if !ok {
		return
	}
	ev.Time = clock.Now()
	m.log.Debug("link event", "type", string(ev.Type), "dev", ev.Name)
	for _, cb := range callbacks {
		cb(ev)
	}
}

// classify compares a snapshot with the previous one for the same index.
// ok is false when nothing the events describe has changed.
func classify(prev LinkState, known bool, s LinkState) (Event, bool) {
	ev := Event{Name: s.Name, Index: s.Index, Up: s.Up, Running: s.Running, MAC: s.MAC, Master: s.Master}
	switch {
	case s.Deleted:
		ev.Type = TypeDel
	case !known:
		ev.Type = TypeAdd
	case prev.Name != s.Name:
		ev.Type = TypeRename
		ev.OldName = prev.Name
	case prev.Up != s.Up || prev.Running != s.Running:
		if s.Up && s.Running {
			ev.Type = TypeUp
		} else {
			ev.Type = TypeDown
		}
	case prev.Master != s.Master:
		ev.Type = TypeMaster
	case prev.MAC != s.MAC:
		ev.Type = TypeChange
	default:
		return Event{}, false
	}
	return ev, true
}

// Links returns the last known state of every tracked link.
func (m *Monitor) Links() []LinkState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LinkState, 0, len(m.links))
	for _, s := range m.links {
		out = append(out, s)
	}
	return out
}
