package session

import (
	"go.uber.org/zap"

	"scrapyard.dev/internal/cfgnode"
	"scrapyard.dev/internal/vessel"
)

// Handlers are the lifecycle callbacks a host raises.
type Handlers struct {
	OnRollout func(v *vessel.Snapshot)
	OnRecover func(v *vessel.Snapshot)
	OnSave    func(root *cfgnode.Node)
	OnLoad    func(root *cfgnode.Node)
}

// Bus is the host's event registry. Register returns the function that
// removes the registration again.
type Bus interface {
	Register(h Handlers) (deregister func())
}

// Handlers returns callbacks that drive this session directly. They must be
// raised from a single goroutine and never while Run is active.
func (s *Session) Handlers() Handlers {
	return Handlers{
		OnRollout: func(v *vessel.Snapshot) {
			if _, err := s.Rollout(v); err != nil {
				s.log.Error("rollout rejected", zap.String("vessel", v.Name), zap.Error(err))
			}
		},
		OnRecover: func(v *vessel.Snapshot) {
			if _, err := s.Recover(v, nil); err != nil {
				s.log.Error("recovery rejected", zap.String("vessel", v.Name), zap.Error(err))
			}
		},
		OnSave: func(root *cfgnode.Node) { s.SaveInto(root) },
		OnLoad: func(root *cfgnode.Node) {
			// Load logs and leaves the ledger untouched on error.
			_, _ = s.Load(root)
		},
	}
}

// Start registers the session's handlers on bus. Calling it again replaces
// the previous registration.
func (s *Session) Start(bus Bus) {
	if s.deregister != nil {
		s.deregister()
	}
	s.deregister = bus.Register(s.Handlers())
}

// Close removes the handlers registered by Start.
func (s *Session) Close() {
	if s.deregister != nil {
		s.deregister()
		s.deregister = nil
	}
}

// LocalBus is an in-process Bus. It is not safe for concurrent use.
type LocalBus struct {
	next int
	subs map[int]Handlers
}

func NewLocalBus() *LocalBus { return &LocalBus{subs: map[int]Handlers{}} }

func (b *LocalBus) Register(h Handlers) func() {
	id := b.next
	b.next++
	b.subs[id] = h
	return func() { delete(b.subs, id) }
}

func (b *LocalBus) Len() int { return len(b.subs) }

func (b *LocalBus) Rollout(v *vessel.Snapshot) {
	for _, id := range b.order() {
		if f := b.subs[id].OnRollout; f != nil {
			f(v)
		}
	}
}

func (b *LocalBus) Recover(v *vessel.Snapshot) {
	for _, id := range b.order() {
		if f := b.subs[id].OnRecover; f != nil {
			f(v)
		}
	}
}

func (b *LocalBus) Save(root *cfgnode.Node) {
	for _, id := range b.order() {
		if f := b.subs[id].OnSave; f != nil {
			f(root)
		}
	}
}

func (b *LocalBus) Load(root *cfgnode.Node) {
	for _, id := range b.order() {
		if f := b.subs[id].OnLoad; f != nil {
			f(root)
		}
	}
}

// order lists registrations oldest first.
func (b *LocalBus) order() []int {
	ids := make([]int, 0, len(b.subs))
	for id := 0; id < b.next; id++ {
		if _, ok := b.subs[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
