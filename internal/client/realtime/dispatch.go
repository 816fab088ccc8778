package realtime

import "sync"

// Wildcard subscribes to every event type. Wildcard handlers run after the
// exact-type handlers of each event.
const Wildcard = "*"

// Handler consumes a dispatched event. Handlers run on the connection's
// read loop, in arrival order; a slow handler delays everything behind it.
type Handler func(Event)

// Subscription is the registration handle returned by On. Unsubscribe
// removes the handler; it is safe to call more than once.
type Subscription struct {
	id        uint64
	eventType string
	fn        Handler
	d         *dispatcher
}

func (s *Subscription) Unsubscribe() {
	s.d.remove(s)
}

// dispatcher is a type-keyed handler registry preserving registration
// order within each type.
type dispatcher struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]*Subscription
}

func newDispatcher() *dispatcher {
	return &dispatcher{subs: make(map[string][]*Subscription)}
}

func (d *dispatcher) subscribe(eventType string, fn Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	sub := &Subscription{id: d.nextID, eventType: eventType, fn: fn, d: d}
	d.subs[eventType] = append(d.subs[eventType], sub)
	return sub
}

func (d *dispatcher) remove(sub *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.subs[sub.eventType]
	for i, s := range list {
		if s.id == sub.id {
			d.subs[sub.eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// dispatch fans the event out to exact-type subscribers first, then
// wildcard subscribers, each group in registration order. The handler list
// is snapshotted under the lock so handlers may subscribe/unsubscribe
// freely.
func (d *dispatcher) dispatch(evt Event) {
	d.mu.Lock()
	handlers := make([]Handler, 0, len(d.subs[evt.Type])+len(d.subs[Wildcard]))
	for _, s := range d.subs[evt.Type] {
		handlers = append(handlers, s.fn)
	}
	if evt.Type != Wildcard {
		for _, s := range d.subs[Wildcard] {
			handlers = append(handlers, s.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range handlers {
		fn(evt)
	}
}
