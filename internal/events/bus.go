package events

// Subscription identifies a registered handler.
type Subscription int

type subscriber struct {
	id Subscription
	fn Handler
}

// Bus delivers events synchronously, to handlers in the order they
// subscribed. It is not safe for concurrent use; the owning simulation
// serializes access.
type Bus struct {
	subs   []subscriber
	nextID Subscription
}

// Subscribe registers fn and returns a handle for Unsubscribe.
func (b *Bus) Subscribe(fn Handler) Subscription {
	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, fn: fn})
	return b.nextID
}

// Unsubscribe removes a handler. Unknown handles are ignored.
func (b *Bus) Unsubscribe(id Subscription) {
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every handler registered before the call.
func (b *Bus) Publish(ev Event) {
	if b == nil || len(b.subs) == 0 {
		return
	}
	subs := b.subs
	for _, s := range subs {
		s.fn(ev)
	}
}

// Len reports the number of subscribers.
func (b *Bus) Len() int { return len(b.subs) }
