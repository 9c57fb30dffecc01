// internal/events/broadcast.go
//
// Fan-out of session events. Publish appends to the bounded log and
// pushes to every connection subscribed to the game; PublishGlobal does
// the same against the lobby scope and every registered connection.
// Delivery is best-effort, at-most-once per push attempt: a failed push
// is dropped and the client recovers by re-fetching full state.

package events

import "time"

// Subscribers is the slice of the connection registry the broadcaster
// needs: who listens to a game, and who is connected at all.
type Subscribers interface {
	SubscribersOf(gameID string) []string
	All() []string
}

// Sink delivers one envelope to one connection. The push transport
// implements it; Deliver reports whether the payload was handed off.
type Sink interface {
	Deliver(connID string, env Envelope) bool
}

// Broadcaster ties the log, the subscriber index, and the push sink
// together.
type Broadcaster struct {
	log  *Log
	subs Subscribers
	sink Sink
}

// NewBroadcaster constructs a Broadcaster. The sink starts unset; until
// Attach is called events are logged for pollers but not pushed.
func NewBroadcaster(log *Log, subs Subscribers) *Broadcaster {
	return &Broadcaster{log: log, subs: subs}
}

// Attach wires the push sink. Called once at startup when the push
// transport comes up.
func (b *Broadcaster) Attach(sink Sink) { b.sink = sink }

// Log exposes the underlying event log for poll-based catch-up.
func (b *Broadcaster) Log() *Log { return b.log }

// Publish records env against gameID and pushes it to that game's
// subscribers.
func (b *Broadcaster) Publish(gameID string, env Envelope) {
	env.GameID = gameID
	b.stampAndLog(&env)
	if b.sink == nil {
		return
	}
	for _, connID := range b.subs.SubscribersOf(gameID) {
		b.sink.Deliver(connID, env)
	}
}

// PublishGlobal records env against the lobby scope and pushes it to
// every registered connection.
func (b *Broadcaster) PublishGlobal(env Envelope) {
	env.GameID = ""
	b.stampAndLog(&env)
	if b.sink == nil {
		return
	}
	for _, connID := range b.subs.All() {
		b.sink.Deliver(connID, env)
	}
}

func (b *Broadcaster) stampAndLog(env *Envelope) {
	if env.At.IsZero() {
		env.At = time.Now()
	}
	b.log.Append(*env)
}
