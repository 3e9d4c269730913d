package server

import (
	"context"
	"log"

	"github.com/siphyr/dmserver/internal/stats"
	"github.com/siphyr/dmserver/internal/store"
	"github.com/siphyr/dmserver/internal/types"
)

// DeliveryRouter orchestrates a send: persist first, then fan out to
// every live session of the sender and recipient. Persistence failures
// fail the send; delivery failures never do.
type DeliveryRouter struct {
	log      *log.Logger
	store    *store.MessageStore
	registry *ConnectionRegistry
	stats    stats.StatsProvider
}

func NewDeliveryRouter(logger *log.Logger, st *store.MessageStore, registry *ConnectionRegistry, statsProvider stats.StatsProvider) *DeliveryRouter {
	return &DeliveryRouter{
		log:      logger,
		store:    st,
		registry: registry,
		stats:    statsProvider,
	}
}

// Send persists the message and pushes it to all live sessions of both
// participants. The returned Message carries the server-assigned id
// and timestamp and is the sender's authoritative confirmation; the
// sender's other sessions receive the push like any other target.
func (dr *DeliveryRouter) Send(ctx context.Context, senderId, recipientId, content string) (types.Message, error) {
	// A send cancelled before the commit must have no effects at all.
	if err := ctx.Err(); err != nil {
		return types.Message{}, err
	}

	msg, err := dr.store.Append(senderId, recipientId, content)
	if err != nil {
		return types.Message{}, err
	}
	dr.stats.Incr(statMessagesStored)

	// The message is durable from here on. Delivery is best effort per
	// session; a missed push is recovered by the client pulling history
	// on reconnect.
	targets := dr.registry.LiveSessionsFor(senderId)
	targets = append(targets, dr.registry.LiveSessionsFor(recipientId)...)

	event := NewMessageEvent(msg)
	for _, sid := range targets {
		dr.push(sid, event)
	}

	return msg, nil
}

// push delivers one event to one session. A failed push gets exactly
// one immediate retry; after that the session is considered dead and
// is unregistered. Never returns an error: delivery failures are
// isolated per target.
func (dr *DeliveryRouter) push(sid SessionId, event *ServerMessage) {
	client, ok := dr.registry.Get(sid)
	if !ok {
		// Disconnected between snapshot and push.
		dr.log.Printf("session %q gone before push", sid)
		return
	}

	if client.queueMessage(event) {
		dr.stats.Incr(statMessagesDelivered)
		return
	}

	if client.queueMessage(event) {
		dr.stats.Incr(statMessagesDelivered)
		return
	}

	dr.stats.Incr(statDeliveryFailures)
	dr.log.Printf("delivery to session %q failed twice, unregistering", sid)
	dr.registry.Unregister(sid)
}
