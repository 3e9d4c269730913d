package server

import (
	"context"
	"log"
	"sync"

	"github.com/siphyr/dmserver/internal/stats"
	"github.com/siphyr/dmserver/internal/store"
)

const (
	statActiveSessions    = "ActiveSessions"
	statMessagesStored    = "MessagesStored"
	statMessagesDelivered = "MessagesDelivered"
	statDeliveryFailures  = "DeliveryFailures"
)

// MessagingServer owns the live side of the service: the connection
// registry, the delivery router and the set of open clients.
type MessagingServer struct {
	log         *log.Logger
	registry    *ConnectionRegistry
	router      *DeliveryRouter
	stats       stats.StatsProvider
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
}

func NewMessagingServer(logger *log.Logger, st *store.MessageStore, statsProvider stats.StatsProvider) (*MessagingServer, error) {
	registry := NewConnectionRegistry(logger)

	ms := &MessagingServer{
		log:      logger,
		registry: registry,
		stats:    statsProvider,
		clients:  make(map[*Client]struct{}),
	}
	ms.router = NewDeliveryRouter(logger, st, registry, statsProvider)

	statsProvider.RegisterMetric(statActiveSessions)
	statsProvider.RegisterMetric(statMessagesStored)
	statsProvider.RegisterMetric(statMessagesDelivered)
	statsProvider.RegisterMetric(statDeliveryFailures)

	return ms, nil
}

func (ms *MessagingServer) Router() *DeliveryRouter {
	return ms.router
}

func (ms *MessagingServer) Registry() *ConnectionRegistry {
	return ms.registry
}

// RegisterClient adds a connection after a successful handshake. From
// here on the session is a delivery target.
func (ms *MessagingServer) RegisterClient(c *Client) error {
	sid, err := ms.registry.Register(c.user.Id, c)
	if err != nil {
		return err
	}
	c.sessionId = sid

	ms.clientsLock.Lock()
	ms.clients[c] = struct{}{}
	ms.clientsLock.Unlock()

	ms.stats.Incr(statActiveSessions)
	ms.log.Printf("added connection for user %q", c.user.Id)
	return nil
}

func (ms *MessagingServer) DeregisterClient(c *Client) {
	ms.registry.Unregister(c.sessionId)

	ms.clientsLock.Lock()
	if _, ok := ms.clients[c]; ok {
		delete(ms.clients, c)
		ms.stats.Decr(statActiveSessions)
	}
	ms.clientsLock.Unlock()

	ms.log.Printf("removed connection for user %q", c.user.Id)
}

// Shutdown stops every open client. In-flight sends complete; the
// clients notice their stop channel and close their connections.
func (ms *MessagingServer) Shutdown(ctx context.Context) error {
	ms.log.Println("shutting down messaging server")

	ms.clientsLock.Lock()
	for c := range ms.clients {
		c.stopClient()
	}
	ms.clientsLock.Unlock()

	return ctx.Err()
}
