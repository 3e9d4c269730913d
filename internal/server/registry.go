package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/teris-io/shortid"
)

type SessionId string

// Session records one live connection for a user. The registry owns
// the mapping; the network transport belongs to the Client.
type Session struct {
	Id          SessionId
	UserId      string
	ConnectedAt time.Time
	client      *Client
}

// ConnectionRegistry tracks which users currently hold live sessions.
// It is in-memory only and starts empty on every process start: live
// presence is transient by definition. All methods are safe for
// concurrent use.
type ConnectionRegistry struct {
	log *log.Logger

	mu       sync.RWMutex
	sessions map[SessionId]*Session
	byUser   map[string]map[SessionId]*Session
}

func NewConnectionRegistry(logger *log.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		log:      logger,
		sessions: make(map[SessionId]*Session),
		byUser:   make(map[string]map[SessionId]*Session),
	}
}

// Register adds a live session for userId. Registering the same
// connection twice yields two independent sessions, which is what
// multi-tab clients need.
func (cr *ConnectionRegistry) Register(userId string, client *Client) (SessionId, error) {
	if userId == "" {
		return "", fmt.Errorf("user id cannot be empty")
	}

	sid, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	session := &Session{
		Id:          SessionId(sid),
		UserId:      userId,
		ConnectedAt: time.Now().UTC(),
		client:      client,
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	cr.sessions[session.Id] = session
	if cr.byUser[userId] == nil {
		cr.byUser[userId] = make(map[SessionId]*Session)
	}
	cr.byUser[userId][session.Id] = session

	cr.log.Printf("registered session %q for user %q", session.Id, userId)
	return session.Id, nil
}

// Unregister removes a session. Duplicate disconnect events are
// tolerated: removing an absent session is a no-op.
func (cr *ConnectionRegistry) Unregister(id SessionId) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	session, ok := cr.sessions[id]
	if !ok {
		return
	}

	delete(cr.sessions, id)
	if userSessions, ok := cr.byUser[session.UserId]; ok {
		delete(userSessions, id)
		if len(userSessions) == 0 {
			delete(cr.byUser, session.UserId)
		}
	}

	cr.log.Printf("unregistered session %q for user %q", id, session.UserId)
}

// LiveSessionsFor returns a snapshot of the user's session ids at call
// time. A session may disconnect between snapshot and use; pushing to
// it then simply fails.
func (cr *ConnectionRegistry) LiveSessionsFor(userId string) []SessionId {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	ids := make([]SessionId, 0, len(cr.byUser[userId]))
	for id := range cr.byUser[userId] {
		ids = append(ids, id)
	}

	return ids
}

// Get resolves a session id to its client so a message can be pushed.
func (cr *ConnectionRegistry) Get(id SessionId) (*Client, bool) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	session, ok := cr.sessions[id]
	if !ok {
		return nil, false
	}

	return session.client, true
}

func (cr *ConnectionRegistry) Len() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	return len(cr.sessions)
}
