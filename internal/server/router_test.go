package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/siphyr/dmserver/internal/database"
	"github.com/siphyr/dmserver/internal/stats"
	"github.com/siphyr/dmserver/internal/store"
	"github.com/siphyr/dmserver/internal/testutil"
	"github.com/siphyr/dmserver/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, db database.MessagingRepository, su *stats.MockStatsUpdater) (*DeliveryRouter, *ConnectionRegistry) {
	logger := testutil.TestLogger(t)
	registry := NewConnectionRegistry(logger)
	st := store.NewMessageStore(logger, db)
	return NewDeliveryRouter(logger, st, registry, su), registry
}

func testClient(buffer int) *Client {
	return &Client{
		log:  log.New(io.Discard, "", 0),
		send: make(chan *ServerMessage, buffer),
		stop: make(chan struct{}),
	}
}

func persistedMessage() database.Message {
	return database.Message{Id: 1, SenderId: "alice", RecipientId: "bob", Content: "hey", CreatedAt: Now()}
}

// sequentialRepo assigns incrementing ids in insert order, like the
// Postgres bigserial does.
type sequentialRepo struct {
	database.MockMessagingRepository

	mu     sync.Mutex
	nextId int64
}

func (r *sequentialRepo) CreateMessage(params database.CreateMessageParams) (database.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextId++
	return database.Message{
		Id:          r.nextId,
		SenderId:    params.SenderId,
		RecipientId: params.RecipientId,
		Content:     params.Content,
		CreatedAt:   params.CreatedAt,
	}, nil
}

func TestSendFansOutToBothParticipants(t *testing.T) {
	db := &database.MockMessagingRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.Anything).Return(persistedMessage(), nil)

	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Return()

	router, registry := newTestRouter(t, db, su)

	aliceTab := testClient(4)
	bobPhone := testClient(4)
	bobLaptop := testClient(4)
	_, err := registry.Register("alice", aliceTab)
	require.NoError(t, err)
	_, err = registry.Register("bob", bobPhone)
	require.NoError(t, err)
	_, err = registry.Register("bob", bobLaptop)
	require.NoError(t, err)

	msg, err := router.Send(context.Background(), "alice", "bob", "hey")
	require.NoError(t, err, "expected send to succeed")
	assert.Equal(t, int64(1), msg.Id, "expected the persisted id back")

	// each live session gets exactly one push carrying the same id
	for _, c := range []*Client{aliceTab, bobPhone, bobLaptop} {
		require.Len(t, c.send, 1, "expected exactly one push per session")
		pushed := <-c.send
		require.NotNil(t, pushed.Message, "expected a new message event")
		assert.Equal(t, msg.Id, pushed.Message.Id, "expected push to carry the persisted id")
		assert.Equal(t, "hey", pushed.Message.Content)
	}
}

func TestSequentialSendsPushInAppendOrder(t *testing.T) {
	db := &sequentialRepo{}
	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Return()

	router, registry := newTestRouter(t, db, su)

	bob := testClient(8)
	_, err := registry.Register("bob", bob)
	require.NoError(t, err)

	const sends = 5
	for i := 0; i < sends; i++ {
		_, err := router.Send(context.Background(), "alice", "bob", fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	// each Send returned before the next started, so the pushes sit on
	// the session's channel in id order
	require.Len(t, bob.send, sends, "expected one push per send")
	var prev int64
	for i := 0; i < sends; i++ {
		pushed := <-bob.send
		require.NotNil(t, pushed.Message, "expected a new message event")
		assert.Greater(t, pushed.Message.Id, prev, "expected pushes in append order")
		prev = pushed.Message.Id
	}
}

func TestSendDoesNotPushToUnrelatedUsers(t *testing.T) {
	db := &database.MockMessagingRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.Anything).Return(persistedMessage(), nil)

	su := &stats.MockStatsUpdater{}
	su.On("Incr", mock.Anything).Return()

	router, registry := newTestRouter(t, db, su)

	eve := testClient(4)
	_, err := registry.Register("eve", eve)
	require.NoError(t, err)

	_, err = router.Send(context.Background(), "alice", "bob", "hey")
	require.NoError(t, err)

	assert.Len(t, eve.send, 0, "expected no push to an unrelated session")
}

func TestSendFailsWithoutPushWhenStorageFails(t *testing.T) {
	db := &database.MockMessagingRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.Anything).Return(database.Message{}, errors.New("connection refused"))

	su := &stats.MockStatsUpdater{}

	router, registry := newTestRouter(t, db, su)

	bob := testClient(4)
	_, err := registry.Register("bob", bob)
	require.NoError(t, err)

	_, err = router.Send(context.Background(), "alice", "bob", "hey")
	assert.Error(t, err, "expected send to fail")
	assert.True(t, store.IsStorageError(err), "expected StorageError, got %T", err)
	assert.Len(t, bob.send, 0, "push must never precede a durable commit")
	su.AssertNotCalled(t, "Incr", statMessagesDelivered)
}

func TestSendValidationFailure(t *testing.T) {
	db := &database.MockMessagingRepository{}
	su := &stats.MockStatsUpdater{}

	router, _ := newTestRouter(t, db, su)

	_, err := router.Send(context.Background(), "alice", "alice", "hey")
	assert.True(t, store.IsValidationError(err), "expected ValidationError, got %T", err)
	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestSendCancelledContext(t *testing.T) {
	db := &database.MockMessagingRepository{}
	su := &stats.MockStatsUpdater{}

	router, _ := newTestRouter(t, db, su)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := router.Send(ctx, "alice", "bob", "hey")
	assert.ErrorIs(t, err, context.Canceled, "expected context error")
	db.AssertNotCalled(t, "CreateMessage", mock.Anything)
}

func TestPushRetriesOnceThenUnregisters(t *testing.T) {
	db := &database.MockMessagingRepository{}
	defer db.AssertExpectations(t)
	db.On("CreateMessage", mock.Anything).Return(persistedMessage(), nil)

	su := &stats.MockStatsUpdater{}
	su.On("Incr", statMessagesStored).Return()
	su.On("Incr", statDeliveryFailures).Return().Once()

	router, registry := newTestRouter(t, db, su)

	// zero capacity: every queue attempt fails immediately
	stuck := testClient(0)
	sid, err := registry.Register("bob", stuck)
	require.NoError(t, err)

	_, err = router.Send(context.Background(), "alice", "bob", "hey")
	require.NoError(t, err, "delivery failure must not fail the send")

	_, ok := registry.Get(sid)
	assert.False(t, ok, "expected dead session to be unregistered")
	su.AssertExpectations(t)
}

func TestPushToStaleSessionIsGraceful(t *testing.T) {
	db := &database.MockMessagingRepository{}
	su := &stats.MockStatsUpdater{}

	logger := testutil.TestLogger(t)
	registry := NewConnectionRegistry(logger)
	router := NewDeliveryRouter(logger, store.NewMessageStore(logger, db), registry, su)

	// a session id that was never registered, as after a disconnect race
	event := NewMessageEvent(types.Message{Id: 1, SenderId: "alice", RecipientId: "bob", Content: "hey", CreatedAt: Now()})
	assert.NotPanics(t, func() {
		router.push(SessionId("gone"), event)
	}, "pushing to a dead handle must not panic")
}
