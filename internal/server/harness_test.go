package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/messenger-chat/messenger/internal/model"
)

// frameRecorder captures outbound frames per connection and, together with
// recordingStore, keeps a global event log to assert ordering between
// persistence and delivery.
type frameRecorder struct {
	mu     sync.Mutex
	frames map[*Client][]any
	events *eventLog
}

func newFrameRecorder(events *eventLog) *frameRecorder {
	return &frameRecorder{frames: make(map[*Client][]any), events: events}
}

func (r *frameRecorder) send(c *Client, frame any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[c] = append(r.frames[c], frame)
	if r.events != nil {
		r.events.add("deliver")
	}
	return true
}

func (r *frameRecorder) framesFor(c *Client) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.frames[c]...)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeValidator resolves tokens from a fixed table.
type fakeValidator struct {
	users map[string]*model.User
}

func (v *fakeValidator) Validate(_ context.Context, token string) (*model.User, error) {
	if user, ok := v.users[token]; ok {
		return user, nil
	}
	return nil, errors.New("session validation failed")
}

// fakeStore is an in-memory MessageStore that records persistence calls.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]*model.User
	channels map[int64]*model.Channel
	nextID   int64
	persists int
	failWith error
	events   *eventLog
}

func newFakeStore(events *eventLog) *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*model.User),
		channels: make(map[int64]*model.Channel),
		events:   events,
	}
}

func (s *fakeStore) addUser(id int64, username string) *model.User {
	user := &model.User{ID: id, Username: username}
	s.users[id] = user
	return user
}

func (s *fakeStore) addChannel(id int64, name string, members ...int64) *model.Channel {
	channel := &model.Channel{ID: id, Name: name, Members: members}
	s.channels[id] = channel
	return channel
}

func (s *fakeStore) persistCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persists
}

func (s *fakeStore) persist(msg *model.Message) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.nextID++
	msg.ID = s.nextID
	msg.SentAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if sender, ok := s.users[msg.SenderID]; ok {
		msg.SenderUsername = sender.Username
	}
	s.persists++
	if s.events != nil {
		s.events.add("persist")
	}
	return msg, nil
}

func (s *fakeStore) SendChannelMessage(_ context.Context, senderID, channelID int64, content string) (*model.Message, error) {
	return s.persist(&model.Message{SenderID: senderID, ChannelID: channelID, Content: content})
}

func (s *fakeStore) SendDirectMessage(_ context.Context, senderID, receiverID int64, content string) (*model.Message, error) {
	return s.persist(&model.Message{SenderID: senderID, ReceiverID: receiverID, Content: content})
}

func (s *fakeStore) GetChannel(_ context.Context, channelID int64) (*model.Channel, error) {
	if channel, ok := s.channels[channelID]; ok {
		return channel, nil
	}
	return nil, model.ErrNotFound
}

func (s *fakeStore) GetUser(_ context.Context, userID int64) (*model.User, error) {
	if user, ok := s.users[userID]; ok {
		return user, nil
	}
	return nil, model.ErrNotFound
}

// testHarness bundles a registry with gate/router/presence wired to fakes.
type testHarness struct {
	registry  *registry
	gate      *authGate
	router    *broadcastRouter
	presence  *presenceNotifier
	recorder  *frameRecorder
	store     *fakeStore
	validator *fakeValidator
	events    *eventLog
}

func newTestHarness() *testHarness {
	events := &eventLog{}
	recorder := newFrameRecorder(events)
	store := newFakeStore(events)
	validator := &fakeValidator{users: make(map[string]*model.User)}
	reg := newRegistry()
	logger := zerolog.Nop()

	presence := &presenceNotifier{registry: reg, send: recorder.send}
	router := &broadcastRouter{store: store, registry: reg, send: recorder.send, log: logger}
	gate := &authGate{
		validator: validator,
		registry:  reg,
		router:    router,
		presence:  presence,
		send:      recorder.send,
		log:       logger,
	}
	return &testHarness{
		registry:  reg,
		gate:      gate,
		router:    router,
		presence:  presence,
		recorder:  recorder,
		store:     store,
		validator: validator,
		events:    events,
	}
}

func newTestClient() *Client {
	return &Client{
		id:    uuid.NewString(),
		send:  make(chan []byte, 16),
		state: stateConnected,
	}
}

// connect adds an unauthenticated client to the registry.
func (h *testHarness) connect() *Client {
	c := newTestClient()
	h.registry.add(c)
	return c
}

// connectAuthenticated adds a client and registers it under the user's
// identity, as the gate would on successful auth.
func (h *testHarness) connectAuthenticated(user *model.User) *Client {
	c := h.connect()
	c.setAuthenticated(user)
	h.registry.register(user.ID, c)
	return c
}
