package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/db"
	"github.com/adamavenir/coverchat/internal/remote"
	"github.com/adamavenir/coverchat/internal/types"
)

type fakeSession struct {
	mu      sync.Mutex
	current *types.Session
	expired int
}

func (s *fakeSession) Current() *types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(s.current)
}

func (s *fakeSession) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.expired++
}

func (s *fakeSession) expiredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// fakeStore is an in-memory history server. Gates let tests hold a call
// open until they close the channel.
type fakeStore struct {
	mu sync.Mutex

	threads     []types.Thread
	history     map[string][]types.Message
	historyGate map[string]chan struct{}
	historyErr  error
	listGate    chan struct{}
	feedback    map[string]types.Feedback

	listErr      error
	deleteErr    error
	deleteResult int
	feedbackErr  error
	feedbackGate chan struct{}
	renameErr    error

	listCalls     int
	historyCalls  int
	deleteCalls   int
	feedbackCalls int
	renameCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		history:     map[string][]types.Message{},
		historyGate: map[string]chan struct{}{},
		feedback:    map[string]types.Feedback{},
	}
}

// ListThreads answers with the list as it stood when the call arrived. A
// set listGate holds back the next answer only.
func (s *fakeStore) ListThreads(ctx context.Context) ([]types.Thread, error) {
	s.mu.Lock()
	s.listCalls++
	err := s.listErr
	threads := append([]types.Thread(nil), s.threads...)
	gate := s.listGate
	s.listGate = nil
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return threads, nil
}

func (s *fakeStore) History(ctx context.Context, threadID string) ([]types.Message, error) {
	s.mu.Lock()
	s.historyCalls++
	gate := s.historyGate[threadID]
	err := s.historyErr
	messages := append([]types.Message(nil), s.history[threadID]...)
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *fakeStore) DeleteThread(ctx context.Context, threadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	kept := s.threads[:0]
	for _, thread := range s.threads {
		if thread.ID != threadID {
			kept = append(kept, thread)
		}
	}
	s.threads = kept
	delete(s.history, threadID)
	return s.deleteResult, nil
}

func (s *fakeStore) DeleteAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	deleted := 0
	for _, messages := range s.history {
		deleted += len(messages)
	}
	s.threads = nil
	s.history = map[string][]types.Message{}
	return deleted, nil
}

func (s *fakeStore) SetFeedback(ctx context.Context, messageID string, feedback types.Feedback) error {
	s.mu.Lock()
	s.feedbackCalls++
	gate := s.feedbackGate
	err := s.feedbackErr
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.feedback[messageID] = feedback
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) RenameThread(ctx context.Context, threadID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renameCalls++
	if s.renameErr != nil {
		return s.renameErr
	}
	for i := range s.threads {
		if s.threads[i].ID == threadID {
			s.threads[i].Title = title
		}
	}
	return nil
}

func (s *fakeStore) addThread(id string, messages ...types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = append(s.threads, types.Thread{
		ID:           id,
		Title:        "Thread " + id,
		UpdatedAt:    time.Date(2025, 3, 1, 9, len(s.threads), 0, 0, time.UTC),
		MessageCount: len(messages),
	})
	s.history[id] = messages
}

func (s *fakeStore) gateHistory(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.historyGate[id] = gate
	return gate
}

func (s *fakeStore) gateList() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.listGate = gate
	return gate
}

func (s *fakeStore) renames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renameCalls
}

func (s *fakeStore) set(fn func(*fakeStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeStore) calls() (list, history, del, feedback int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls, s.historyCalls, s.deleteCalls, s.feedbackCalls
}

// fakeChatter plays the server side of POST /api/chat: it stores both
// messages and titles the thread from its first message.
type fakeChatter struct {
	store *fakeStore

	mu    sync.Mutex
	err   error
	calls []remote.ChatRequest
}

func (c *fakeChatter) Chat(ctx context.Context, req remote.ChatRequest) (remote.ChatResponse, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	n := len(c.calls)
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return remote.ChatResponse{}, err
	}

	assistantID := fmt.Sprintf("asst-%d", n)
	reply := "Happy to help with that."
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	history := c.store.history[req.ThreadID]
	if len(history) == 0 {
		c.store.threads = append(c.store.threads, types.Thread{
			ID:    req.ThreadID,
			Title: core.DeriveTitle(req.Message),
		})
	}
	history = append(history,
		types.Message{ID: fmt.Sprintf("user-%d", n), Role: types.RoleUser, Content: req.Message},
		types.Message{ID: assistantID, Role: types.RoleAssistant, Content: reply, RemoteID: assistantID},
	)
	c.store.history[req.ThreadID] = history
	for i := range c.store.threads {
		if c.store.threads[i].ID == req.ThreadID {
			c.store.threads[i].UpdatedAt = time.Date(2025, 3, 2, 0, 0, n, 0, time.UTC)
			c.store.threads[i].MessageCount = len(history)
		}
	}
	return remote.ChatResponse{Reply: reply, AssistantMessageID: assistantID}, nil
}

func (c *fakeChatter) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *fakeChatter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type memoryCache struct {
	mu   sync.Mutex
	snap db.Snapshot
}

func (c *memoryCache) SaveThreads(threads []types.Thread) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Threads = append([]types.Thread(nil), threads...)
	return nil
}

func (c *memoryCache) SaveActive(profileID, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.ProfileID = profileID
	c.snap.ActiveThread = threadID
	return nil
}

func (c *memoryCache) Load() (db.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, nil
}

func (c *memoryCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = db.Snapshot{}
	return nil
}

func testSession() *types.Session {
	return &types.Session{Token: "sess-abc", ProfileID: "WORK42"}
}

func sequentialIDs() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("thrd-%08d", n), nil
	}
}

type fixture struct {
	m       *Machine
	store   *fakeStore
	chatter *fakeChatter
	session *fakeSession
	cache   *memoryCache
}

// newFixture returns a signed-in machine whose first refresh has finished.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := newIdleFixture(t)
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	return f
}

// newIdleFixture returns a machine that has not seen a session yet.
func newIdleFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	f := &fixture{
		store:   store,
		chatter: &fakeChatter{store: store},
		session: &fakeSession{current: testSession()},
		cache:   &memoryCache{},
	}
	f.m = New(Options{
		Store:        store,
		Chatter:      f.chatter,
		Session:      f.session,
		Cache:        f.cache,
		PollInterval: time.Hour,
		NewThread:    sequentialIDs(),
	})
	t.Cleanup(f.m.Close)
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func threeMessages() []types.Message {
	return []types.Message{
		{ID: "r1", Role: types.RoleUser, Content: "Here is my resume"},
		{ID: "r2", Role: types.RoleAssistant, Content: "Thanks, reviewing.", RemoteID: "r2"},
		{ID: "r3", Role: types.RoleUser, Content: "Any notes?"},
	}
}

func threadIDs(view View) []string {
	ids := make([]string, 0, len(view.Threads))
	for _, thread := range view.Threads {
		ids = append(ids, thread.ID)
	}
	return ids
}
