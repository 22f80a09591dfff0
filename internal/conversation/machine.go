// Package conversation sequences user actions against the thread registry,
// the message loader and the remote store. It owns which thread is active
// and which messages are displayed.
//
// Every mutation of that state happens under one mutex; network calls run
// outside it. Work tied to a thread runs under the context of that thread's
// activation, and work tied to a session runs under the session's context,
// so switching threads or signing out discards late results.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/adamavenir/coverchat/internal/auth"
	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/db"
	"github.com/adamavenir/coverchat/internal/loader"
	"github.com/adamavenir/coverchat/internal/poller"
	"github.com/adamavenir/coverchat/internal/registry"
	"github.com/adamavenir/coverchat/internal/remote"
	"github.com/adamavenir/coverchat/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Cache persists local bookkeeping across restarts. db.Cache implements it.
type Cache interface {
	SaveThreads(threads []types.Thread) error
	SaveActive(profileID, threadID string) error
	Load() (db.Snapshot, error)
	Clear() error
}

// Options configures a Machine. Store, Chatter and Session are required.
type Options struct {
	Store        remote.Store
	Chatter      remote.Chatter
	Session      auth.Source
	Cache        Cache
	Logger       *zap.Logger
	PollInterval time.Duration

	Now       func() time.Time
	NewThread func() (string, error)
}

// Machine is the conversation state machine.
type Machine struct {
	store   remote.Store
	chatter remote.Chatter
	session auth.Source
	cache   Cache
	loader  *loader.Loader
	logger  *zap.Logger
	poller  *poller.Poller

	now       func() time.Time
	newThread func() (string, error)

	base      context.Context
	stop      context.CancelFunc
	group     errgroup.Group
	sessionMu sync.Mutex

	mu         sync.Mutex
	closed     bool
	registry   *registry.Registry
	active     string
	display    []types.Message
	generation uint64
	lastErr    string
	used       map[string]bool // threads with a user message sent
	rating     map[string]bool // feedback requests in flight
	current    *types.Session
	profileID  string

	// Refreshes are numbered when issued; a snapshot older than the last
	// one applied is dropped.
	refreshIssued  uint64
	refreshApplied uint64

	epoch    context.Context
	endEpoch context.CancelFunc

	activation       context.Context
	cancelActivation context.CancelFunc

	subscribers []chan struct{}
}

// New builds an idle machine. Call Restore and SetSession to bring it up.
func New(opts Options) *Machine {
	store := opts.Store
	if store == nil {
		store = remote.Unavailable{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newThread := opts.NewThread
	if newThread == nil {
		newThread = core.NewThreadID
	}
	base, stop := context.WithCancel(context.Background())
	epoch, endEpoch := context.WithCancel(base)

	m := &Machine{
		store:     store,
		chatter:   opts.Chatter,
		session:   opts.Session,
		cache:     opts.Cache,
		loader:    loader.New(store, logger),
		logger:    logger,
		now:       now,
		newThread: newThread,
		base:      base,
		stop:      stop,
		registry:  registry.New(),
		display:   loader.Greeting(),
		used:      map[string]bool{},
		rating:    map[string]bool{},
		epoch:     epoch,
		endEpoch:  endEpoch,
	}
	m.poller = &poller.Poller{
		Interval: opts.PollInterval,
		Refresh:  m.RefreshThreads,
		Logger:   logger.Named("poller"),
	}
	return m
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{
		ActiveThread: m.active,
		State:        m.stateLocked(),
		Messages:     copyMessages(m.display),
		Threads:      m.registry.List(),
		Error:        m.lastErr,
		SignedIn:     m.current != nil,
	}
}

// State returns the lifecycle state of the active thread.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Subscribe returns a channel that receives a value after every state
// change. Notifications coalesce; the channel is closed by Close.
func (m *Machine) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch
	}
	m.subscribers = append(m.subscribers, ch)
	return ch
}

// Wait blocks until background loads and refreshes have finished.
func (m *Machine) Wait() {
	_ = m.group.Wait()
}

// Close stops polling, cancels outstanding work and waits for it.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	m.mu.Unlock()

	m.poller.Stop()
	m.stop()
	m.Wait()
}

func (m *Machine) stateLocked() State {
	if m.active == "" {
		return Idle
	}
	if thread, ok := m.registry.Get(m.active); ok && !thread.Ephemeral {
		return Persisted
	}
	if hasUserMessage(m.display) {
		return Active
	}
	return Fresh
}

func (m *Machine) notifyLocked() {
	for _, ch := range m.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// goLocked runs fn in the background unless the machine is closed.
func (m *Machine) goLocked(fn func()) {
	if m.closed {
		return
	}
	m.group.Go(func() error {
		fn()
		return nil
	})
}

// activateLocked swaps the active thread and its display in one step and
// cancels whatever the previous activation had in flight.
func (m *Machine) activateLocked(id string, display []types.Message) (context.Context, uint64) {
	if m.cancelActivation != nil {
		m.cancelActivation()
	}
	m.active = id
	m.display = display
	m.generation++
	if id == "" {
		m.activation, m.cancelActivation = nil, nil
		return nil, m.generation
	}
	m.activation, m.cancelActivation = context.WithCancel(m.epoch)
	return m.activation, m.generation
}

// loadLocked starts a background history load for the active thread.
func (m *Machine) loadLocked(ctx context.Context, threadID string, generation uint64) {
	m.goLocked(func() {
		result, err := m.loader.Load(ctx, threadID)
		if err != nil {
			if remote.IsAuthExpired(err) {
				m.expire()
			}
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if ctx.Err() != nil || generation != m.generation || m.active != threadID {
			return
		}
		if !result.Available || !loader.CanApply(m.display) {
			return
		}
		m.display = result.Messages
		m.generation++
		m.notifyLocked()
	})
}

func (m *Machine) persistLocked() {
	if m.cache == nil {
		return
	}
	if err := m.cache.SaveThreads(m.registry.List()); err != nil {
		m.logger.Warn("cache threads failed", zap.Error(err))
	}
	if err := m.cache.SaveActive(m.profileID, m.active); err != nil {
		m.logger.Warn("cache active thread failed", zap.Error(err))
	}
}

// scoped ties ctx to the session epoch so signing out abandons the call.
func scoped(ctx, epoch context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(epoch, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func newMessageID() string {
	return uuid.NewString()
}
