package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/adamavenir/coverchat/internal/core"
	"github.com/adamavenir/coverchat/internal/loader"
	"github.com/adamavenir/coverchat/internal/remote"
	"github.com/adamavenir/coverchat/internal/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.NewChat(false))
	view := f.m.Snapshot()
	require.Len(t, view.Threads, 1)
	require.Equal(t, Fresh, view.State)
	t1 := view.ActiveThread
	require.True(t, view.Threads[0].Ephemeral)

	require.NoError(t, f.m.SendMessage(ctx, "Review my resume", nil))
	f.m.Wait()
	view = f.m.Snapshot()
	require.Equal(t, t1, view.ActiveThread)
	require.Len(t, view.Threads, 1)
	require.True(t, strings.HasPrefix("Review my resume", view.Threads[0].Title))
	require.False(t, view.Threads[0].Ephemeral)
	require.Equal(t, Persisted, view.State)

	_, historyBefore, _, _ := f.store.calls()
	require.NoError(t, f.m.SelectThread(t1))
	f.m.Wait()
	_, historyAfter, _, _ := f.store.calls()
	require.Equal(t, historyBefore, historyAfter, "reselecting the active thread must not load")

	f.store.set(func(s *fakeStore) { s.deleteResult = 2 })
	require.NoError(t, f.m.DeleteThread(ctx, t1))
	view = f.m.Snapshot()
	require.Empty(t, view.Threads)
	require.Empty(t, view.ActiveThread)
	require.Equal(t, Idle, view.State)
	require.Equal(t, loader.Greeting(), view.Messages)
}

func TestSendTransitionsFreshToActive(t *testing.T) {
	f := newFixture(t)
	// History disabled: the thread is never listed, so it stays Active.
	f.store.set(func(s *fakeStore) { s.listErr = remote.ErrUnavailable })

	require.NoError(t, f.m.NewChat(false))
	require.Equal(t, Fresh, f.m.State())
	require.NoError(t, f.m.SendMessage(context.Background(), "  Draft a cover letter  ", []string{"file-1"}))
	f.m.Wait()

	view := f.m.Snapshot()
	require.Equal(t, Active, view.State)
	require.Len(t, view.Messages, 3)
	require.Equal(t, types.RoleUser, view.Messages[1].Role)
	require.Equal(t, "Draft a cover letter", view.Messages[1].Content)
	require.False(t, view.Messages[1].Pending)
	require.Equal(t, types.RoleAssistant, view.Messages[2].Role)
	require.Equal(t, "asst-1", view.Messages[2].RemoteID)
	require.Equal(t, "Draft a cover letter", view.Threads[0].Title)
	require.True(t, view.Threads[0].Ephemeral)

	req := f.chatter.calls[0]
	require.Equal(t, view.ActiveThread, req.ThreadID)
	require.Equal(t, []string{"file-1"}, req.FileIDs)
}

func TestSendFromIdleCreatesThread(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.SendMessage(context.Background(), "hello", nil))
	f.m.Wait()
	view := f.m.Snapshot()
	require.NotEmpty(t, view.ActiveThread)
	require.Len(t, view.Threads, 1)
}

func TestSendValidation(t *testing.T) {
	f := newIdleFixture(t)
	f.session.Expire()
	require.ErrorIs(t, f.m.SendMessage(context.Background(), "hi", nil), ErrNoSession)

	f = newFixture(t)
	require.ErrorIs(t, f.m.SendMessage(context.Background(), "   ", nil), ErrEmptyMessage)
	require.Zero(t, f.chatter.callCount())
	require.Equal(t, Idle, f.m.State())
}

func TestSendFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t)
	f.chatter.setErr(&remote.APIError{Status: 500, Message: "model offline"})
	require.NoError(t, f.m.NewChat(false))

	err := f.m.SendMessage(context.Background(), "hi", nil)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	require.True(t, opErr.Retryable())
	require.Equal(t, "send", opErr.Op)

	view := f.m.Snapshot()
	require.Len(t, view.Messages, 2)
	require.Equal(t, "hi", view.Messages[1].Content)
	require.False(t, view.Messages[1].Pending)
	require.NotEmpty(t, view.Error)
}

func TestSendAuthExpiredTearsDownSession(t *testing.T) {
	f := newFixture(t)
	f.chatter.setErr(&remote.APIError{Status: 401, Message: "expired"})
	require.NoError(t, f.m.NewChat(false))

	require.ErrorIs(t, f.m.SendMessage(context.Background(), "hi", nil), ErrAuthExpired)
	f.m.Wait()

	require.Equal(t, 1, f.session.expiredCount())
	view := f.m.Snapshot()
	require.False(t, view.SignedIn)
	require.Equal(t, Idle, view.State)
	require.Empty(t, view.Threads)
}

func TestApplySafety(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-r", threeMessages()...)
	f.store.addThread("thrd-s", threeMessages()...)
	f.m.SetSession(f.session.Current())
	f.m.Wait()

	// Fresh display is replaced by the loaded history.
	require.NoError(t, f.m.SelectThread("thrd-r"))
	f.m.Wait()
	require.Equal(t, threeMessages(), f.m.Snapshot().Messages)

	// Once the user has typed, a late load is discarded.
	gate := f.store.gateHistory("thrd-s")
	require.NoError(t, f.m.SelectThread("thrd-s"))
	require.NoError(t, f.m.SendMessage(context.Background(), "hi", nil))
	close(gate)
	f.m.Wait()

	view := f.m.Snapshot()
	require.Equal(t, "thrd-s", view.ActiveThread)
	require.Equal(t, core.GreetingText, view.Messages[0].Content)
	require.Equal(t, "hi", view.Messages[1].Content)
	for _, msg := range view.Messages {
		require.NotEqual(t, "r1", msg.ID)
	}
}

func TestSelectCancelsSupersededLoad(t *testing.T) {
	f := newIdleFixture(t)
	msgsA := []types.Message{{ID: "a1", Role: types.RoleUser, Content: "thread A"}}
	msgsB := []types.Message{{ID: "b1", Role: types.RoleUser, Content: "thread B"}}
	f.store.addThread("thrd-a", msgsA...)
	f.store.addThread("thrd-b", msgsB...)
	f.m.SetSession(f.session.Current())
	f.m.Wait()

	gateA := f.store.gateHistory("thrd-a")
	require.NoError(t, f.m.SelectThread("thrd-a"))
	require.Equal(t, "thrd-a", f.m.Snapshot().ActiveThread)
	require.NoError(t, f.m.SelectThread("thrd-b"))
	waitFor(t, "thread B history", func() bool {
		msgs := f.m.Snapshot().Messages
		return len(msgs) == 1 && msgs[0].ID == "b1"
	})

	close(gateA)
	f.m.Wait()
	view := f.m.Snapshot()
	require.Equal(t, "thrd-b", view.ActiveThread)
	require.Equal(t, msgsB, view.Messages)
}

func TestSelectUnavailableFallsBackToGreeting(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-empty")
	f.m.SetSession(f.session.Current())
	f.m.Wait()

	require.NoError(t, f.m.SelectThread("thrd-empty"))
	f.m.Wait()
	require.Equal(t, loader.Greeting(), f.m.Snapshot().Messages)
	require.ErrorIs(t, f.m.SelectThread("thrd-missing"), ErrUnknownThread)
}

func TestSessionTeardownDiscardsInFlightLoad(t *testing.T) {
	tests := []struct {
		name string
		next *types.Session
	}{
		{"sign out", nil},
		{"workspace switch", &types.Session{Token: "sess-other", ProfileID: "OTHER1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIdleFixture(t)
			f.store.addThread("thrd-a", threeMessages()...)
			f.m.SetSession(f.session.Current())
			f.m.Wait()

			gate := f.store.gateHistory("thrd-a")
			require.NoError(t, f.m.SelectThread("thrd-a"))
			waitFor(t, "history request", func() bool {
				_, history, _, _ := f.store.calls()
				return history == 1
			})

			f.store.set(func(s *fakeStore) { s.listErr = remote.ErrUnavailable })
			f.m.SetSession(tt.next)
			changes := f.m.Subscribe()
			close(gate)
			f.m.Wait()

			select {
			case <-changes:
				t.Fatalf("late history load changed state")
			default:
			}
			view := f.m.Snapshot()
			require.Empty(t, view.ActiveThread)
			require.Equal(t, loader.Greeting(), view.Messages)
			require.Empty(t, view.Threads)
		})
	}
}

func TestLoadAuthExpiredTearsDownSession(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-a", threeMessages()...)
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	f.store.set(func(s *fakeStore) { s.historyErr = &remote.APIError{Status: 401, Message: "expired"} })

	require.NoError(t, f.m.SelectThread("thrd-a"))
	f.m.Wait()

	require.Equal(t, 1, f.session.expiredCount())
	view := f.m.Snapshot()
	require.False(t, view.SignedIn)
	require.Equal(t, Idle, view.State)
	require.Empty(t, view.Threads)
}

func TestNewChatGuard(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.m.NewChat(false))
	first := f.m.Snapshot().ActiveThread

	require.ErrorIs(t, f.m.NewChat(false), ErrThreadUnused)
	view := f.m.Snapshot()
	require.Len(t, view.Threads, 1)
	require.Equal(t, first, view.ActiveThread)

	require.NoError(t, f.m.NewChat(true))
	view = f.m.Snapshot()
	require.NotEqual(t, first, view.ActiveThread)
	// The unused placeholder is pruned rather than kept beside the new one.
	require.Equal(t, []string{view.ActiveThread}, threadIDs(view))
	require.Equal(t, Fresh, view.State)
}

func TestNewChatKeepsUsedThreads(t *testing.T) {
	f := newFixture(t)
	f.store.set(func(s *fakeStore) { s.listErr = remote.ErrUnavailable })
	require.NoError(t, f.m.NewChat(false))
	require.NoError(t, f.m.SendMessage(context.Background(), "Review my resume", nil))
	f.m.Wait()

	require.NoError(t, f.m.NewChat(false))
	require.Len(t, f.m.Snapshot().Threads, 2)
}

func TestNoDuplicationUnderPolling(t *testing.T) {
	store := newFakeStore()
	store.addThread("thrd-a", threeMessages()...)
	store.addThread("thrd-b")
	session := &fakeSession{current: testSession()}
	m := New(Options{
		Store:        store,
		Chatter:      &fakeChatter{store: store},
		Session:      session,
		PollInterval: 5 * time.Millisecond,
	})
	defer m.Close()
	require.NoError(t, m.NewChat(false))
	m.SetSession(session.Current())

	waitFor(t, "several polls", func() bool {
		list, _, _, _ := store.calls()
		return list >= 5
	})
	want := threadIDs(m.Snapshot())
	require.Len(t, want, 3)

	waitFor(t, "more polls", func() bool {
		list, _, _, _ := store.calls()
		return list >= 10
	})
	require.Equal(t, want, threadIDs(m.Snapshot()))
}

func TestRefreshFailureKeepsRegistry(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-a")
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	require.Len(t, f.m.Snapshot().Threads, 1)

	f.store.set(func(s *fakeStore) { s.listErr = &remote.APIError{Status: 500} })
	f.m.RefreshThreads(context.Background())
	require.Len(t, f.m.Snapshot().Threads, 1)
}

func TestRefreshDropsActiveThreadDeletedElsewhere(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-a", threeMessages()...)
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	require.NoError(t, f.m.SelectThread("thrd-a"))
	f.m.Wait()

	f.store.set(func(s *fakeStore) { s.threads = nil })
	f.m.RefreshThreads(context.Background())
	view := f.m.Snapshot()
	require.Equal(t, Idle, view.State)
	require.Equal(t, loader.Greeting(), view.Messages)
}

func TestStaleThreadListKeepsActiveThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.m.NewChat(false))
	id := f.m.Snapshot().ActiveThread

	// A poll answered before the server knew the thread, delivered late.
	gate := f.store.gateList()
	listBefore, _, _, _ := f.store.calls()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.m.RefreshThreads(ctx)
	}()
	waitFor(t, "held thread list", func() bool {
		list, _, _, _ := f.store.calls()
		return list == listBefore+1
	})

	require.NoError(t, f.m.SendMessage(ctx, "Review my resume", nil))
	f.m.Wait()
	require.Equal(t, Persisted, f.m.State())

	close(gate)
	<-done
	view := f.m.Snapshot()
	require.Equal(t, id, view.ActiveThread)
	require.Equal(t, Persisted, view.State)
	require.Len(t, view.Messages, 3)
	require.Equal(t, []string{id}, threadIDs(view))
}

func TestDeleteActiveResetsToIdle(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-a", threeMessages()...)
	f.store.addThread("thrd-b")
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	require.NoError(t, f.m.SelectThread("thrd-a"))
	f.m.Wait()

	require.NoError(t, f.m.DeleteThread(context.Background(), "thrd-a"))
	view := f.m.Snapshot()
	require.Empty(t, view.ActiveThread)
	require.Equal(t, loader.Greeting(), view.Messages)
	require.Equal(t, []string{"thrd-b"}, threadIDs(view))
}

func TestDeleteInactiveKeepsActive(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-a", threeMessages()...)
	f.store.addThread("thrd-b")
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	require.NoError(t, f.m.SelectThread("thrd-a"))
	f.m.Wait()

	require.NoError(t, f.m.DeleteThread(context.Background(), "thrd-b"))
	view := f.m.Snapshot()
	require.Equal(t, "thrd-a", view.ActiveThread)
	require.Equal(t, threeMessages(), view.Messages)
}

func TestDeleteUnknownThreadIsValidationError(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.m.DeleteThread(context.Background(), "thrd-nope"), ErrUnknownThread)
	_, _, deletes, _ := f.store.calls()
	require.Zero(t, deletes)
}

func TestDeleteUnusedEphemeralSkipsRemote(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.NewChat(false))
	id := f.m.Snapshot().ActiveThread

	require.NoError(t, f.m.DeleteThread(context.Background(), id))
	_, _, deletes, _ := f.store.calls()
	require.Zero(t, deletes)
	require.Equal(t, Idle, f.m.State())
}

func TestDeleteRemoteFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		removed bool
	}{
		{"server error keeps entry", &remote.APIError{Status: 500, Message: "db down"}, false},
		{"history disabled removes locally", &remote.APIError{Status: 503}, true},
		{"network failure removes locally", remote.ErrUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIdleFixture(t)
			f.store.addThread("thrd-a")
			f.m.SetSession(f.session.Current())
			f.m.Wait()
			f.store.set(func(s *fakeStore) { s.deleteErr = tt.err })

			err := f.m.DeleteThread(context.Background(), "thrd-a")
			view := f.m.Snapshot()
			if tt.removed {
				require.NoError(t, err)
				require.Empty(t, view.Threads)
				return
			}
			var opErr *OperationError
			require.ErrorAs(t, err, &opErr)
			require.Equal(t, []string{"thrd-a"}, threadIDs(view))
		})
	}
}

func lastReplyID(t *testing.T, m *Machine) string {
	t.Helper()
	msgs := m.Snapshot().Messages
	last := msgs[len(msgs)-1]
	require.Equal(t, types.RoleAssistant, last.Role)
	return last.ID
}

func TestToggleFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.m.SendMessage(ctx, "Review my resume", nil))
	f.m.Wait()
	id := lastReplyID(t, f.m)

	require.NoError(t, f.m.ToggleFeedback(ctx, id, types.FeedbackUp))
	require.Equal(t, types.FeedbackUp, f.m.Snapshot().Messages[2].Feedback)
	require.Equal(t, types.FeedbackUp, f.store.feedback["asst-1"])

	// Same value again clears it.
	require.NoError(t, f.m.ToggleFeedback(ctx, id, types.FeedbackUp))
	require.Equal(t, types.FeedbackNone, f.m.Snapshot().Messages[2].Feedback)
	require.Equal(t, types.FeedbackNone, f.store.feedback["asst-1"])

	// Rejection reverts.
	f.store.set(func(s *fakeStore) { s.feedbackErr = &remote.APIError{Status: 404, Message: "message not found"} })
	var opErr *OperationError
	require.ErrorAs(t, f.m.ToggleFeedback(ctx, id, types.FeedbackDown), &opErr)
	require.Equal(t, types.FeedbackNone, f.m.Snapshot().Messages[2].Feedback)
}

func TestToggleFeedbackInFlightGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.m.SendMessage(ctx, "Review my resume", nil))
	f.m.Wait()
	id := lastReplyID(t, f.m)

	gate := make(chan struct{})
	f.store.set(func(s *fakeStore) { s.feedbackGate = gate })
	done := make(chan error, 1)
	go func() { done <- f.m.ToggleFeedback(ctx, id, types.FeedbackDown) }()
	waitFor(t, "feedback request", func() bool {
		_, _, _, n := f.store.calls()
		return n == 1
	})
	require.Equal(t, types.FeedbackDown, f.m.Snapshot().Messages[2].Feedback)

	require.ErrorIs(t, f.m.ToggleFeedback(ctx, id, types.FeedbackUp), ErrFeedbackInFlight)
	close(gate)
	require.NoError(t, <-done)
	require.Equal(t, types.FeedbackDown, f.m.Snapshot().Messages[2].Feedback)
}

func TestToggleFeedbackValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.m.NewChat(false))
	greeting := f.m.Snapshot().Messages[0].ID
	require.ErrorIs(t, f.m.ToggleFeedback(ctx, greeting, types.FeedbackUp), ErrUnknownMessage)
	require.ErrorIs(t, f.m.ToggleFeedback(ctx, "nope", types.FeedbackUp), ErrUnknownMessage)
	require.ErrorIs(t, f.m.ToggleFeedback(ctx, greeting, types.Feedback("meh")), ErrInvalidFeedback)
}

func TestRenameThread(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-a")
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	ctx := context.Background()

	require.NoError(t, f.m.RenameThread(ctx, "thrd-a", "Acme application"))
	require.Equal(t, "Acme application", f.m.Snapshot().Threads[0].Title)
	f.m.RefreshThreads(ctx)
	require.Equal(t, "Acme application", f.m.Snapshot().Threads[0].Title)

	f.store.set(func(s *fakeStore) { s.renameErr = &remote.APIError{Status: 400, Message: "title too long"} })
	var opErr *OperationError
	require.ErrorAs(t, f.m.RenameThread(ctx, "thrd-a", "Something else"), &opErr)
	require.Equal(t, "Acme application", f.m.Snapshot().Threads[0].Title)

	require.ErrorIs(t, f.m.RenameThread(ctx, "thrd-a", " "), ErrEmptyTitle)
	require.ErrorIs(t, f.m.RenameThread(ctx, "thrd-x", "x"), ErrUnknownThread)
}

func TestRenameUsedEphemeralThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// The thread list never arrives, so the thread stays ephemeral.
	f.store.set(func(s *fakeStore) { s.listErr = remote.ErrUnavailable })
	require.NoError(t, f.m.NewChat(false))
	id := f.m.Snapshot().ActiveThread

	require.NoError(t, f.m.RenameThread(ctx, id, "Draft"))
	require.Zero(t, f.store.renames(), "an unused thread is not on the server")

	require.NoError(t, f.m.SendMessage(ctx, "Review my resume", nil))
	f.m.Wait()
	require.True(t, f.m.Snapshot().Threads[0].Ephemeral)
	require.NoError(t, f.m.RenameThread(ctx, id, "Acme application"))
	require.Equal(t, 1, f.store.renames())
	var stored string
	f.store.set(func(s *fakeStore) { stored = s.threads[0].Title })
	require.Equal(t, "Acme application", stored)

	// Not stored yet on the server: the local title stands.
	f.store.set(func(s *fakeStore) { s.renameErr = &remote.APIError{Status: 404, Message: "thread not found"} })
	require.NoError(t, f.m.RenameThread(ctx, id, "Globex application"))
	require.Equal(t, "Globex application", f.m.Snapshot().Threads[0].Title)
}

func TestResetHistory(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-a", threeMessages()...)
	f.store.addThread("thrd-b")
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	require.NoError(t, f.m.SelectThread("thrd-a"))
	f.m.Wait()

	require.NoError(t, f.m.ResetHistory(context.Background()))
	view := f.m.Snapshot()
	require.Empty(t, view.Threads)
	require.Equal(t, Idle, view.State)
	threads, err := f.store.ListThreads(context.Background())
	require.NoError(t, err)
	require.Empty(t, threads)
}

func TestLogoutClearsLocalState(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-a")
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	require.NoError(t, f.m.NewChat(false))
	require.Len(t, f.m.Snapshot().Threads, 2)

	f.m.SetSession(nil)
	view := f.m.Snapshot()
	require.False(t, view.SignedIn)
	require.Empty(t, view.Threads)
	require.Equal(t, Idle, view.State)

	snap, err := f.cache.Load()
	require.NoError(t, err)
	require.Empty(t, snap.Threads)
	require.Empty(t, snap.ProfileID)
}

func TestWorkspaceSwitchResets(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-a")
	f.m.SetSession(f.session.Current())
	f.m.Wait()
	require.NoError(t, f.m.SelectThread("thrd-a"))
	f.m.Wait()

	f.store.set(func(s *fakeStore) { s.listErr = remote.ErrUnavailable })
	f.m.SetSession(&types.Session{Token: "sess-other", ProfileID: "OTHER1"})
	f.m.Wait()

	view := f.m.Snapshot()
	require.True(t, view.SignedIn)
	require.Empty(t, view.Threads)
	require.Equal(t, Idle, view.State)
	snap, err := f.cache.Load()
	require.NoError(t, err)
	require.Equal(t, "OTHER1", snap.ProfileID)
}

func TestSetSessionSameWorkspaceIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.NewChat(false))
	f.m.SetSession(testSession())
	require.Len(t, f.m.Snapshot().Threads, 1)
}

func TestRestoreFromCache(t *testing.T) {
	f := newIdleFixture(t)
	f.store.addThread("thrd-1", threeMessages()...)
	updated := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	f.cache.snap.ProfileID = "WORK42"
	f.cache.snap.ActiveThread = "thrd-1"
	f.cache.snap.Threads = []types.Thread{
		{ID: "thrd-1", Title: "Cover letter", UpdatedAt: updated},
		{ID: "thrd-2", Title: core.PlaceholderTitle, UpdatedAt: updated, Ephemeral: true},
		{ID: "thrd-3", Title: "Draft", UpdatedAt: updated, Ephemeral: true},
	}

	require.NoError(t, f.m.Restore())
	view := f.m.Snapshot()
	require.Equal(t, "thrd-1", view.ActiveThread)
	require.ElementsMatch(t, []string{"thrd-1", "thrd-3"}, threadIDs(view))
	require.Equal(t, loader.Greeting(), view.Messages)

	f.m.SetSession(f.session.Current())
	f.m.Wait()
	view = f.m.Snapshot()
	require.Equal(t, threeMessages(), view.Messages)
	require.ElementsMatch(t, []string{"thrd-1", "thrd-3"}, threadIDs(view))
	for _, thread := range view.Threads {
		if thread.ID == "thrd-1" {
			require.Equal(t, "Cover letter", thread.Title)
		}
	}
}

func TestRestoreOtherWorkspaceResetsOnSignIn(t *testing.T) {
	f := newIdleFixture(t)
	f.store.set(func(s *fakeStore) { s.listErr = remote.ErrUnavailable })
	f.cache.snap.ProfileID = "SOMEONE"
	f.cache.snap.Threads = []types.Thread{{ID: "thrd-9", Title: "Theirs"}}
	require.NoError(t, f.m.Restore())
	require.Len(t, f.m.Snapshot().Threads, 1)

	f.m.SetSession(f.session.Current())
	f.m.Wait()
	require.Empty(t, f.m.Snapshot().Threads)
}

func TestSubscribeNotifiesAndClosesOnClose(t *testing.T) {
	f := newFixture(t)
	ch := f.m.Subscribe()
	require.NoError(t, f.m.NewChat(false))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("no change notification")
	}

	f.m.Close()
	_, open := <-ch
	require.False(t, open)
	require.ErrorIs(t, f.m.NewChat(true), ErrClosed)
}

func TestOperationErrorUnwraps(t *testing.T) {
	cause := &remote.APIError{Status: 500, Message: "boom"}
	err := error(&OperationError{Op: "delete", Err: cause})
	var apiErr *remote.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "delete failed: "+cause.Error(), err.Error())
}
