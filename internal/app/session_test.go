package app_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"family-quiz-service/internal/app"
	"family-quiz-service/internal/bank"
	"family-quiz-service/internal/docstore"
	"family-quiz-service/internal/domain"
	"family-quiz-service/internal/identity"
	"family-quiz-service/internal/infra/memory"
)

const (
	correctFirst  = "following me when I drive"
	correctSecond = "grapes without them exploding"
)

func newTestSession(store app.RoomStore, id string, cfg app.Config) *app.Session {
	questions := bank.NewBuilder(bank.NewStaticLoader(bank.DefaultPrompts()), 2)
	return app.NewSession(store, questions, identity.Static(id), cfg)
}

func fastConfig() app.Config {
	return app.Config{RoundDuration: 10 * time.Second, TickInterval: 5 * time.Millisecond}
}

func eventually(t *testing.T, s *app.Session, ok func(domain.ClientView) bool) domain.ClientView {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if view := s.View(); ok(view) {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met; last view %+v", s.View())
	return domain.ClientView{}
}

func loadRoom(t *testing.T, store app.RoomStore, code string) domain.Room {
	t.Helper()
	snap, err := store.Get(context.Background(), app.RoomPath(code))
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	var room domain.Room
	if err := snap.Decode(&room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	return room
}

func TestFullGame(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	host := newTestSession(store, "host", fastConfig())
	defer host.Close()
	guest := newTestSession(store, "guest", fastConfig())
	defer guest.Close()

	code, err := host.CreateRoom(ctx, "  Ann ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	room := loadRoom(t, store, code)
	if room.Status != domain.StatusLobby || room.HostID != "host" || len(room.Questions) != 2 {
		t.Fatalf("unexpected new room %+v", room)
	}
	if room.RoundStartedAt != nil || room.RoundEndsAt != nil || room.RevealAt != nil {
		t.Fatalf("new room must have no timing fields")
	}

	if err := guest.JoinRoom(ctx, code, "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	lobby := eventually(t, host, func(v domain.ClientView) bool { return len(v.Players) == 2 })
	if lobby.TimeLeftMs != 10000 || lobby.CurrentQuestion != nil {
		t.Fatalf("unexpected lobby view %+v", lobby)
	}

	if err := host.StartGame(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, guest, func(v domain.ClientView) bool { return v.Status == domain.StatusPlaying })
	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusPlaying })
	room = loadRoom(t, store, code)
	if room.RoundEndsAt.Sub(*room.RoundStartedAt) != 10*time.Second {
		t.Fatalf("expected ends = start + duration, got %s", room.RoundEndsAt.Sub(*room.RoundStartedAt))
	}

	answer, err := guest.SubmitAnswer(ctx, correctFirst)
	if err != nil {
		t.Fatalf("guest answer: %v", err)
	}
	if !answer.IsCorrect || answer.Scored {
		t.Fatalf("unexpected answer %+v", answer)
	}
	if _, err := host.SubmitAnswer(ctx, "turning red tonight"); err != nil {
		t.Fatalf("host answer: %v", err)
	}

	view := eventually(t, guest, func(v domain.ClientView) bool {
		return v.RevealActive && v.MyAnswer != nil && v.MyAnswer.Scored
	})
	if view.Players[0].ID != "guest" || view.Players[0].Score != 1250 || view.Players[1].Score != 0 {
		t.Fatalf("unexpected standings %+v", view.Players)
	}
	if view.MyAnswer.PointsAwarded != 1250 || view.CurrentQuestion.CorrectCompletion != correctFirst {
		t.Fatalf("unexpected reveal view %+v", view)
	}
	room = loadRoom(t, store, code)
	if room.RoundStartedAt != nil || room.RoundEndsAt != nil || room.RevealAt == nil {
		t.Fatalf("reveal must clear the round timing and set revealAt: %+v", room)
	}

	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusReveal })
	if err := host.AdvanceRound(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusPlaying && v.QuestionIndex == 1 })
	eventually(t, guest, func(v domain.ClientView) bool { return v.Status == domain.StatusPlaying && v.QuestionIndex == 1 })

	if _, err := host.SubmitAnswer(ctx, correctSecond); err != nil {
		t.Fatalf("host answer 2: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := guest.SubmitAnswer(ctx, correctSecond); err != nil {
		t.Fatalf("guest answer 2: %v", err)
	}
	eventually(t, host, func(v domain.ClientView) bool {
		return v.RevealActive && v.MyAnswer != nil && v.MyAnswer.Scored
	})

	if err := host.AdvanceRound(ctx); err != nil {
		t.Fatalf("advance past last: %v", err)
	}
	final := eventually(t, guest, func(v domain.ClientView) bool {
		return v.Status == domain.StatusFinished && len(v.Players) == 2 && v.Players[1].Score > 0
	})
	if final.TimeLeftMs != 0 {
		t.Fatalf("finished room must report no time left, got %d", final.TimeLeftMs)
	}
	// guest: 1250 + 1000, host: 0 + 1250 (fastest on question 2)
	if final.Players[0].ID != "guest" || final.Players[0].Score != 2250 || final.Players[1].Score != 1250 {
		t.Fatalf("unexpected final standings %+v", final.Players)
	}
	room = loadRoom(t, store, code)
	if len(room.ScoredQuestionIndices) != 2 {
		t.Fatalf("expected both questions scored once, got %v", room.ScoredQuestionIndices)
	}

	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusFinished })
	if err := host.AdvanceRound(ctx); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition after finish, got %v", err)
	}

	if err := host.LeaveRoom(ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if host.Code() != "" || host.View().Code != "" {
		t.Fatalf("expected host detached")
	}
	eventually(t, guest, func(v domain.ClientView) bool { return v.RoomMissing })
	players, err := store.List(ctx, app.PlayersPath(code))
	if err != nil || len(players) != 0 {
		t.Fatalf("expected players deleted, got %d (%v)", len(players), err)
	}
}

func TestRoundTimesOutWithoutAnswers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	cfg := app.Config{RoundDuration: 50 * time.Millisecond, TickInterval: 5 * time.Millisecond}
	host := newTestSession(store, "host", cfg)
	defer host.Close()

	code, err := host.CreateRoom(ctx, "Ann")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusLobby })
	if err := host.StartGame(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusReveal })
	deadline := time.Now().Add(2 * time.Second)
	for {
		room := loadRoom(t, store, code)
		if room.IsScored(0) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("question 0 never marked scored")
		}
		time.Sleep(5 * time.Millisecond)
	}
	view := host.View()
	if view.Players[0].Score != 0 {
		t.Fatalf("expected no points without answers, got %d", view.Players[0].Score)
	}

	if _, err := host.SubmitAnswer(ctx, correctFirst); !errors.Is(err, domain.ErrRoundClosed) {
		t.Fatalf("expected round closed after reveal, got %v", err)
	}
}

func TestRevealHoldAdvancesAutomatically(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	cfg := app.Config{RoundDuration: 20 * time.Millisecond, TickInterval: 5 * time.Millisecond, RevealHold: 20 * time.Millisecond}
	host := newTestSession(store, "host", cfg)
	defer host.Close()

	if _, err := host.CreateRoom(ctx, "Ann"); err != nil {
		t.Fatalf("create: %v", err)
	}
	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusLobby })
	if err := host.StartGame(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusFinished })
}

func TestActionErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	host := newTestSession(store, "host", fastConfig())
	defer host.Close()
	guest := newTestSession(store, "guest", fastConfig())
	defer guest.Close()

	if _, err := guest.SubmitAnswer(ctx, "x"); !errors.Is(err, domain.ErrNoActiveRoom) {
		t.Fatalf("expected no active room, got %v", err)
	}
	if err := guest.StartGame(ctx); !errors.Is(err, domain.ErrNoActiveRoom) {
		t.Fatalf("expected no active room, got %v", err)
	}
	if _, err := host.CreateRoom(ctx, "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if host.View().Error == "" {
		t.Fatalf("expected error surfaced in view")
	}
	if err := guest.JoinRoom(ctx, "ZZZZZ", "Ben"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
	if err := guest.JoinRoom(ctx, "bad", "Ben"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid code, got %v", err)
	}

	code, err := host.CreateRoom(ctx, "Ann")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if host.Err() != nil {
		t.Fatalf("expected a successful action to clear the error, got %v", host.Err())
	}
	if err := guest.JoinRoom(ctx, code, "Ben"); err != nil {
		t.Fatalf("join: %v", err)
	}
	eventually(t, guest, func(v domain.ClientView) bool { return v.Status == domain.StatusLobby })
	eventually(t, host, func(v domain.ClientView) bool { return len(v.Players) == 2 })

	if _, err := guest.SubmitAnswer(ctx, correctFirst); !errors.Is(err, domain.ErrRoundClosed) {
		t.Fatalf("expected round closed in lobby, got %v", err)
	}
	if err := guest.StartGame(ctx); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected not host, got %v", err)
	}
	if err := host.AdvanceRound(ctx); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from lobby, got %v", err)
	}

	if err := host.StartGame(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, guest, func(v domain.ClientView) bool { return v.Status == domain.StatusPlaying })
	// A host snapshot still reading lobby turns the second start into a no-op.
	if err := host.StartGame(ctx); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition or no-op, got %v", err)
	}

	if _, err := guest.SubmitAnswer(ctx, correctFirst); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := guest.SubmitAnswer(ctx, "turning red tonight"); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}
	if guest.View().MyAnswer == nil || guest.View().MyAnswer.AnswerText != correctFirst {
		t.Fatalf("expected first answer kept")
	}
}

// gatedStore holds the first batch issued after arm until release is closed.
type gatedStore struct {
	*memory.DocStore
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		DocStore: memory.NewDocStore(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (g *gatedStore) Batch(ctx context.Context, ops ...docstore.Op) error {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.DocStore.Batch(ctx, ops...)
}

func TestConcurrentSubmitIsSingleFlight(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	host := newTestSession(store, "host", fastConfig())
	defer host.Close()

	if _, err := host.CreateRoom(ctx, "Ann"); err != nil {
		t.Fatalf("create: %v", err)
	}
	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusLobby })
	if err := host.StartGame(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, host, func(v domain.ClientView) bool { return v.Status == domain.StatusPlaying })

	store.armed.Store(true)
	first := make(chan error, 1)
	go func() {
		_, err := host.SubmitAnswer(ctx, correctFirst)
		first <- err
	}()
	<-store.entered

	if _, err := host.SubmitAnswer(ctx, "turning red tonight"); !errors.Is(err, domain.ErrSubmissionInFlight) {
		t.Fatalf("expected submission in flight, got %v", err)
	}
	close(store.release)
	if err := <-first; err != nil {
		t.Fatalf("first answer: %v", err)
	}

	view := eventually(t, host, func(v domain.ClientView) bool { return v.MyAnswer != nil })
	if view.MyAnswer.AnswerText != correctFirst {
		t.Fatalf("expected the in-flight answer kept, got %q", view.MyAnswer.AnswerText)
	}
}

func TestRejoinKeepsScore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	host := newTestSession(store, "host", fastConfig())
	defer host.Close()

	code, err := host.CreateRoom(ctx, "Ann")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = store.Update(ctx, app.PlayerPath(code, "host"), docstore.Document{"score": docstore.Increment(2250)})
	if err != nil {
		t.Fatalf("seed score: %v", err)
	}

	other := newTestSession(store, "host", fastConfig())
	defer other.Close()
	if err := other.JoinRoom(ctx, code, "Annie"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	view := eventually(t, other, func(v domain.ClientView) bool { return len(v.Players) == 1 && v.Players[0].DisplayName == "Annie" })
	if view.Players[0].Score != 2250 || !view.IsHost {
		t.Fatalf("expected score and host role kept, got %+v", view)
	}
}

func TestStoreNotReady(t *testing.T) {
	s := newTestSession(nil, "p1", fastConfig())
	defer s.Close()
	if _, err := s.CreateRoom(context.Background(), "Ann"); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if err := s.JoinRoom(context.Background(), "ABCDE", "Ann"); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestSubscribeReceivesViews(t *testing.T) {
	ctx := context.Background()
	store := memory.NewDocStore()
	host := newTestSession(store, "host", fastConfig())

	ch, cancel := host.Subscribe()
	defer cancel()
	if initial := <-ch; initial.Code != "" || initial.PlayerID != "host" {
		t.Fatalf("unexpected initial view %+v", initial)
	}

	code, err := host.CreateRoom(ctx, "Ann")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	timeout := time.After(3 * time.Second)
	for {
		select {
		case view := <-ch:
			if view.Code == code && view.Status == domain.StatusLobby && len(view.Players) == 1 {
				host.Close()
				for range ch {
				}
				return
			}
		case <-timeout:
			t.Fatalf("timeout waiting for lobby view")
		}
	}
}
