package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"family-quiz-service/internal/docstore"
	"family-quiz-service/internal/domain"
)

const createAttempts = 5

// Session is one connected client. It observes a single room at a time,
// projects a view for its player and, when that player is the host, drives
// the room's transitions and scoring.
type Session struct {
	store     RoomStore
	questions QuestionSource
	playerID  string
	cfg       Config
	now       func() time.Time

	// submitting is the single-flight flag for answer submissions.
	submitting atomic.Bool

	mu          sync.Mutex
	code        string
	room        *domain.Room
	roomMissing bool
	players     []domain.Player
	local       *LocalAnswer
	lastErr     error
	cancel      context.CancelFunc
	done        chan struct{}
	subscribers map[chan domain.ClientView]struct{}
	closed      bool
}

// NewSession creates a client session whose player id comes from ids.
func NewSession(store RoomStore, questions QuestionSource, ids IdentityProvider, cfg Config) *Session {
	return NewSessionWithClock(store, questions, ids, cfg, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(store RoomStore, questions QuestionSource, ids IdentityProvider, cfg Config, now func() time.Time) *Session {
	return &Session{
		store:       store,
		questions:   questions,
		playerID:    ids.GetOrCreateSessionID(),
		cfg:         cfg.withDefaults(),
		now:         now,
		subscribers: make(map[chan domain.ClientView]struct{}),
	}
}

// PlayerID returns this session's player id.
func (s *Session) PlayerID() string {
	return s.playerID
}

// Code returns the attached room code, or "" when no room is active.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// CreateRoom creates a new room hosted by this session's player and attaches to it.
func (s *Session) CreateRoom(ctx context.Context, displayName string) (string, error) {
	s.clearErr()
	name := strings.TrimSpace(displayName)
	if name == "" {
		return "", s.fail(fmt.Errorf("display name is blank: %w", domain.ErrInvalidInput))
	}
	if err := s.ready(ctx); err != nil {
		return "", s.fail(err)
	}
	questions, err := s.questions.BuildQuestionSet(ctx)
	if err != nil {
		return "", s.fail(fmt.Errorf("build questions: %w", err))
	}

	now := s.now()
	player := domain.Player{
		ID:          s.playerID,
		DisplayName: name,
		JoinedAt:    now,
	}
	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := NewRoomCode()
		if err != nil {
			return "", s.fail(err)
		}
		room := domain.Room{
			ID:                    code,
			Code:                  code,
			HostID:                s.playerID,
			Status:                domain.StatusLobby,
			ScoredQuestionIndices: []int{},
			Questions:             questions,
			CreatedAt:             now,
			RoundDurationMs:       s.cfg.RoundDuration.Milliseconds(),
		}
		err = s.store.Batch(ctx,
			docstore.Create(RoomPath(code), docstore.MustEncode(room)),
			docstore.Set(PlayerPath(code, s.playerID), docstore.MustEncode(player)),
		)
		if errors.Is(err, docstore.ErrExists) {
			log.Printf("room code %s already taken, retrying", code)
			continue
		}
		if err != nil {
			return "", s.fail(fmt.Errorf("create room: %w", err))
		}
		log.Printf("room %s created by %s", code, s.playerID)
		s.attach(code)
		return code, nil
	}
	return "", s.fail(fmt.Errorf("create room: no free code after %d attempts: %w", createAttempts, domain.ErrUnavailable))
}

// JoinRoom adds this session's player to an existing room and attaches to it.
// Re-joining keeps the player's score and answers.
func (s *Session) JoinRoom(ctx context.Context, rawCode, displayName string) error {
	s.clearErr()
	name := strings.TrimSpace(displayName)
	if name == "" {
		return s.fail(fmt.Errorf("display name is blank: %w", domain.ErrInvalidInput))
	}
	code, err := NormalizeRoomCode(rawCode)
	if err != nil {
		return s.fail(err)
	}
	if err := s.ready(ctx); err != nil {
		return s.fail(err)
	}

	snap, err := s.store.Get(ctx, RoomPath(code))
	if err != nil {
		return s.fail(fmt.Errorf("load room %s: %w", code, err))
	}
	if !snap.Exists {
		return s.fail(fmt.Errorf("join %s: %w", code, domain.ErrRoomNotFound))
	}

	err = s.store.Set(ctx, PlayerPath(code, s.playerID), docstore.Document{
		"id":          s.playerID,
		"displayName": name,
		"joinedAt":    s.now(),
	}, true)
	if err != nil {
		return s.fail(fmt.Errorf("join %s: %w", code, err))
	}
	log.Printf("room %s joined by %s", code, s.playerID)
	s.attach(code)
	return nil
}

// StartGame moves the room from lobby to the first round. Host only.
func (s *Session) StartGame(ctx context.Context) error {
	s.clearErr()
	room, _, err := s.hostRoom()
	if err != nil {
		return s.fail(err)
	}
	if room.Status != domain.StatusLobby {
		return s.fail(fmt.Errorf("start from %s: %w", room.Status, domain.ErrInvalidTransition))
	}
	err = s.store.Batch(ctx, startOps(room, s.now(), s.roundDuration(room))...)
	return s.settle(err)
}

// AdvanceRound leaves the reveal for the next round, or finishes the room
// after the last question. The current question is scored first if needed. Host only.
func (s *Session) AdvanceRound(ctx context.Context) error {
	s.clearErr()
	room, players, err := s.hostRoom()
	if err != nil {
		return s.fail(err)
	}
	if room.Status != domain.StatusReveal {
		return s.fail(fmt.Errorf("advance from %s: %w", room.Status, domain.ErrInvalidTransition))
	}
	if !room.IsScored(room.CurrentQuestionIndex) {
		players = s.freshPlayers(ctx, room.Code, players)
		if err := s.store.Batch(ctx, scoreOps(room, players)...); err != nil && !errors.Is(err, domain.ErrConflictIgnored) {
			return s.fail(fmt.Errorf("score question %d: %w", room.CurrentQuestionIndex, err))
		}
	}
	err = s.store.Batch(ctx, advanceOps(room, s.now(), s.roundDuration(room))...)
	return s.settle(err)
}

// SubmitAnswer records this player's answer for the current question.
func (s *Session) SubmitAnswer(ctx context.Context, answerText string) (domain.PlayerAnswer, error) {
	s.clearErr()

	s.mu.Lock()
	code, room := s.code, s.room
	if code == "" || room == nil {
		s.mu.Unlock()
		return domain.PlayerAnswer{}, s.fail(domain.ErrNoActiveRoom)
	}
	index := room.CurrentQuestionIndex
	question, ok := room.CurrentQuestion()
	if room.Status != domain.StatusPlaying || !ok {
		s.mu.Unlock()
		return domain.PlayerAnswer{}, s.fail(fmt.Errorf("answer while %s: %w", room.Status, domain.ErrRoundClosed))
	}
	if s.answeredLocked(index) {
		s.mu.Unlock()
		return domain.PlayerAnswer{}, s.fail(fmt.Errorf("question %d: %w", index, domain.ErrAlreadyAnswered))
	}
	startedAt := room.RoundStartedAt
	s.mu.Unlock()

	if !s.submitting.CompareAndSwap(false, true) {
		return domain.PlayerAnswer{}, s.fail(domain.ErrSubmissionInFlight)
	}
	defer s.submitting.Store(false)

	now := s.now()
	var elapsed int64
	if startedAt != nil {
		elapsed = max(0, now.Sub(*startedAt).Milliseconds())
	}
	answer := domain.PlayerAnswer{
		AnswerText: answerText,
		IsCorrect:  answerText == question.CorrectCompletion,
		AnsweredAt: now,
		ElapsedMs:  elapsed,
	}

	err := s.store.Batch(ctx,
		docstore.Check(RoomPath(code), statusGuard(domain.StatusPlaying, index, domain.ErrRoundClosed)),
		docstore.Update(PlayerPath(code, s.playerID), docstore.Document{
			fmt.Sprintf("answers.%d", index): answer,
		}).When(func(current docstore.Snapshot) error {
			var player domain.Player
			if err := current.Decode(&player); err != nil {
				return err
			}
			if _, ok := player.Answer(index); ok {
				return fmt.Errorf("question %d: %w", index, domain.ErrAlreadyAnswered)
			}
			return nil
		}),
	)
	if err != nil {
		return domain.PlayerAnswer{}, s.fail(fmt.Errorf("submit answer: %w", err))
	}

	s.mu.Lock()
	if s.code == code {
		s.local = &LocalAnswer{Index: index, Answer: answer}
	}
	s.mu.Unlock()
	s.publish()
	return answer, nil
}

// LeaveRoom detaches from the room. A host leaving a finished room also deletes
// the room and its players. Local state is cleared even when deletion fails.
func (s *Session) LeaveRoom(ctx context.Context) error {
	s.mu.Lock()
	code, room := s.code, s.room
	players := append([]domain.Player(nil), s.players...)
	s.mu.Unlock()
	if code == "" {
		return nil
	}

	var err error
	if room != nil && room.HostID == s.playerID && room.Status == domain.StatusFinished {
		err = s.deleteRoom(ctx, code, players)
		if err != nil {
			log.Printf("room %s cleanup failed: %v", code, err)
		} else {
			log.Printf("room %s deleted", code)
		}
	}

	s.detach()
	s.mu.Lock()
	s.code = ""
	s.room = nil
	s.roomMissing = false
	s.players = nil
	s.local = nil
	s.lastErr = err
	s.mu.Unlock()
	s.publish()
	return err
}

func (s *Session) deleteRoom(ctx context.Context, code string, players []domain.Player) error {
	paths := map[string]struct{}{}
	for _, player := range players {
		paths[PlayerPath(code, player.ID)] = struct{}{}
	}
	stored, err := s.store.List(ctx, PlayersPath(code))
	if err != nil {
		return fmt.Errorf("list players of %s: %w", code, err)
	}
	for _, snap := range stored {
		paths[snap.Path] = struct{}{}
	}

	ops := []docstore.Op{docstore.Delete(RoomPath(code))}
	for path := range paths {
		ops = append(ops, docstore.Delete(path))
	}
	if err := s.store.Batch(ctx, ops...); err != nil {
		return fmt.Errorf("delete room %s: %w", code, err)
	}
	return nil
}

// View returns the current projection.
func (s *Session) View() domain.ClientView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Err returns the latest action error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe returns a channel receiving a fresh view after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.ClientView, func()) {
	ch := make(chan domain.ClientView, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.viewLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close stops observing the room and closes every subscription. The room
// itself is left untouched.
func (s *Session) Close() {
	s.detach()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) attach(code string) {
	s.detach()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.code = code
	s.room = nil
	s.roomMissing = false
	s.players = nil
	s.local = nil
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.observe(ctx, code, done)
}

func (s *Session) detach() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// observe is the session's event loop for one room: store snapshots and clock
// ticks feed the host step and the published view.
func (s *Session) observe(ctx context.Context, code string, done chan struct{}) {
	defer close(done)

	rooms, stopRoom, err := s.store.Watch(ctx, RoomPath(code))
	if err != nil {
		s.degrade(code, err)
		return
	}
	defer stopRoom()
	players, stopPlayers, err := s.store.WatchCollection(ctx, PlayersPath(code))
	if err != nil {
		s.degrade(code, err)
		return
	}
	defer stopPlayers()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-rooms:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				rooms = nil
				s.degrade(code, docstore.ErrNotFound)
				continue
			}
			s.applyRoom(code, snap)
		case snap, ok := <-players:
			if !ok {
				players = nil
				continue
			}
			s.applyPlayers(code, snap)
		case <-ticker.C:
		}
		s.hostStep(ctx, code)
		s.publish()
	}
}

func (s *Session) applyRoom(code string, snap docstore.Snapshot) {
	var room domain.Room
	err := snap.Decode(&room)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code != code {
		return
	}
	if err != nil {
		if snap.Exists {
			log.Printf("room %s: decode failed: %v", code, err)
		}
		s.room = nil
		s.roomMissing = true
		return
	}
	s.room = &room
	s.roomMissing = false
}

func (s *Session) applyPlayers(code string, snap docstore.CollectionSnapshot) {
	players := make([]domain.Player, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		var player domain.Player
		if err := doc.Decode(&player); err != nil {
			log.Printf("room %s: skipping player %s: %v", code, docstore.ID(doc.Path), err)
			continue
		}
		players = append(players, player)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code != code {
		return
	}
	s.players = players
}

func (s *Session) degrade(code string, err error) {
	log.Printf("room %s: watch failed: %v", code, err)
	s.mu.Lock()
	if s.code == code {
		s.room = nil
		s.roomMissing = true
	}
	s.mu.Unlock()
	s.publish()
}

// hostStep performs at most one authoritative write, and only for the host.
func (s *Session) hostStep(ctx context.Context, code string) {
	s.mu.Lock()
	if s.code != code || s.room == nil || s.room.HostID != s.playerID {
		s.mu.Unlock()
		return
	}
	room := *s.room
	players := s.players
	s.mu.Unlock()

	now := s.now()
	action := NextHostAction(room, players, now, s.cfg.RevealHold)
	var err error
	switch action {
	case ActionReveal:
		err = s.store.Batch(ctx, revealOps(room, now)...)
	case ActionScore:
		err = s.store.Batch(ctx, scoreOps(room, s.freshPlayers(ctx, code, players))...)
	case ActionAdvance:
		err = s.store.Batch(ctx, advanceOps(room, now, s.roundDuration(room))...)
	default:
		return
	}
	if errors.Is(err, domain.ErrConflictIgnored) || ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("room %s: %s question %d failed: %v", code, action, room.CurrentQuestionIndex, err)
		s.setErr(err)
		return
	}
	log.Printf("room %s: %s question %d", code, action, room.CurrentQuestionIndex)
}

// freshPlayers reads the players straight from the store so scoring sees answers
// the watch has not delivered yet. It falls back to the observed list.
func (s *Session) freshPlayers(ctx context.Context, code string, observed []domain.Player) []domain.Player {
	docs, err := s.store.List(ctx, PlayersPath(code))
	if err != nil {
		log.Printf("room %s: list players: %v", code, err)
		return observed
	}
	players := make([]domain.Player, 0, len(docs))
	for _, doc := range docs {
		var player domain.Player
		if err := doc.Decode(&player); err != nil {
			continue
		}
		players = append(players, player)
	}
	return players
}

func (s *Session) hostRoom() (domain.Room, []domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code == "" || s.room == nil {
		return domain.Room{}, nil, domain.ErrNoActiveRoom
	}
	if s.room.HostID != s.playerID {
		return domain.Room{}, nil, domain.ErrNotHost
	}
	return *s.room, append([]domain.Player(nil), s.players...), nil
}

func (s *Session) answeredLocked(index int) bool {
	if s.local != nil && s.local.Index == index {
		return true
	}
	for _, player := range s.players {
		if player.ID != s.playerID {
			continue
		}
		_, ok := player.Answer(index)
		return ok
	}
	return false
}

func (s *Session) ready(ctx context.Context) error {
	if s.store == nil {
		return domain.ErrNotReady
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotReady, err)
	}
	return nil
}

func (s *Session) roundDuration(room domain.Room) time.Duration {
	return roundDurationOf(room, s.cfg.RoundDuration)
}

func (s *Session) viewLocked() domain.ClientView {
	return Project(ProjectionInput{
		Code:          s.code,
		PlayerID:      s.playerID,
		Room:          s.room,
		RoomMissing:   s.roomMissing,
		Players:       s.players,
		Local:         s.local,
		Now:           s.now(),
		RoundDuration: s.cfg.RoundDuration,
		Err:           s.lastErr,
	})
}

// settle treats a lost benign race as success.
func (s *Session) settle(err error) error {
	if err == nil || errors.Is(err, domain.ErrConflictIgnored) {
		s.publish()
		return nil
	}
	return s.fail(err)
}

// fail records err as the latest error, replacing any earlier one.
func (s *Session) fail(err error) error {
	s.setErr(err)
	return err
}

func (s *Session) setErr(err error) {
	if err == nil || errors.Is(err, domain.ErrConflictIgnored) {
		return
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.publish()
}

func (s *Session) clearErr() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *Session) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subscribers) == 0 {
		return
	}
	view := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- view:
		default:
			// Drop the stale view so slow readers never block the session.
			select {
			case <-ch:
			default:
			}
			ch <- view
		}
	}
}
