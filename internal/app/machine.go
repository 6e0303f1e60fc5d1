package app

import (
	"fmt"
	"time"

	"family-quiz-service/internal/docstore"
	"family-quiz-service/internal/domain"
)

// HostAction is the next authoritative write the host should attempt.
type HostAction int

const (
	ActionNone HostAction = iota
	ActionReveal
	ActionScore
	ActionAdvance
)

func (a HostAction) String() string {
	switch a {
	case ActionReveal:
		return "reveal"
	case ActionScore:
		return "score"
	case ActionAdvance:
		return "advance"
	default:
		return "none"
	}
}

// NextHostAction decides what the host does for a snapshot at now. It is a pure
// function of its inputs so every client computes the same answer.
func NextHostAction(room domain.Room, players []domain.Player, now time.Time, revealHold time.Duration) HostAction {
	switch room.Status {
	case domain.StatusPlaying:
		if RevealDue(room, players, now) {
			return ActionReveal
		}
	case domain.StatusReveal:
		if !room.IsScored(room.CurrentQuestionIndex) {
			return ActionScore
		}
		if revealHold > 0 && room.RevealAt != nil && !now.Before(room.RevealAt.Add(revealHold)) {
			return ActionAdvance
		}
	}
	return ActionNone
}

// RevealDue reports whether a playing round should move to reveal: the round
// deadline has passed or every current player answered.
func RevealDue(room domain.Room, players []domain.Player, now time.Time) bool {
	if room.Status != domain.StatusPlaying {
		return false
	}
	if room.RoundEndsAt != nil && !now.Before(*room.RoundEndsAt) {
		return true
	}
	return AllAnswered(players, room.CurrentQuestionIndex)
}

// AllAnswered reports whether at least one player exists and all have answered index.
func AllAnswered(players []domain.Player, index int) bool {
	if len(players) == 0 {
		return false
	}
	for _, player := range players {
		if _, ok := player.Answer(index); !ok {
			return false
		}
	}
	return true
}

// StartFields are the room fields that open round index at now.
func StartFields(index int, now time.Time, roundDuration time.Duration) docstore.Document {
	return docstore.Document{
		"status":               domain.StatusPlaying,
		"currentQuestionIndex": index,
		"roundStartedAt":       now,
		"roundEndsAt":          now.Add(roundDuration),
		"revealAt":             nil,
	}
}

// RevealFields close the running round.
func RevealFields(now time.Time) docstore.Document {
	return docstore.Document{
		"status":         domain.StatusReveal,
		"revealAt":       now,
		"roundStartedAt": nil,
		"roundEndsAt":    nil,
	}
}

// AdvanceFields open the next round, or finish the room after the last question.
func AdvanceFields(room domain.Room, now time.Time, roundDuration time.Duration) docstore.Document {
	next := room.CurrentQuestionIndex + 1
	if next < len(room.Questions) {
		return StartFields(next, now, roundDuration)
	}
	return docstore.Document{
		"status":         domain.StatusFinished,
		"roundStartedAt": nil,
		"roundEndsAt":    nil,
		"revealAt":       nil,
	}
}

// statusGuard passes only while the stored room is in want at question index.
// Otherwise it fails with conflict.
func statusGuard(want domain.Status, index int, conflict error) docstore.Guard {
	return func(current docstore.Snapshot) error {
		if !current.Exists {
			return domain.ErrRoomNotFound
		}
		var room domain.Room
		if err := current.Decode(&room); err != nil {
			return err
		}
		if room.Status != want || room.CurrentQuestionIndex != index {
			return fmt.Errorf("room %s is %s at question %d, want %s at %d: %w",
				room.Code, room.Status, room.CurrentQuestionIndex, want, index, conflict)
		}
		return nil
	}
}

func startOps(room domain.Room, now time.Time, roundDuration time.Duration) []docstore.Op {
	return []docstore.Op{
		docstore.Update(RoomPath(room.Code), StartFields(0, now, roundDuration)).
			When(statusGuard(domain.StatusLobby, room.CurrentQuestionIndex, domain.ErrConflictIgnored)),
	}
}

func revealOps(room domain.Room, now time.Time) []docstore.Op {
	return []docstore.Op{
		docstore.Update(RoomPath(room.Code), RevealFields(now)).
			When(statusGuard(domain.StatusPlaying, room.CurrentQuestionIndex, domain.ErrConflictIgnored)),
	}
}

func advanceOps(room domain.Room, now time.Time, roundDuration time.Duration) []docstore.Op {
	return []docstore.Op{
		docstore.Update(RoomPath(room.Code), AdvanceFields(room, now, roundDuration)).
			When(statusGuard(domain.StatusReveal, room.CurrentQuestionIndex, domain.ErrConflictIgnored)),
	}
}

// scoreOps builds the single batch that scores the current question: every
// award and the scoredQuestionIndices append commit together or not at all.
func scoreOps(room domain.Room, players []domain.Player) []docstore.Op {
	index := room.CurrentQuestionIndex
	awards := ScoreQuestion(players, index)
	roomGuard := statusGuard(domain.StatusReveal, index, domain.ErrConflictIgnored)

	ops := make([]docstore.Op, 0, len(awards)+1)
	ops = append(ops, docstore.Update(RoomPath(room.Code), docstore.Document{
		"scoredQuestionIndices": docstore.ArrayUnion{index},
	}).When(func(current docstore.Snapshot) error {
		if err := roomGuard(current); err != nil {
			return err
		}
		var stored domain.Room
		if err := current.Decode(&stored); err != nil {
			return err
		}
		if stored.IsScored(index) {
			return fmt.Errorf("question %d already scored: %w", index, domain.ErrConflictIgnored)
		}
		return nil
	}))

	prefix := fmt.Sprintf("answers.%d", index)
	for _, award := range awards {
		ops = append(ops, docstore.Update(PlayerPath(room.Code, award.PlayerID), docstore.Document{
			"score":                   docstore.Increment(award.Points),
			prefix + ".scored":        true,
			prefix + ".pointsAwarded": award.Points,
		}).When(unscoredGuard(index)))
	}
	return ops
}

func unscoredGuard(index int) docstore.Guard {
	return func(current docstore.Snapshot) error {
		var player domain.Player
		if err := current.Decode(&player); err != nil {
			return err
		}
		if answer, ok := player.Answer(index); ok && answer.Scored {
			return fmt.Errorf("player %s question %d already scored: %w", player.ID, index, domain.ErrConflictIgnored)
		}
		return nil
	}
}
