package app

import (
	"sort"
	"time"

	"family-quiz-service/internal/domain"
)

// LocalAnswer is an answer this client submitted, kept until the synced copy arrives.
type LocalAnswer struct {
	Index  int
	Answer domain.PlayerAnswer
}

// ProjectionInput is everything a client view is derived from.
type ProjectionInput struct {
	Code          string
	PlayerID      string
	Room          *domain.Room
	RoomMissing   bool
	Players       []domain.Player
	Local         *LocalAnswer
	Now           time.Time
	RoundDuration time.Duration
	Err           error
}

// Project derives the client view. It holds no state; callers re-run it on
// every snapshot and clock tick.
func Project(in ProjectionInput) domain.ClientView {
	view := domain.ClientView{
		Code:        in.Code,
		PlayerID:    in.PlayerID,
		RoomMissing: in.RoomMissing,
		Players:     []domain.PlayerView{},
		Error:       domain.UserMessage(in.Err, "Something went wrong. Try again."),
	}
	room := in.Room
	if room == nil {
		return view
	}

	view.Status = room.Status
	view.IsHost = room.HostID == in.PlayerID
	view.QuestionIndex = room.CurrentQuestionIndex
	view.QuestionCount = len(room.Questions)
	view.RevealActive = RevealActive(*room, in.Now)
	view.TimeLeftMs = TimeLeft(*room, in.Now, roundDurationOf(*room, in.RoundDuration)).Milliseconds()

	if question, ok := room.CurrentQuestion(); ok && room.Status != domain.StatusLobby {
		qv := &domain.QuestionView{
			ID:           question.ID,
			PromptPrefix: question.PromptPrefix,
			Options:      append([]string(nil), question.Options...),
		}
		if view.RevealActive || room.Status == domain.StatusFinished {
			qv.CorrectCompletion = question.CorrectCompletion
		}
		view.CurrentQuestion = qv
	}

	for _, player := range SortPlayers(in.Players) {
		_, answered := player.Answer(room.CurrentQuestionIndex)
		view.Players = append(view.Players, domain.PlayerView{
			ID:          player.ID,
			DisplayName: player.DisplayName,
			Score:       player.Score,
			Answered:    answered,
		})
	}

	view.MyAnswer = myAnswer(*room, in.Players, in.PlayerID, in.Local)
	return view
}

// RevealActive reports whether the correct answer should be shown.
func RevealActive(room domain.Room, now time.Time) bool {
	if room.Status == domain.StatusReveal {
		return true
	}
	if room.RevealAt == nil {
		return false
	}
	return !now.Before(*room.RevealAt)
}

// TimeLeft is the remaining round time. Before the first round it is the full
// round duration, and zero outside a running round.
func TimeLeft(room domain.Room, now time.Time, roundDuration time.Duration) time.Duration {
	switch room.Status {
	case domain.StatusLobby:
		return roundDuration
	case domain.StatusPlaying:
		if room.RoundEndsAt == nil {
			return roundDuration
		}
		return max(0, room.RoundEndsAt.Sub(now))
	default:
		return 0
	}
}

// SortPlayers returns players ordered by score descending, then by who joined
// first, then by name.
func SortPlayers(players []domain.Player) []domain.Player {
	out := append([]domain.Player(nil), players...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func myAnswer(room domain.Room, players []domain.Player, playerID string, local *LocalAnswer) *domain.PlayerAnswer {
	index := room.CurrentQuestionIndex
	for _, player := range players {
		if player.ID != playerID {
			continue
		}
		if answer, ok := player.Answer(index); ok {
			return &answer
		}
	}
	if local != nil && local.Index == index {
		answer := local.Answer
		return &answer
	}
	return nil
}

func roundDurationOf(room domain.Room, fallback time.Duration) time.Duration {
	if d := room.RoundDuration(); d > 0 {
		return d
	}
	return fallback
}
