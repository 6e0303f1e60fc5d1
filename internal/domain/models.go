package domain

import "time"

// Status is the lifecycle phase of a room.
type Status string

const (
	StatusLobby    Status = "lobby"
	StatusPlaying  Status = "playing"
	StatusReveal   Status = "reveal"
	StatusFinished Status = "finished"
)

// CanTransitionTo reports whether next is a legal successor of s.
// The only edges are lobby→playing→reveal→{playing|finished}.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusLobby:
		return next == StatusPlaying
	case StatusPlaying:
		return next == StatusReveal
	case StatusReveal:
		return next == StatusPlaying || next == StatusFinished
	default:
		return false
	}
}

// Question is one "finish the search query" prompt with shuffled options.
type Question struct {
	ID                string   `json:"id"`
	PromptPrefix      string   `json:"promptPrefix"`
	CorrectCompletion string   `json:"correctCompletion"`
	Options           []string `json:"options"`
}

// PlayerAnswer is a player's single submission for one question index.
type PlayerAnswer struct {
	AnswerText    string    `json:"answerText"`
	IsCorrect     bool      `json:"isCorrect"`
	AnsweredAt    time.Time `json:"answeredAt"`
	ElapsedMs     int64     `json:"elapsedMs"`
	Scored        bool      `json:"scored"`
	PointsAwarded int       `json:"pointsAwarded"`
}

// Player is stored under the room's players collection, keyed by ID.
type Player struct {
	ID          string               `json:"id"`
	DisplayName string               `json:"displayName"`
	Score       int                  `json:"score"`
	JoinedAt    time.Time            `json:"joinedAt"`
	Answers     map[int]PlayerAnswer `json:"answers,omitempty"`
}

// Answer returns the player's answer for the question index, if any.
func (p Player) Answer(index int) (PlayerAnswer, bool) {
	answer, ok := p.Answers[index]
	return answer, ok
}

// Room is the authoritative game document.
type Room struct {
	ID                    string     `json:"id"`
	Code                  string     `json:"code"`
	HostID                string     `json:"hostId"`
	Status                Status     `json:"status"`
	CurrentQuestionIndex  int        `json:"currentQuestionIndex"`
	RoundStartedAt        *time.Time `json:"roundStartedAt"`
	RoundEndsAt           *time.Time `json:"roundEndsAt"`
	RevealAt              *time.Time `json:"revealAt"`
	ScoredQuestionIndices []int      `json:"scoredQuestionIndices"`
	Questions             []Question `json:"questions"`
	CreatedAt             time.Time  `json:"createdAt"`
	RoundDurationMs       int64      `json:"roundDurationMs"`
}

// CurrentQuestion returns the question at CurrentQuestionIndex.
func (r Room) CurrentQuestion() (Question, bool) {
	if r.CurrentQuestionIndex < 0 || r.CurrentQuestionIndex >= len(r.Questions) {
		return Question{}, false
	}
	return r.Questions[r.CurrentQuestionIndex], true
}

// IsScored reports whether the question index has already been scored.
func (r Room) IsScored(index int) bool {
	for _, scored := range r.ScoredQuestionIndices {
		if scored == index {
			return true
		}
	}
	return false
}

// RoundDuration returns the persisted round length.
func (r Room) RoundDuration() time.Duration {
	return time.Duration(r.RoundDurationMs) * time.Millisecond
}

// RoomSummary is the public, pre-join view of a room.
type RoomSummary struct {
	Code          string `json:"code"`
	Status        Status `json:"status"`
	PlayerCount   int    `json:"playerCount"`
	QuestionCount int    `json:"questionCount"`
}
