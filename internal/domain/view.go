package domain

// QuestionView is the current question as shown to players. CorrectCompletion is
// only populated while the reveal is active.
type QuestionView struct {
	ID                string   `json:"id"`
	PromptPrefix      string   `json:"promptPrefix"`
	Options           []string `json:"options"`
	CorrectCompletion string   `json:"correctCompletion,omitempty"`
}

// PlayerView is a scoreboard row.
type PlayerView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Answered    bool   `json:"answered"`
}

// ClientView is the read-only projection a client renders.
type ClientView struct {
	Code            string        `json:"code,omitempty"`
	PlayerID        string        `json:"playerId"`
	Status          Status        `json:"status,omitempty"`
	RoomMissing     bool          `json:"roomMissing"`
	CurrentQuestion *QuestionView `json:"currentQuestion,omitempty"`
	QuestionIndex   int           `json:"questionIndex"`
	QuestionCount   int           `json:"questionCount"`
	TimeLeftMs      int64         `json:"timeLeftMs"`
	RevealActive    bool          `json:"revealActive"`
	Players         []PlayerView  `json:"players"`
	MyAnswer        *PlayerAnswer `json:"myAnswer,omitempty"`
	IsHost          bool          `json:"isHost"`
	Error           string        `json:"error,omitempty"`
}
