package app

import "family-quiz-service/internal/domain"

const (
	// BasePoints is awarded for every correct answer.
	BasePoints = 1000
	// SpeedBonus is added for the fastest correct answer. Ties all receive it.
	SpeedBonus = 250
)

// Award is the scoring result for one player's answer.
type Award struct {
	PlayerID   string
	Points     int
	Correct    bool
	SpeedBonus bool
}

// ScoreQuestion computes awards for every unscored answer to the question index.
// Players without an answer, or whose answer is already scored, get no award.
func ScoreQuestion(players []domain.Player, index int) []Award {
	var fastest int64
	haveFastest := false
	for _, player := range players {
		answer, ok := player.Answer(index)
		if !ok || !answer.IsCorrect {
			continue
		}
		if !haveFastest || answer.ElapsedMs < fastest {
			fastest = answer.ElapsedMs
			haveFastest = true
		}
	}

	awards := make([]Award, 0, len(players))
	for _, player := range players {
		answer, ok := player.Answer(index)
		if !ok || answer.Scored {
			continue
		}
		award := Award{PlayerID: player.ID}
		if answer.IsCorrect {
			award.Correct = true
			award.Points += BasePoints
			if haveFastest && answer.ElapsedMs == fastest {
				award.SpeedBonus = true
				award.Points += SpeedBonus
			}
		}
		awards = append(awards, award)
	}
	return awards
}
