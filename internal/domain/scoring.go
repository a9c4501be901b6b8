package domain

// ScoreBand is the point range awarded for a correct answer.
type ScoreBand struct {
	Min int
	Max int
}

// DefaultScoreBand awards 900 for a correct answer at the buzzer and 1000 for an instant one.
var DefaultScoreBand = ScoreBand{Min: 900, Max: 1000}

// Score maps a submission to points: floor(min + (max-min) * timeLeft/timePerQuestion) when correct,
// 0 otherwise. timeLeft is clamped to [0, timePerQuestion]; timePerQuestion <= 0 awards the minimum.
func Score(correct bool, timeLeft, timePerQuestion int, band ScoreBand) int {
	if !correct {
		return 0
	}
	if timePerQuestion <= 0 {
		return band.Min
	}
	if timeLeft < 0 {
		timeLeft = 0
	}
	if timeLeft > timePerQuestion {
		timeLeft = timePerQuestion
	}
	return band.Min + (band.Max-band.Min)*timeLeft/timePerQuestion
}
