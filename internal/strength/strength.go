// Package strength scores password complexity for the registration meter.
package strength

import "unicode/utf8"

// MaxScore is the highest score Score can return.
const MaxScore = 5

const minLength = 8

// Labels for score bands.
const (
	Weak   = "Weak"
	Fair   = "Fair"
	Good   = "Good"
	Strong = "Strong"
)

// Result is a scored password.
type Result struct {
	Score   int    `json:"score"`
	Label   string `json:"label"`
	Percent int    `json:"percent"`
}

// Score counts satisfied rules: at least 8 characters, an ASCII uppercase
// letter, an ASCII lowercase letter, an ASCII digit, and any other character.
func Score(password string) int {
	var upper, lower, digit, other bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}

	score := 0
	for _, ok := range []bool{utf8.RuneCountInString(password) >= minLength, upper, lower, digit, other} {
		if ok {
			score++
		}
	}
	return score
}

// Label maps a score in [0, MaxScore] to its band.
func Label(score int) string {
	switch {
	case score <= 2:
		return Weak
	case score == 3:
		return Fair
	case score == 4:
		return Good
	default:
		return Strong
	}
}

// Evaluate scores password and fills in the label and meter percentage.
func Evaluate(password string) Result {
	score := Score(password)
	return Result{
		Score:   score,
		Label:   Label(score),
		Percent: score * 100 / MaxScore,
	}
}
