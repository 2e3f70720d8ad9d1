// Package scoring grades choice-exam answer sets. It is pure: no I/O, no
// clock, deterministic for identical inputs.
package scoring

import (
	"math"

	"github.com/smartlearn/smartlearn-backend/internal/model"
)

// CorrectCount counts questions whose submitted answer exactly matches the
// answer key. Matching is case-sensitive. Questions without an answer key
// never contribute, in either direction.
func CorrectCount(questions []model.Question, answers map[string]string) int {
	correct := 0
	for _, q := range questions {
		if q.Answer == "" {
			continue
		}
		if got, ok := answers[q.ID]; ok && got == q.Answer {
			correct++
		}
	}
	return correct
}

// Score maps an answer set to an integer percentage 0..100:
// round(correct / total * 100). An exam with no questions scores 0.
func Score(questions []model.Question, answers map[string]string) int {
	total := len(questions)
	if total == 0 {
		return 0
	}
	correct := CorrectCount(questions, answers)
	return int(math.Round(float64(correct) / float64(total) * 100))
}
