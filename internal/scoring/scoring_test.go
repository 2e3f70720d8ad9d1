package scoring

import (
	"testing"

	"github.com/smartlearn/smartlearn-backend/internal/model"
)

func questions() []model.Question {
	return []model.Question{
		{ID: "q1", Text: "What is JSX?", Options: []string{"A JavaScript syntax extension", "A templating engine"}, Answer: "A JavaScript syntax extension"},
		{ID: "q2", Text: "Which hook manages state?", Options: []string{"useEffect", "useState"}, Answer: "useState"},
	}
}

func TestScoreAllCorrect(t *testing.T) {
	got := Score(questions(), map[string]string{
		"q1": "A JavaScript syntax extension",
		"q2": "useState",
	})
	if got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
}

func TestScoreHalfCorrect(t *testing.T) {
	got := Score(questions(), map[string]string{
		"q1": "A JavaScript syntax extension",
		"q2": "useContext",
	})
	if got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestScoreIsCaseSensitive(t *testing.T) {
	got := Score(questions(), map[string]string{
		"q1": "a javascript syntax extension",
		"q2": "usestate",
	})
	if got != 0 {
		t.Fatalf("expected 0 for case-mismatched answers, got %d", got)
	}
}

func TestScoreRounds(t *testing.T) {
	qs := []model.Question{
		{ID: "q1", Answer: "a"},
		{ID: "q2", Answer: "b"},
		{ID: "q3", Answer: "c"},
	}
	// 1/3 → 33.33 → 33, 2/3 → 66.67 → 67
	if got := Score(qs, map[string]string{"q1": "a"}); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
	if got := Score(qs, map[string]string{"q1": "a", "q2": "b"}); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
}

func TestScoreEmptyExam(t *testing.T) {
	if got := Score(nil, map[string]string{"q1": "a"}); got != 0 {
		t.Fatalf("expected 0 for empty exam, got %d", got)
	}
}

func TestScoreBounds(t *testing.T) {
	qs := questions()
	cases := []map[string]string{
		nil,
		{},
		{"q1": "A JavaScript syntax extension"},
		{"q1": "wrong", "q2": "wrong", "q99": "stray"},
		{"q1": "A JavaScript syntax extension", "q2": "useState"},
	}
	for _, answers := range cases {
		got := Score(qs, answers)
		if got < 0 || got > 100 {
			t.Fatalf("score out of bounds for %v: %d", answers, got)
		}
	}
}

func TestQuestionsWithoutKeyNeverCount(t *testing.T) {
	qs := []model.Question{
		{ID: "q1", Answer: "a"},
		{ID: "q2"}, // descriptive-style question, no key
	}
	// The keyless question dilutes the denominator but an empty submitted
	// answer must not accidentally match its empty key.
	if got := CorrectCount(qs, map[string]string{"q1": "a", "q2": ""}); got != 1 {
		t.Fatalf("expected 1 correct, got %d", got)
	}
	if got := Score(qs, map[string]string{"q1": "a", "q2": ""}); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}
