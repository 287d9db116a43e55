package domain

import (
	"errors"
	"testing"
)

func TestAnswerValueEqualOrderInsensitive(t *testing.T) {
	a := AnswerValue{Selected: []int{2, 0, 1}}
	b := AnswerValue{Selected: []int{0, 1, 2}}
	if !a.Equal(b) {
		t.Fatal("reordered selections must compare equal")
	}
	c := AnswerValue{Selected: []int{0, 1}}
	if a.Equal(c) {
		t.Fatal("different selection sets must differ")
	}
}

func TestAnswerValueEqualTextAndNumber(t *testing.T) {
	if !(AnswerValue{Text: " Euler "}).Equal(AnswerValue{Text: "euler"}) {
		t.Fatal("text must compare trimmed and case-insensitively")
	}
	x, y := 1.5, 1.5
	if !(AnswerValue{Number: &x}).Equal(AnswerValue{Number: &y}) {
		t.Fatal("equal numbers must compare equal")
	}
	if (AnswerValue{Number: &x}).Equal(AnswerValue{}) {
		t.Fatal("present vs absent number must differ")
	}
}

func TestSanitizedStripsAnswerMaterial(t *testing.T) {
	q := Question{
		UID:            "q1",
		Prompt:         "prompt",
		Options:        []string{"a", "b"},
		CorrectOptions: []bool{true, false},
		CorrectText:    "a",
		CorrectNumber:  42,
		Tolerance:      0.5,
		Explanation:    "because",
		TimeLimitMs:    30000,
	}
	s := q.Sanitized()
	if s.CorrectOptions != nil || s.CorrectText != "" || s.CorrectNumber != 0 || s.Tolerance != 0 || s.Explanation != "" {
		t.Fatalf("answer material leaked: %+v", s)
	}
	if s.Prompt != q.Prompt || len(s.Options) != 2 || s.TimeLimitMs != q.TimeLimitMs {
		t.Fatalf("display fields lost: %+v", s)
	}
}

func TestCurrentQuestionUID(t *testing.T) {
	s := Session{QuestionUIDs: []string{"q1", "q2"}, CurrentQuestion: -1}
	if s.CurrentQuestionUID() != "" {
		t.Fatal("expected no current question at -1")
	}
	s.CurrentQuestion = 1
	if s.CurrentQuestionUID() != "q2" {
		t.Fatalf("expected q2, got %q", s.CurrentQuestionUID())
	}
	s.CurrentQuestion = 5
	if s.CurrentQuestionUID() != "" {
		t.Fatal("out-of-range index must yield no question")
	}
}

func TestReasonCodes(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrAnswersLocked, "AnswersLocked"},
		{ErrTimeExpired, "TimeExpired"},
		{ErrTimerStopped, "TimerStopped"},
		{ErrGameNotActive, "GameNotActive"},
		{ErrSessionNotFound, "SessionNotFound"},
		{errors.New("boom"), "InternalError"},
	}
	for _, tc := range cases {
		if got := ReasonCode(tc.err); got != tc.want {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.want, got)
		}
	}
}
