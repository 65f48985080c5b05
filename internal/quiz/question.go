// Package quiz fetches questions and turns correct answers into balance
// credits.
package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
)

// QuestionID accepts either a JSON string or number.
type QuestionID string

func (id *QuestionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = QuestionID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question id must be a string or number: %w", err)
	}
	*id = QuestionID(n.String())
	return nil
}

// Question is a multiple choice question keyed by option letter.
type Question struct {
	ID            QuestionID        `json:"id"`
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correctAnswer,omitempty"`
	Explanation   string            `json:"explanation,omitempty"`
	Category      string            `json:"category,omitempty"`
}

// Public returns a copy without the answer and explanation.
func (q Question) Public() Question {
	q.CorrectAnswer = ""
	q.Explanation = ""
	return q
}

func (q Question) validate() error {
	if q.ID == "" || q.Question == "" {
		return fmt.Errorf("question is missing id or text")
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("question %s has no options", q.ID)
	}
	if _, ok := q.Options[q.CorrectAnswer]; !ok {
		return fmt.Errorf("question %s correct answer %q is not an option", q.ID, q.CorrectAnswer)
	}
	return nil
}

var fallbackSeq atomic.Int64

// FallbackQuestion is served when the provider cannot be reached.
func FallbackQuestion() Question {
	return Question{
		ID:       QuestionID("offline-" + strconv.FormatInt(fallbackSeq.Add(1), 10)),
		Question: "What is 2 + 2?",
		Options: map[string]string{
			"A": "3",
			"B": "4",
			"C": "5",
			"D": "6",
		},
		CorrectAnswer: "B",
		Explanation:   "2 + 2 = 4. This is a basic addition fact.",
	}
}
