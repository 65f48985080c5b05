package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBalance struct {
	total int64
}

func (b *fakeBalance) Credit(seconds int64) int64 {
	if seconds > 0 {
		b.total += seconds
	}
	return b.total
}

func (b *fakeBalance) Get() int64 { return b.total }

type staticProvider struct {
	q   Question
	err error
}

func (p staticProvider) Random(context.Context, string) (Question, error) {
	return p.q, p.err
}

var sample = Question{
	ID:            "q1",
	Question:      "Which planet is largest?",
	Options:       map[string]string{"A": "Mars", "B": "Jupiter", "C": "Venus", "D": "Earth"},
	CorrectAnswer: "B",
	Explanation:   "Jupiter is the largest planet.",
}

var defaultRewards = Rewards{CorrectAnswerSeconds: 30, MilestoneSeconds: 120, MilestoneEvery: 5}

func TestAnswerRewardsAndMilestones(t *testing.T) {
	bal := &fakeBalance{}
	svc := NewService(staticProvider{q: sample}, bal, defaultRewards, "funfacts", zerolog.Nop())

	var want int64
	for i := 1; i <= 10; i++ {
		svc.Next(context.Background(), "")
		res, err := svc.Answer("b")
		require.NoError(t, err)

		earned := int64(30)
		if i%5 == 0 {
			earned = 120
		}
		want += earned

		assert.True(t, res.Correct)
		assert.Equal(t, i, res.Streak)
		assert.Equal(t, earned, res.Earned, "answer %d", i)
		assert.Equal(t, i%5 == 0, res.Milestone)
		assert.Equal(t, want, res.Balance)
	}
	assert.Equal(t, int64(480), bal.total)
}

func TestWrongAnswerResetsStreak(t *testing.T) {
	bal := &fakeBalance{}
	svc := NewService(staticProvider{q: sample}, bal, defaultRewards, "funfacts", zerolog.Nop())

	svc.Next(context.Background(), "")
	_, err := svc.Answer("B")
	require.NoError(t, err)
	require.Equal(t, 1, svc.Streak())

	svc.Next(context.Background(), "")
	res, err := svc.Answer("A")
	require.NoError(t, err)

	assert.False(t, res.Correct)
	assert.Equal(t, "B", res.CorrectAnswer)
	assert.Equal(t, int64(0), res.Earned)
	assert.Equal(t, int64(30), res.Balance)
	assert.Equal(t, 0, svc.Streak())
}

func TestAnswerWithoutQuestion(t *testing.T) {
	svc := NewService(staticProvider{q: sample}, &fakeBalance{}, defaultRewards, "funfacts", zerolog.Nop())

	_, err := svc.Answer("A")
	assert.True(t, errors.Is(err, ErrNoQuestion))

	svc.Next(context.Background(), "")
	_, err = svc.Answer("A")
	require.NoError(t, err)

	_, err = svc.Answer("A")
	assert.ErrorIs(t, err, ErrNoQuestion, "a question is scored once")
}

func TestAnswerUnknownOptionKeepsQuestion(t *testing.T) {
	svc := NewService(staticProvider{q: sample}, &fakeBalance{}, defaultRewards, "funfacts", zerolog.Nop())
	svc.Next(context.Background(), "")

	_, err := svc.Answer("E")
	assert.ErrorIs(t, err, ErrUnknownOption)

	_, ok := svc.Current()
	assert.True(t, ok)
}

func TestNextFallsBackWhenProviderFails(t *testing.T) {
	bal := &fakeBalance{}
	svc := NewService(staticProvider{err: errors.New("offline")}, bal, defaultRewards, "funfacts", zerolog.Nop())

	q := svc.Next(context.Background(), "psychology")
	assert.Equal(t, "What is 2 + 2?", q.Question)
	assert.Equal(t, "4", q.Options["B"])

	res, err := svc.Answer("B")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, int64(30), bal.total)
}

func TestQuestionIDAcceptsNumberOrString(t *testing.T) {
	var q Question
	require.NoError(t, json.Unmarshal([]byte(`{"id":42}`), &q))
	assert.Equal(t, QuestionID("42"), q.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc"}`), &q))
	assert.Equal(t, QuestionID("abc"), q.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &q))
}

func TestPublicHidesAnswer(t *testing.T) {
	pub := sample.Public()
	assert.Empty(t, pub.CorrectAnswer)
	assert.Empty(t, pub.Explanation)
	assert.Equal(t, "B", sample.CorrectAnswer)
}
