package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goodtune/brainbites/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	// ErrNoQuestion is returned when answering without a current question.
	ErrNoQuestion = errors.New("no question to answer")

	// ErrUnknownOption is returned for a choice that is not one of the options.
	ErrUnknownOption = errors.New("unknown option")
)

// Crediter is the balance that correct answers are paid into.
type Crediter interface {
	Credit(seconds int64) int64
	Get() int64
}

// Rewards defines how many seconds answers earn.
type Rewards struct {
	CorrectAnswerSeconds int64
	MilestoneSeconds     int64
	MilestoneEvery       int
}

// Result is the outcome of one answer.
type Result struct {
	QuestionID    QuestionID `json:"questionId"`
	Correct       bool       `json:"correct"`
	CorrectAnswer string     `json:"correctAnswer"`
	Explanation   string     `json:"explanation"`
	Earned        int64      `json:"earned"`
	Milestone     bool       `json:"milestone"`
	Streak        int        `json:"streak"`
	Balance       int64      `json:"balance"`
}

// Service holds the current question and the answer streak.
type Service struct {
	provider        Provider
	balance         Crediter
	rewards         Rewards
	defaultCategory string
	logger          zerolog.Logger

	mu      sync.Mutex
	current *Question
	streak  int
}

// NewService creates a quiz service.
func NewService(provider Provider, balance Crediter, rewards Rewards, defaultCategory string, logger zerolog.Logger) *Service {
	if rewards.MilestoneEvery <= 0 {
		rewards.MilestoneEvery = 5
	}
	return &Service{
		provider:        provider,
		balance:         balance,
		rewards:         rewards,
		defaultCategory: defaultCategory,
		logger:          logger.With().Str("component", "quiz").Logger(),
	}
}

// Next fetches a new question and makes it the current one, replacing any
// unanswered question. Provider failures fall back to an offline question.
func (s *Service) Next(ctx context.Context, category string) Question {
	if category == "" {
		category = s.defaultCategory
	}

	q, err := s.provider.Random(ctx, category)
	if err != nil {
		metrics.QuestionFetchErrors.Inc()
		s.logger.Warn().Err(err).Str("category", category).Msg("Question provider failed, using offline question")
		q = FallbackQuestion()
	}

	s.mu.Lock()
	s.current = &q
	s.mu.Unlock()

	return q
}

// Current returns the unanswered question, if any.
func (s *Service) Current() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Question{}, false
	}
	return *s.current, true
}

// Answer scores choice against the current question. A question can only
// be answered once.
func (s *Service) Answer(choice string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.current
	if q == nil {
		return Result{}, ErrNoQuestion
	}

	choice = strings.ToUpper(strings.TrimSpace(choice))
	if _, ok := q.Options[choice]; !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOption, choice)
	}
	s.current = nil

	res := Result{
		QuestionID:    q.ID,
		Correct:       choice == q.CorrectAnswer,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}

	if !res.Correct {
		s.streak = 0
		res.Balance = s.balance.Get()
		metrics.QuizAnswers.WithLabelValues("wrong").Inc()
		s.logger.Debug().Str("question_id", string(q.ID)).Msg("Wrong answer, streak reset")
		return res, nil
	}

	s.streak++
	res.Streak = s.streak
	res.Earned = s.rewards.CorrectAnswerSeconds
	if s.streak%s.rewards.MilestoneEvery == 0 {
		res.Milestone = true
		res.Earned = s.rewards.MilestoneSeconds
	}
	res.Balance = s.balance.Credit(res.Earned)
	metrics.QuizAnswers.WithLabelValues("correct").Inc()

	s.logger.Info().
		Str("question_id", string(q.ID)).
		Int("streak", s.streak).
		Int64("earned_seconds", res.Earned).
		Msg("Correct answer")
	return res, nil
}

// Streak returns the current run of correct answers.
func (s *Service) Streak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streak
}
