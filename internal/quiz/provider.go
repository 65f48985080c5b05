package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultRecentWindow is how many served question IDs are remembered
	DefaultRecentWindow = 30

	// DefaultMaxAttempts bounds refetches when a recent question repeats
	DefaultMaxAttempts = 3

	maxBodySize = 1 << 20
)

// Provider returns a random question for a category.
type Provider interface {
	Random(ctx context.Context, category string) (Question, error)
}

// ProviderConfig holds HTTP provider configuration
type ProviderConfig struct {
	BaseURL      string
	Timeout      time.Duration
	RecentWindow int
	MaxAttempts  int
}

// HTTPProvider fetches questions from the question API.
type HTTPProvider struct {
	baseURL     string
	client      *http.Client
	recent      *lru.Cache[QuestionID, struct{}]
	maxAttempts int
	logger      zerolog.Logger
}

// NewHTTPProvider creates a provider for the API at config.BaseURL.
func NewHTTPProvider(config ProviderConfig, logger zerolog.Logger) (*HTTPProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("quiz base URL is required")
	}
	if config.RecentWindow <= 0 {
		config.RecentWindow = DefaultRecentWindow
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	recent, err := lru.New[QuestionID, struct{}](config.RecentWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to create recent question cache: %w", err)
	}

	return &HTTPProvider{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		client:      &http.Client{Timeout: config.Timeout},
		recent:      recent,
		maxAttempts: config.MaxAttempts,
		logger:      logger.With().Str("component", "quiz-provider").Logger(),
	}, nil
}

// Random fetches a question, refetching when the result was served
// recently. After MaxAttempts a repeat is accepted.
func (p *HTTPProvider) Random(ctx context.Context, category string) (Question, error) {
	var q Question
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		var err error
		q, err = p.fetch(ctx, category)
		if err != nil {
			return Question{}, err
		}
		if !p.recent.Contains(q.ID) {
			break
		}
		p.logger.Debug().
			Str("question_id", string(q.ID)).
			Int("attempt", attempt).
			Msg("Question served recently, refetching")
	}

	p.recent.Add(q.ID, struct{}{})
	if q.Category == "" {
		q.Category = category
	}
	return q, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, category string) (Question, error) {
	endpoint := p.baseURL + "/api/questions/random"
	if category != "" {
		endpoint += "/" + url.PathEscape(category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Question{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Question{}, fmt.Errorf("question request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Question{}, fmt.Errorf("question API returned status %d", resp.StatusCode)
	}

	var q Question
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&q); err != nil {
		return Question{}, fmt.Errorf("failed to decode question: %w", err)
	}
	if err := q.validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}
