package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ddowsett/quizroom-go/internal/dependencies/random"
	"github.com/ddowsett/quizroom-go/internal/model"
)

// Source supplies trivia questions for a round. It may fail, and it may
// return fewer questions than requested (including none).
type Source interface {
	FetchQuestions(ctx context.Context, category, amount int, difficulty string) ([]model.Question, error)
}

// Config holds trivia client settings
type Config struct {
	// BaseURL is the Open Trivia DB endpoint
	BaseURL string

	// Retry behavior for rate-limited responses
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// DefaultConfig returns sensible defaults for the trivia client
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://opentdb.com/api.php",
		RetryAttempts:  3,
		RetryBaseDelay: time.Second,
	}
}

// Client fetches multiple-choice questions from the Open Trivia DB.
// Responses are cached in memory per (category, amount, difficulty) so
// repeated round starts don't hammer the rate-limited API.
type Client struct {
	cfg    Config
	http   *http.Client
	random random.Random
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string][]model.Question
}

// Ensure Client implements Source
var _ Source = (*Client)(nil)

// New creates a new trivia client. httpClient may be nil, in which case
// a default client with a 10s timeout is used.
func New(cfg Config, httpClient *http.Client, rnd random.Random, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		random: rnd,
		logger: logger.With(slog.String("component", "trivia")),
		cache:  make(map[string][]model.Question),
	}
}

// apiResponse is the Open Trivia DB wire format
type apiResponse struct {
	ResponseCode int         `json:"response_code"`
	Results      []apiResult `json:"results"`
}

type apiResult struct {
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// FetchQuestions fetches up to amount questions for the category.
// Failures surface as model.ErrContentUnavailable; rate-limited
// responses are retried with exponential backoff.
func (c *Client) FetchQuestions(ctx context.Context, category, amount int, difficulty string) ([]model.Question, error) {
	cacheKey := fmt.Sprintf("%d:%d:%s", category, amount, difficulty)

	c.mu.Lock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.mu.Unlock()
		c.logger.Debug("using cached questions", slog.String("key", cacheKey))
		return cloneQuestions(cached), nil
	}
	c.mu.Unlock()

	body, err := c.fetchWithRetry(ctx, category, amount, difficulty)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: bad response body: %v", model.ErrContentUnavailable, err)
	}
	if resp.ResponseCode != 0 {
		return nil, fmt.Errorf("%w: api response code %d", model.ErrContentUnavailable, resp.ResponseCode)
	}

	questions := make([]model.Question, 0, len(resp.Results))
	for _, r := range resp.Results {
		questions = append(questions, c.toQuestion(r))
	}

	c.mu.Lock()
	c.cache[cacheKey] = questions
	c.mu.Unlock()

	c.logger.Info("fetched questions",
		slog.Int("category", category),
		slog.Int("requested", amount),
		slog.Int("received", len(questions)))

	return cloneQuestions(questions), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, category, amount int, difficulty string) ([]byte, error) {
	params := url.Values{}
	params.Set("amount", strconv.Itoa(amount))
	params.Set("type", "multiple")
	if category > 0 {
		params.Set("category", strconv.Itoa(category))
	}
	if difficulty != "" {
		params.Set("difficulty", difficulty)
	}
	endpoint := c.cfg.BaseURL + "?" + params.Encode()

	delay := c.cfg.RetryBaseDelay
	var lastErr error

	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrContentUnavailable, err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrContentUnavailable, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: rate limited", model.ErrContentUnavailable)
			c.logger.Warn("trivia api rate limited, backing off",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", model.ErrContentUnavailable, ctx.Err())
			}
			delay *= 2
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: http status %d", model.ErrContentUnavailable, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrContentUnavailable, err)
		}
		return body, nil
	}

	return nil, lastErr
}

// toQuestion converts a wire result into a Question: entity-decodes the
// text, mixes the correct answer into the options and shuffles them
func (c *Client) toQuestion(r apiResult) model.Question {
	correct := html.UnescapeString(r.CorrectAnswer)

	options := make([]string, 0, len(r.IncorrectAnswers)+1)
	for _, a := range r.IncorrectAnswers {
		options = append(options, html.UnescapeString(a))
	}
	options = append(options, correct)
	c.shuffle(options)

	return model.Question{
		Text:          html.UnescapeString(r.Question),
		Options:       options,
		CorrectAnswer: correct,
	}
}

// shuffle is a Fisher-Yates shuffle over the injected random source
func (c *Client) shuffle(options []string) {
	for i := len(options) - 1; i > 0; i-- {
		j := c.random.Intn(i + 1)
		options[i], options[j] = options[j], options[i]
	}
}

func cloneQuestions(questions []model.Question) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		out[i] = q
		out[i].Options = append([]string(nil), q.Options...)
	}
	return out
}
