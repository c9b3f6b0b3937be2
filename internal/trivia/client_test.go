package trivia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ddowsett/quizroom-go/internal/dependencies/mocks"
	"github.com/ddowsett/quizroom-go/internal/model"
	"github.com/ddowsett/quizroom-go/internal/testutil"
)

const sampleBody = `{
	"response_code": 0,
	"results": [
		{
			"question": "What does &quot;HTTP&quot; stand for?",
			"correct_answer": "HyperText Transfer Protocol",
			"incorrect_answers": ["High Throughput", "Hyper Transfer", "Host Transfer Protocol"]
		},
		{
			"question": "2 + 2 = ?",
			"correct_answer": "4",
			"incorrect_answers": ["3", "5", "22"]
		}
	]
}`

type ClientSuite struct {
	suite.Suite
	ctx    context.Context
	random *mocks.MockRandom
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx = context.Background()
	s.random = mocks.NewMockRandom()
}

func (s *ClientSuite) newClient(serverURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = serverURL
	cfg.RetryBaseDelay = time.Millisecond
	return New(cfg, nil, s.random, testutil.NopLogger())
}

func (s *ClientSuite) TestFetchQuestionsDecodesAndShuffles() {
	var query atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	questions, err := s.newClient(server.URL).FetchQuestions(s.ctx, 9, 2, "medium")
	s.Require().NoError(err)
	s.Require().Len(questions, 2)

	q := query.Load().(url.Values)
	s.Equal([]string{"9"}, q["category"])
	s.Equal([]string{"2"}, q["amount"])
	s.Equal([]string{"medium"}, q["difficulty"])
	s.Equal([]string{"multiple"}, q["type"])

	// HTML entities are decoded before anything is shown to a player
	s.Equal(`What does "HTTP" stand for?`, questions[0].Text)
	s.Equal("HyperText Transfer Protocol", questions[0].CorrectAnswer)

	// The correct answer is mixed into the shuffled options
	s.Len(questions[0].Options, 4)
	s.Contains(questions[0].Options, "HyperText Transfer Protocol")
	s.Contains(questions[0].Options, "High Throughput")
	s.True(questions[0].IsCorrect("HyperText Transfer Protocol"))
	s.False(questions[0].IsCorrect("3"))
}

func (s *ClientSuite) TestRateLimitedRequestsAreRetried() {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	questions, err := s.newClient(server.URL).FetchQuestions(s.ctx, 9, 2, "medium")
	s.Require().NoError(err)
	s.Len(questions, 2)
	s.Equal(int32(3), calls.Load())
}

func (s *ClientSuite) TestRateLimitExhaustsRetries() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := s.newClient(server.URL).FetchQuestions(s.ctx, 9, 2, "medium")
	s.ErrorIs(err, model.ErrContentUnavailable)
}

func (s *ClientSuite) TestServerErrorFails() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := s.newClient(server.URL).FetchQuestions(s.ctx, 9, 2, "medium")
	s.ErrorIs(err, model.ErrContentUnavailable)
}

func (s *ClientSuite) TestNonZeroResponseCodeFails() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response_code": 1, "results": []}`))
	}))
	defer server.Close()

	_, err := s.newClient(server.URL).FetchQuestions(s.ctx, 9, 2, "medium")
	s.ErrorIs(err, model.ErrContentUnavailable)
}

func (s *ClientSuite) TestResponsesAreCached() {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	client := s.newClient(server.URL)

	first, err := client.FetchQuestions(s.ctx, 9, 2, "medium")
	s.Require().NoError(err)
	second, err := client.FetchQuestions(s.ctx, 9, 2, "medium")
	s.Require().NoError(err)
	s.Equal(int32(1), calls.Load())

	// Cached copies are independent of each other
	first[0].Options[0] = "mutated"
	s.NotEqual("mutated", second[0].Options[0])

	// A different key misses the cache
	_, err = client.FetchQuestions(s.ctx, 11, 2, "medium")
	s.Require().NoError(err)
	s.Equal(int32(2), calls.Load())
}
