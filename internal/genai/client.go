// Package genai produces quiz question sets from a topic via an external
// text-generation backend. Generate never fails the caller: exhausted retries
// yield deterministic placeholder questions so quiz creation is never blocked
// on a degraded backend.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"mentalmaze-quiz-service/internal/config"
	"mentalmaze-quiz-service/internal/domain"
)

var optionLabels = []string{"A", "B", "C", "D"}

type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string

	baseTimeout        time.Duration
	perQuestionTimeout time.Duration
	maxTimeout         time.Duration
	maxAttempts        int
	backoffBase        time.Duration
	backoffMax         time.Duration

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration)
}

func NewClient(cfg config.Config) *Client {
	gen := cfg.Generation
	maxAttempts := gen.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Client{
		httpClient:         &http.Client{},
		endpoint:           gen.Endpoint,
		apiKey:             gen.APIKey,
		model:              gen.Model,
		baseTimeout:        config.TTLDuration(gen.BaseTimeout, 8*time.Second),
		perQuestionTimeout: config.TTLDuration(gen.PerQuestionTimeout, 2*time.Second),
		maxTimeout:         config.TTLDuration(gen.MaxTimeout, 30*time.Second),
		maxAttempts:        maxAttempts,
		backoffBase:        config.TTLDuration(gen.BackoffBase, time.Second),
		backoffMax:         config.TTLDuration(gen.BackoffMax, 8*time.Second),
		sleep:              sleepCtx,
	}
}

// Generate returns questionCount questions about topic. Context text is
// sanitized before prompting; every transport or format failure is retried
// with exponential backoff until attempts run out, then the deterministic
// fallback set is returned.
func (c *Client) Generate(ctx context.Context, topic string, questionCount int, contextText string) []domain.Question {
	if questionCount <= 0 {
		return nil
	}
	cleaned := SanitizeContext(contextText)
	prompt := buildPrompt(topic, questionCount, cleaned)
	timeout := c.timeoutFor(questionCount, len(cleaned))

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			c.sleep(ctx, c.backoffFor(attempt))
		}
		questions, err := c.generateOnce(ctx, prompt, questionCount, timeout)
		if err == nil {
			return questions
		}
		lastErr = err
	}

	log.Printf("question generation exhausted %d attempts for topic %q: %v; using fallback", c.maxAttempts, topic, lastErr)
	return Fallback(topic, questionCount)
}

func (c *Client) generateOnce(ctx context.Context, prompt string, questionCount int, timeout time.Duration) ([]domain.Question, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{
		"model":  c.model,
		"prompt": prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	questions, err := ParseQuestions(payload.Text)
	if err != nil {
		return nil, err
	}
	if len(questions) < questionCount {
		return nil, fmt.Errorf("backend returned %d questions, want %d", len(questions), questionCount)
	}
	return questions[:questionCount], nil
}

// timeoutFor grows the per-attempt timeout with the requested question count
// and the context size, capped so large requests cannot wait indefinitely.
func (c *Client) timeoutFor(questionCount, contextLen int) time.Duration {
	timeout := c.baseTimeout + time.Duration(questionCount)*c.perQuestionTimeout
	timeout += time.Duration(contextLen/512) * 500 * time.Millisecond
	if timeout > c.maxTimeout {
		timeout = c.maxTimeout
	}
	return timeout
}

func (c *Client) backoffFor(attempt int) time.Duration {
	backoff := c.backoffBase
	for i := 1; i < attempt; i++ {
		backoff *= 2
		// Cap inside the loop; doubling unchecked overflows Duration for
		// large attempt counts.
		if backoff >= c.backoffMax {
			return c.backoffMax
		}
	}
	if backoff > c.backoffMax {
		backoff = c.backoffMax
	}
	return backoff
}

func buildPrompt(topic string, questionCount int, contextText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d multiple choice quiz questions about %s.\n", questionCount, topic)
	b.WriteString("Format each question exactly as follows, separated by a blank line:\n")
	b.WriteString("Question: [question]\n")
	b.WriteString("A) [option]\nB) [option]\nC) [option]\nD) [option]\n")
	b.WriteString("Correct Answer: [letter]\n")
	if contextText != "" {
		b.WriteString("\nUse the following context:\n")
		b.WriteString(contextText)
	}
	return b.String()
}

// Fallback synthesizes one well-formed placeholder question per requested
// question. Content is a pure function of topic and index.
func Fallback(topic string, questionCount int) []domain.Question {
	questions := make([]domain.Question, questionCount)
	for i := range questions {
		questions[i] = domain.Question{
			Index:  i,
			Prompt: fmt.Sprintf("Placeholder %d: which statement about %s is most accurate?", i+1, topic),
			Options: []domain.Option{
				{Label: "A", Text: fmt.Sprintf("%s is a topic worth revisiting once generation recovers", topic)},
				{Label: "B", Text: fmt.Sprintf("%s has no notable properties", topic)},
				{Label: "C", Text: fmt.Sprintf("%s is unrelated to this quiz", topic)},
				{Label: "D", Text: fmt.Sprintf("%s cannot be described", topic)},
			},
			Correct: "A",
		}
	}
	return questions
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
