package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config bundles a Client's tunables.
type Config struct {
	APIKey  string
	BaseURL string
	Models  []string // fallback chain, tried in order
	Timeout time.Duration

	DailyLimitUSD     float64
	CostPerRequestUSD float64
	BudgetTimezone    *time.Location

	BreakerErrorThreshold int
	BreakerWindow         time.Duration
	BreakerCooldown       time.Duration

	MaxRequestsPerCycle int
	MaxConsecutive429   int
	BackoffSeconds      []int
}

// Client is the LLM classification client: HTTP transport plus the budget,
// breaker, and throttle guardrails wrapped around it.
type Client struct {
	httpClient *http.Client
	cfg        Config

	breaker  *Breaker
	budget   *Budget
	throttle *Throttle
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BudgetTimezone == nil {
		cfg.BudgetTimezone = time.UTC
	}
	if cfg.MaxRequestsPerCycle <= 0 {
		cfg.MaxRequestsPerCycle = 30
	}
	if cfg.MaxConsecutive429 <= 0 {
		cfg.MaxConsecutive429 = 3
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		breaker:    NewBreaker(cfg.BreakerErrorThreshold, cfg.BreakerWindow, cfg.BreakerCooldown),
		budget:     NewBudget(cfg.DailyLimitUSD, cfg.CostPerRequestUSD, cfg.BudgetTimezone),
		throttle:   NewThrottle(cfg.MaxRequestsPerCycle, cfg.MaxConsecutive429, cfg.BackoffSeconds),
	}
}

// ResetCycle clears the per-cycle throttle; call once per news cycle.
func (c *Client) ResetCycle() { c.throttle.ResetCycle() }

// BreakerState exposes the breaker's state for health reporting.
func (c *Client) BreakerState() BreakerState { return c.breaker.State() }

// BudgetStatus exposes today's spend against the daily ceiling, for health
// reporting.
func (c *Client) BudgetStatus(now time.Time) (spentUSD, limitUSD float64) {
	return c.budget.SpentToday(now), c.budget.DailyLimitUSD()
}

// Analyze classifies one candidate item, returning the parsed response, the
// raw model output (for audit logging), and an error code on failure. It
// retries once with an explicit JSON-only instruction if the first attempt
// returns malformed output, matching llm.py's analyze().
func (c *Client) Analyze(ctx context.Context, title, text, region, source string) (Response, string, ErrorCode) {
	prompt := BuildPrompt(title, text, region, source)

	resp, raw, code := c.callAPI(ctx, prompt)
	if code == ErrNone {
		return resp, raw, ErrNone
	}
	if code.nonRetryable() {
		return Response{}, raw, code
	}
	if code == ErrInvalidJSON {
		return c.callAPI(ctx, prompt+RetryInstruction)
	}
	return Response{}, raw, code
}

func (c *Client) callAPI(ctx context.Context, prompt string) (Response, string, ErrorCode) {
	now := time.Now()

	if !c.breaker.Allow(now) {
		return Response{}, "", ErrBreakerOpen
	}
	if !c.budget.Allow(now) {
		return Response{}, "", ErrBudgetExhausted
	}
	if ok, code := c.throttle.Available(); !ok {
		return Response{}, "", code
	}

	c.throttle.RecordRequest()

	var lastErr error
	lastCode := ErrNone
	for _, model := range c.modelsOrDefault() {
		raw, status, err := c.doRequest(ctx, model, prompt)
		if err != nil {
			lastErr = err
			continue
		}

		switch status {
		case http.StatusTooManyRequests:
			wait, exceeded := c.throttle.Record429()
			if exceeded {
				c.breaker.RecordFailure(now)
				return Response{}, "", ErrRateLimitExceeded
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Response{}, "", ErrTimeout
			}
			lastCode = ErrRateLimit
			continue
		case http.StatusPaymentRequired:
			c.throttle.RecordBillingLimit()
			c.breaker.RecordFailure(now)
			return Response{}, "", ErrBillingLimit
		case http.StatusOK:
			c.throttle.RecordSuccess()
			c.budget.RecordSpend(now)

			parsed, perr := ParseResponse(raw)
			if perr != nil {
				c.breaker.RecordSuccess(now) // the call itself succeeded; parsing didn't
				return Response{}, raw, ErrInvalidJSON
			}
			c.breaker.RecordSuccess(now)
			return parsed, raw, ErrNone
		default:
			lastErr = fmt.Errorf("unexpected status %d", status)
			continue
		}
	}

	c.breaker.RecordFailure(now)
	if lastCode != ErrNone {
		return Response{}, "", lastCode
	}
	if lastErr != nil {
		return Response{}, "", ErrAPIError
	}
	return Response{}, "", ErrOther
}

func (c *Client) modelsOrDefault() []string {
	if len(c.cfg.Models) == 0 {
		return []string{"default"}
	}
	return c.cfg.Models
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) doRequest(ctx context.Context, model, prompt string) (raw string, status int, err error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: "Ты анализируешь новости. Отвечай ТОЛЬКО валидным JSON. Никакого markdown, текста, комментариев. Только JSON."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.0,
		MaxTokens:   500,
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/prsbot")
	req.Header.Set("X-Title", "PRSBOT News Monitor")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}

	if resp.StatusCode != http.StatusOK {
		return string(data), resp.StatusCode, nil
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", resp.StatusCode, err
	}
	if len(parsed.Choices) == 0 {
		return "", resp.StatusCode, fmt.Errorf("empty choices")
	}
	return parsed.Choices[0].Message.Content, resp.StatusCode, nil
}
