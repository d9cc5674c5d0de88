package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TelegramSender implements Sender against the Telegram Bot API's
// sendMessage endpoint directly over net/http. No Go Telegram SDK appears
// anywhere in the retrieval pack, so rather than fabricate a dependency
// that was never grounded, this talks the wire protocol broadcaster.py's
// aiogram client wraps and reconstructs the same Forbidden/BadRequest/
// RetryAfter classification from the JSON error envelope and HTTP status.
type TelegramSender struct {
	token      string
	httpClient *http.Client
}

// NewTelegramSender builds a TelegramSender posting to api.telegram.org with
// the given bot token and per-request timeout.
func NewTelegramSender(token string, timeout time.Duration) *TelegramSender {
	return &TelegramSender{token: token, httpClient: &http.Client{Timeout: timeout}}
}

type sendMessagePayload struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

type telegramErrorResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Send posts message to chatID, attaching a feedback inline keyboard when
// withFeedbackButtons is set (only ever true for the admin chat).
func (s *TelegramSender) Send(ctx context.Context, chatID int64, message string, withFeedbackButtons bool) error {
	payload := sendMessagePayload{ChatID: chatID, Text: message}
	if withFeedbackButtons {
		payload.ReplyMarkup = feedbackKeyboard()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &SendError{Outcome: OutcomeOther, Err: err}
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &SendError{Outcome: OutcomeOther, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &SendError{Outcome: OutcomeOther, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	raw, _ := io.ReadAll(resp.Body)
	var errResp telegramErrorResponse
	_ = json.Unmarshal(raw, &errResp)

	switch resp.StatusCode {
	case http.StatusForbidden:
		return &SendError{Outcome: OutcomeForbidden, Err: fmt.Errorf("%s", errResp.Description)}
	case http.StatusTooManyRequests:
		wait := time.Duration(errResp.Parameters.RetryAfter) * time.Second
		if wait <= 0 {
			wait = time.Second
		}
		return &SendError{Outcome: OutcomeFloodWait, RetryAfter: wait, Err: fmt.Errorf("%s", errResp.Description)}
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(errResp.Description), "chat not found") ||
			strings.Contains(strings.ToLower(errResp.Description), "user is deactivated") {
			return &SendError{Outcome: OutcomeNotFound, Err: fmt.Errorf("%s", errResp.Description)}
		}
		return &SendError{Outcome: OutcomeOther, Err: fmt.Errorf("%s", errResp.Description)}
	default:
		return &SendError{Outcome: OutcomeOther, Err: fmt.Errorf("telegram status %d: %s", resp.StatusCode, errResp.Description)}
	}
}

func feedbackKeyboard() any {
	type button struct {
		Text         string `json:"text"`
		CallbackData string `json:"callback_data"`
	}
	return struct {
		InlineKeyboard [][]button `json:"inline_keyboard"`
	}{
		InlineKeyboard: [][]button{{
			{Text: "👍", CallbackData: "feedback:+"},
			{Text: "👎", CallbackData: "feedback:-"},
		}},
	}
}
