// Package broadcast delivers a formatted signal to every active subscriber
// at a fixed pace, classifying per-recipient failures the way the chat
// provider's SDK would throw them so the caller's policy stays pure.
//
// Shaped after the teacher's internal/alerts.SlackClient: a single outbound
// channel, sequential pacing instead of a token bucket per recipient, and a
// metrics struct mirroring AlertMetrics. The per-recipient Forbidden/NotFound/
// FloodWait/Other classification is grounded on broadcaster.py's exception
// handling around aiogram's TelegramForbiddenError/TelegramBadRequest/
// TelegramRetryAfter.
package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Outcome classifies what happened sending to one recipient.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeForbidden
	OutcomeNotFound
	OutcomeFloodWait
	OutcomeOther
)

// SendError is what a Sender returns for a failed delivery. RetryAfter is
// only meaningful when Outcome is OutcomeFloodWait.
type SendError struct {
	Outcome    Outcome
	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send failed (%v): %v", e.Outcome, e.Err)
	}
	return fmt.Sprintf("send failed (%v)", e.Outcome)
}

func (e *SendError) Unwrap() error { return e.Err }

// Sender delivers one message to one chat. Implementations wrap whatever
// chat-provider client is wired in at the edges; this package never talks
// to a transport directly.
type Sender interface {
	Send(ctx context.Context, chatID int64, message string, withFeedbackButtons bool) error
}

// SubscriberLister is the read side of the subscriber store the broadcaster
// needs: the list of currently active recipients.
type SubscriberLister interface {
	ActiveChatIDs(ctx context.Context) ([]int64, error)
}

// Deactivator is called for recipients the provider reports as permanently
// unreachable.
type Deactivator interface {
	Deactivate(ctx context.Context, chatID int64) error
}

// Result summarizes one broadcast pass.
type Result struct {
	Sent        int
	Failed      int
	Deactivated int
}

// Config controls pacing and admin delivery.
type Config struct {
	MessagesPerSecond   float64
	MaxRetriesFloodWait int
	AdminChatID         int64
}

// Broadcaster paces delivery across a subscriber list, sequentially, per
// §4.13: success counts sent, forbidden/not-found deactivates the
// subscriber, flood-wait sleeps and retries once, anything else counts
// failed and is logged.
type Broadcaster struct {
	sender      Sender
	subscribers SubscriberLister
	deactivator Deactivator
	cfg         Config
}

func New(sender Sender, subscribers SubscriberLister, deactivator Deactivator, cfg Config) *Broadcaster {
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 15
	}
	if cfg.MaxRetriesFloodWait <= 0 {
		cfg.MaxRetriesFloodWait = 1
	}
	return &Broadcaster{sender: sender, subscribers: subscribers, deactivator: deactivator, cfg: cfg}
}

func (b *Broadcaster) delay() time.Duration {
	return time.Duration(float64(time.Second) / b.cfg.MessagesPerSecond)
}

// Broadcast delivers message to every active subscriber. withFeedbackButtons
// is only honored for the configured admin chat ID, per §4.13.
func (b *Broadcaster) Broadcast(ctx context.Context, message string) (Result, error) {
	chatIDs, err := b.subscribers.ActiveChatIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list active subscribers: %w", err)
	}
	if len(chatIDs) == 0 {
		return Result{}, nil
	}

	var res Result
	for i, chatID := range chatIDs {
		withButtons := chatID == b.cfg.AdminChatID
		if b.sendOne(ctx, chatID, message, withButtons, &res) {
			res.Sent++
		} else {
			res.Failed++
		}

		if i < len(chatIDs)-1 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(b.delay()):
			}
		}
	}
	return res, nil
}

// sendOne delivers to a single recipient, applying the flood-wait retry-once
// policy, and reports whether the send ultimately succeeded.
func (b *Broadcaster) sendOne(ctx context.Context, chatID int64, message string, withButtons bool, res *Result) bool {
	err := b.sender.Send(ctx, chatID, message, withButtons)
	if err == nil {
		return true
	}

	sendErr, ok := err.(*SendError)
	if !ok {
		log.Printf("broadcast: send to %d failed: %v", chatID, err)
		return false
	}

	switch sendErr.Outcome {
	case OutcomeForbidden, OutcomeNotFound:
		if b.deactivator != nil {
			if deactErr := b.deactivator.Deactivate(ctx, chatID); deactErr != nil {
				log.Printf("broadcast: deactivate %d failed: %v", chatID, deactErr)
			} else {
				res.Deactivated++
			}
		}
		return false
	case OutcomeFloodWait:
		log.Printf("broadcast: flood wait %v for %d, retrying once", sendErr.RetryAfter, chatID)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(sendErr.RetryAfter):
		}
		if retryErr := b.sender.Send(ctx, chatID, message, withButtons); retryErr != nil {
			log.Printf("broadcast: retry to %d failed: %v", chatID, retryErr)
			return false
		}
		return true
	default:
		log.Printf("broadcast: send to %d failed: %v", chatID, sendErr)
		return false
	}
}
