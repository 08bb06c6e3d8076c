// Package telegram is the thin layer between the bot and the Bot API client:
// the interfaces the bot depends on, an outbound rate limiter, and helpers
// for classifying API errors.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Sender delivers Bot API calls. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	// Send is for calls that return a Message (text, documents).
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	// Request is for calls that return a bare result (delete, answer callback).
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Poller is the long-polling side of the client.
type Poller interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client is everything the worker needs from the Bot API.
type Client interface {
	Sender
	Poller
}

var _ Client = (*tgbotapi.BotAPI)(nil)

// Connect authenticates with the Bot API using token.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return api, nil
}

// Limited throttles outbound calls with a token bucket so bursts of
// deletions and replies stay under the API's flood limits.
type Limited struct {
	ctx     context.Context
	next    Sender
	limiter *rate.Limiter
}

// NewLimited wraps next with a limiter of perSecond calls and the given burst.
// Waiting calls give up when ctx ends. A non-positive perSecond disables limiting.
func NewLimited(ctx context.Context, next Sender, perSecond float64, burst int) *Limited {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{ctx: ctx, next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (l *Limited) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := l.limiter.Wait(l.ctx); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return l.next.Send(c)
}

func (l *Limited) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := l.limiter.Wait(l.ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return l.next.Request(c)
}

// IsMessageGone reports whether err says the message to delete no longer exists.
func IsMessageGone(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message to delete not found")
}

// IsNotModified reports whether an edit was rejected because nothing changed.
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

// IsEntityParseError reports whether Telegram rejected the message markup.
func IsEntityParseError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "can't parse entities")
}
