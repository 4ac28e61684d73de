package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
)

var ErrNoRecipient = errors.New("notify: recipient phone number missing")

// Gateway delivers a single text message.
type Gateway interface {
	Send(ctx context.Context, to, body string) error
}

type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioGateway sends text messages through the Twilio REST API.
type TwilioGateway struct {
	api  messageCreator
	from string
	log  zerolog.Logger
}

func NewTwilioGateway(accountSID, authToken, from string, logger zerolog.Logger) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioGateway{api: client.Api, from: from, log: logger}
}

func (g *TwilioGateway) Send(ctx context.Context, to, body string) error {
	if to == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(g.from)
	params.SetBody(body)

	msg, err := g.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}

	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	g.log.Info().Str("to", to).Str("sid", sid).Msg("sms sent")
	return nil
}

// LogGateway only logs messages. It stands in for Twilio when no credentials are configured.
type LogGateway struct {
	log zerolog.Logger
}

func NewLogGateway(logger zerolog.Logger) *LogGateway {
	return &LogGateway{log: logger}
}

func (g *LogGateway) Send(_ context.Context, to, body string) error {
	if to == "" {
		return ErrNoRecipient
	}
	g.log.Info().Str("to", to).Str("body", body).Msg("sms simulation")
	return nil
}

// RateLimitedGateway throttles sends to stay under the provider's account limits.
type RateLimitedGateway struct {
	next    Gateway
	limiter *rate.Limiter
}

func NewRateLimitedGateway(next Gateway, perSecond float64, burst int) *RateLimitedGateway {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedGateway{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (g *RateLimitedGateway) Send(ctx context.Context, to, body string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate limit: %w", err)
	}
	return g.next.Send(ctx, to, body)
}
