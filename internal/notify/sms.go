package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/escalation"
	"github.com/shubhsahu23/VoiceBot/internal/redact"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

const maxSummaryRunes = 120

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// SMSAlerter texts on-call staff when an emergency ticket is opened.
type SMSAlerter struct {
	client messageCreator
	from   string
	to     []string
	logger *slog.Logger
}

// NewSMSAlerter creates an alerter using the Twilio REST API.
func NewSMSAlerter(accountSID, authToken, from string, to []string, logger *slog.Logger) *SMSAlerter {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newSMSAlerter(rest.Api, from, to, logger)
}

func newSMSAlerter(c messageCreator, from string, to []string, logger *slog.Logger) *SMSAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMSAlerter{client: c, from: from, to: to, logger: logger.With("component", "sms_alerter")}
}

// Notify implements escalation.Notifier. Only newly opened emergency
// tickets produce a text.
func (a *SMSAlerter) Notify(ctx context.Context, ev escalation.Event) error {
	if ev.Type != escalation.EventOpened || ev.Ticket.Intent != domain.IntentEmergency {
		return nil
	}

	body := alertBody(ev.Ticket)
	var errs []error
	for _, to := range a.to {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		params := &api.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(a.from)
		params.SetBody(body)

		resp, err := a.client.CreateMessage(params)
		if err != nil {
			errs = append(errs, fmt.Errorf("sms to %s: %w", redact.Phone(to), err))
			continue
		}
		sid := ""
		if resp != nil && resp.Sid != nil {
			sid = *resp.Sid
		}
		a.logger.Info("Emergency alert sent",
			"ticket_id", ev.Ticket.ID,
			"to", redact.Phone(to),
			"sid", sid)
	}
	return errors.Join(errs...)
}

func alertBody(t domain.Ticket) string {
	summary := []rune(redact.Text(t.Summary))
	if len(summary) > maxSummaryRunes {
		summary = append(summary[:maxSummaryRunes], '…')
	}
	return fmt.Sprintf("EMERGENCY ticket %s for driver %s: %s", t.ID, t.DriverID, string(summary))
}
