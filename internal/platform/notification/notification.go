// Package notification renders care templates and delivers them over SMS or
// email. Real gateways sit behind the sender interfaces; development uses
// the log senders.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template is a message with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// Built-in template ids, one per notified work item transition.
const (
	TemplateTaskAccepted         = "task-accepted"
	TemplateTaskCompleted        = "task-completed"
	TemplateConsultationAccepted = "consultation-accepted"
	TemplateConsultationRejected = "consultation-rejected"
	TemplateConsultationDone     = "consultation-completed"
)

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the care templates registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			ID:      TemplateTaskAccepted,
			Subject: "Health worker visit confirmed",
			Body:    "Namaste {{patient_name}}, your {{kind}} visit on {{date}} has been accepted by {{assignee_name}}.",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateTaskCompleted,
			Subject: "Health worker visit completed",
			Body:    "Namaste {{patient_name}}, {{assignee_name}} has completed your {{kind}} visit. Notes: {{notes}}",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateConsultationAccepted,
			Subject: "Consultation confirmed",
			Body:    "Namaste {{patient_name}}, Dr. {{assignee_name}} accepted your {{kind}} consultation on {{date}}.",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateConsultationRejected,
			Subject: "Consultation declined",
			Body:    "Namaste {{patient_name}}, Dr. {{assignee_name}} could not take your consultation on {{date}}. Reason: {{reason}}",
			Channel: ChannelSMS,
		},
		{
			ID:      TemplateConsultationDone,
			Subject: "Consultation summary",
			Body:    "Namaste {{patient_name}}, your consultation with Dr. {{assignee_name}} is complete. Diagnosis: {{diagnosis}}. Follow-up: {{follow_up}}",
			Channel: ChannelSMS,
		},
	} {
		e.RegisterTemplate(t)
	}
	return e
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render performs {{key}} replacement. Keys missing from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

func (e *TemplateEngine) channel(templateID string) Channel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.templates[templateID]; ok {
		return t.Channel
	}
	return ChannelSMS
}

// Recipient holds the contact points of the person being notified.
type Recipient struct {
	Phone string
	Email string
}

var ErrNoContact = errors.New("recipient has no contact for channel")

// Dispatcher renders a template and sends it on the template's channel.
type Dispatcher struct {
	sms       SMSSender
	email     EmailSender
	templates *TemplateEngine
}

func NewDispatcher(sms SMSSender, email EmailSender, tpl *TemplateEngine) *Dispatcher {
	if tpl == nil {
		tpl = NewTemplateEngine()
	}
	return &Dispatcher{sms: sms, email: email, templates: tpl}
}

func (d *Dispatcher) Notify(ctx context.Context, templateID string, data map[string]string, to Recipient) error {
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return err
	}

	switch d.templates.channel(templateID) {
	case ChannelEmail:
		if to.Email == "" || d.email == nil {
			return ErrNoContact
		}
		return d.email.SendEmail(ctx, to.Email, subject, body)
	default:
		if to.Phone == "" || d.sms == nil {
			return ErrNoContact
		}
		return d.sms.SendSMS(ctx, to.Phone, body)
	}
}

// LogSMSSender writes messages to the log instead of a gateway.
type LogSMSSender struct {
	Logger zerolog.Logger
}

func (s LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Info().Str("channel", "sms").Str("to", maskPhone(to)).Str("body", body).Msg("notification")
	return nil
}

type LogEmailSender struct {
	Logger zerolog.Logger
}

func (s LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Logger.Info().Str("channel", "email").Str("to", to).Str("subject", subject).Str("body", body).Msg("notification")
	return nil
}

// maskPhone keeps the last four digits.
func maskPhone(p string) string {
	if len(p) <= 4 {
		return p
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}

// SMSCall records a single call to SendSMS.
type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender is a test double for SMSSender.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}
