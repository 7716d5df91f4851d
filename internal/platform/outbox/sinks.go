package outbox

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/sahayak/sahayak/internal/platform/notification"
)

// LogSink writes each message to the log and always succeeds.
type LogSink struct {
	Logger zerolog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Publish(_ context.Context, m *Message) error {
	s.Logger.Info().
		Str("message_id", m.ID.String()).
		Str("topic", m.Topic).
		Str("key", m.Key).
		RawJSON("payload", m.Payload).
		Msg("outbox event")
	return nil
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes to a single topic, carrying the event topic in the
// "event" header and partitioning by message key.
type KafkaSink struct {
	w kafkaWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}}
}

func (*KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, m *Message) error {
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.Key),
		Value: m.Payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(m.Topic)},
			{Key: "message_id", Value: []byte(m.ID.String())},
		},
	})
}

func (s *KafkaSink) Close() error { return s.w.Close() }

// WebhookSink POSTs the payload to a single URL signed with HMAC-SHA256.
type WebhookSink struct {
	URL    string
	Secret string
	Client *http.Client
}

func NewWebhookSink(url, secret string) *WebhookSink {
	return &WebhookSink{URL: url, Secret: secret, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (*WebhookSink) Name() string { return "webhook" }

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *WebhookSink) Publish(ctx context.Context, m *Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(m.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sahayak-Event", m.Topic)
	req.Header.Set("X-Sahayak-Delivery", m.ID.String())
	if s.Secret != "" {
		req.Header.Set("X-Sahayak-Signature", "sha256="+SignPayload(m.Payload, s.Secret))
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// Contact is what NotifySink needs to know about a person.
type Contact struct {
	Name  string
	Phone string
	Email string
}

type Directory interface {
	Contact(ctx context.Context, id uuid.UUID) (Contact, error)
}

// ContactFunc adapts a function to Directory.
type ContactFunc func(ctx context.Context, id uuid.UUID) (Contact, error)

func (f ContactFunc) Contact(ctx context.Context, id uuid.UUID) (Contact, error) { return f(ctx, id) }

type notifier interface {
	Notify(ctx context.Context, templateID string, data map[string]string, to notification.Recipient) error
}

// NotifySink tells the patient about accepted, rejected and completed work
// items. Other topics are acknowledged without sending anything.
type NotifySink struct {
	notify notifier
	people Directory
}

func NewNotifySink(d notifier, people Directory) *NotifySink {
	return &NotifySink{notify: d, people: people}
}

func (*NotifySink) Name() string { return "notify" }

func templateFor(category, to string) string {
	switch category + "." + to {
	case "task.accepted":
		return notification.TemplateTaskAccepted
	case "task.completed":
		return notification.TemplateTaskCompleted
	case "consultation.accepted":
		return notification.TemplateConsultationAccepted
	case "consultation.rejected":
		return notification.TemplateConsultationRejected
	case "consultation.completed":
		return notification.TemplateConsultationDone
	}
	return ""
}

func (s *NotifySink) Publish(ctx context.Context, m *Message) error {
	var ev TransitionEvent
	if err := json.Unmarshal(m.Payload, &ev); err != nil {
		return fmt.Errorf("decode transition event: %w", err)
	}
	tpl := templateFor(ev.Category, ev.To)
	if tpl == "" {
		return nil
	}
	patient, err := s.people.Contact(ctx, ev.SubjectID)
	if err != nil {
		return err
	}
	assignee, err := s.people.Contact(ctx, ev.AssigneeID)
	if err != nil {
		return err
	}
	data := map[string]string{
		"patient_name":  patient.Name,
		"assignee_name": assignee.Name,
		"kind":          ev.Kind,
		"date":          ev.ScheduledAt.Format("02 Jan 2006 15:04"),
		"notes":         ev.Notes,
		"reason":        ev.Reason,
		"diagnosis":     ev.Diagnosis,
		"follow_up":     ev.FollowUp,
	}
	err = s.notify.Notify(ctx, tpl, data, notification.Recipient{Phone: patient.Phone, Email: patient.Email})
	if errors.Is(err, notification.ErrNoContact) {
		return nil
	}
	return err
}
