package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sahayak/sahayak/internal/domain/prescription"
	"github.com/sahayak/sahayak/internal/domain/vitals"
	"github.com/sahayak/sahayak/internal/platform/apperr"
	"github.com/sahayak/sahayak/internal/platform/metrics"
)

// Generator produces model text for a prompt. *Client implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ChatContext struct {
	UserID        string               `json:"user_id"`
	Vitals        *vitals.Measurements `json:"vitals,omitempty"`
	Diseases      []string             `json:"diseases,omitempty"`
	RecentReports []string             `json:"recent_reports,omitempty"`
	Language      string               `json:"language,omitempty"`
}

type Insight struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Priority   string `json:"priority"`
	Actionable bool   `json:"actionable"`
}

type DocumentAnalysis struct {
	ExtractedData   map[string]any `json:"extracted_data"`
	Summary         string         `json:"summary"`
	Recommendations []string       `json:"recommendations"`
}

type EmergencyAdvice struct {
	ImmediateActions []string `json:"immediate_actions"`
	WhenToSeekHelp   []string `json:"when_to_seek_help"`
	PreventionTips   []string `json:"prevention_tips"`
}

var genericAdvice = EmergencyAdvice{
	ImmediateActions: []string{"Stay calm and assess the situation"},
	WhenToSeekHelp:   []string{"If symptoms worsen or persist"},
	PreventionTips:   []string{"Follow medical advice and maintain a healthy lifestyle"},
}

var validSeverities = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

// Assistant runs the health-assistant prompts. Model output that does not
// parse degrades to a text fallback; transport failures surface as errors.
type Assistant struct {
	gen Generator
	log zerolog.Logger
}

func NewAssistant(gen Generator, logger zerolog.Logger) *Assistant {
	return &Assistant{gen: gen, log: logger.With().Str("component", "ai").Logger()}
}

func (a *Assistant) generate(ctx context.Context, op, prompt string) (string, error) {
	if a.gen == nil {
		metrics.RecordAIRequest(op, "disabled")
		return "", apperr.Upstream(upstreamName, ErrDisabled)
	}
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		metrics.RecordAIRequest(op, "error")
		a.log.Error().Err(err).Str("operation", op).Msg("model call failed")
		return "", err
	}
	metrics.RecordAIRequest(op, "ok")
	return text, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		t = ""
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

func decodeModelJSON(text string, v any) error {
	return json.Unmarshal([]byte(stripFences(text)), v)
}

const systemPrompt = `You are Sahayak, a health assistant for patients in rural India. You help with
health advice and education, symptom questions, medication reminders, lifestyle changes and knowing
when to see a doctor.

Patient context:
- User ID: %s
- Diseases: %s
- Recent vitals: %s
- Recent reports: %s
- Language: %s

Be empathetic and use simple, clear language. Give practical advice that fits the local context.
Always recommend consulting a doctor for serious concerns, and encourage preventive care.`

func joinOr(items []string, none string) string {
	if len(items) == 0 {
		return none
	}
	return strings.Join(items, ", ")
}

func (a *Assistant) Chat(ctx context.Context, message string, cc ChatContext) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", apperr.Validation("message is required", map[string]string{"message": "is required"})
	}
	lang := cc.Language
	if lang == "" {
		lang = "English"
	}
	vitalsText := "Not available"
	if cc.Vitals != nil {
		vitalsText = describeVitals(cc.Vitals)
	}
	prompt := fmt.Sprintf(systemPrompt, cc.UserID, joinOr(cc.Diseases, "None reported"), vitalsText,
		joinOr(cc.RecentReports, "None"), lang)
	return a.generate(ctx, "chat", prompt+"\n\nUser message: "+message)
}

func describeVitals(m *vitals.Measurements) string {
	var lines []string
	add := func(label, value string) { lines = append(lines, "- "+label+": "+value) }
	notProvided := "Not provided"

	if bp := m.BloodPressure; bp != nil {
		add("Blood pressure", fmt.Sprintf("%d/%d mmHg", bp.Systolic, bp.Diastolic))
	} else {
		add("Blood pressure", notProvided)
	}
	if bs := m.BloodSugar; bs != nil {
		state := "non-fasting"
		if bs.Fasting {
			state = "fasting"
		}
		unit := bs.Unit
		if unit == "" {
			unit = vitals.UnitMgDL
		}
		add("Blood sugar", fmt.Sprintf("%g %s (%s)", bs.Value, unit, state))
	} else {
		add("Blood sugar", notProvided)
	}
	optional := func(label string, v *float64, unit string) {
		if v == nil {
			add(label, notProvided)
			return
		}
		add(label, fmt.Sprintf("%g %s", *v, unit))
	}
	optional("Weight", m.WeightKg, "kg")
	optional("Height", m.HeightCm, "cm")
	if m.HeartRate != nil {
		add("Heart rate", fmt.Sprintf("%d bpm", *m.HeartRate))
	} else {
		add("Heart rate", notProvided)
	}
	optional("Temperature", m.TemperatureF, "°F")
	add("Symptoms", joinOr(m.Symptoms, "None reported"))
	return strings.Join(lines, "\n")
}

// Insights asks for a JSON array of insights. Text that is not such an
// array becomes one medium-priority advice insight.
func (a *Assistant) Insights(ctx context.Context, m *vitals.Measurements, diseases []string) ([]Insight, error) {
	if m == nil {
		return nil, apperr.Validation("vitals are required", map[string]string{"vitals": "is required"})
	}
	prompt := "Analyze these health vitals and give insights.\n\nVitals:\n" + describeVitals(m) +
		"\n\nExisting diseases: " + joinOr(diseases, "None") + `

Cover the overall health status, any warnings, lifestyle recommendations and when to consult a doctor.
Respond with a JSON array of objects with the fields type (advice, warning, reminder or education),
title, message, priority (low, medium or high) and actionable (boolean).`

	text, err := a.generate(ctx, "insights", prompt)
	if err != nil {
		return nil, err
	}
	var raw []Insight
	if err := decodeModelJSON(text, &raw); err != nil {
		return []Insight{{Type: "advice", Title: "Health Assessment", Message: text, Priority: "medium"}}, nil
	}
	out := make([]Insight, 0, len(raw))
	for _, in := range raw {
		if in.Type == "" {
			in.Type = "advice"
		}
		if in.Title == "" {
			in.Title = "Health Insight"
		}
		if in.Priority == "" {
			in.Priority = "low"
		}
		out = append(out, in)
	}
	return out, nil
}

// ParseDocument extracts structured data from report text. When the model
// does not answer in JSON the summary is its raw text.
func (a *Assistant) ParseDocument(ctx context.Context, text string) (*DocumentAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("document text is required", map[string]string{"text": "is required"})
	}
	prompt := "Parse this medical document and extract the key information.\n\nDocument text: " + text + `

Extract patient demographics (age and gender if mentioned), vital signs, diagnoses, prescribed
medications, test results and the doctor's recommendations. Respond with a JSON object with the
fields extractedData (object), summary (string) and recommendations (array of strings).`

	out, err := a.generate(ctx, "parse_document", prompt)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		ExtractedData   map[string]any `json:"extractedData"`
		Summary         string         `json:"summary"`
		Recommendations []string       `json:"recommendations"`
	}
	if err := decodeModelJSON(out, &parsed); err != nil {
		return &DocumentAnalysis{ExtractedData: map[string]any{}, Summary: out, Recommendations: []string{}}, nil
	}
	res := &DocumentAnalysis{
		ExtractedData:   parsed.ExtractedData,
		Summary:         parsed.Summary,
		Recommendations: parsed.Recommendations,
	}
	if res.ExtractedData == nil {
		res.ExtractedData = map[string]any{}
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	return res, nil
}

// MedicationReminders returns the model's reminder list, or its raw text
// as a single reminder.
func (a *Assistant) MedicationReminders(ctx context.Context, meds []prescription.Medication) ([]string, error) {
	if len(meds) == 0 {
		return nil, apperr.Validation("medications are required", map[string]string{"medications": "is required"})
	}
	list, err := json.Marshal(meds)
	if err != nil {
		return nil, fmt.Errorf("encode medications: %w", err)
	}
	prompt := "Write helpful reminders for these medications:\n" + string(list) + `

Cover timing, food interactions, side effects to watch for, storage and when to contact a doctor.
Respond with a JSON array of strings.`

	text, err := a.generate(ctx, "reminders", prompt)
	if err != nil {
		return nil, err
	}
	var reminders []string
	if err := decodeModelJSON(text, &reminders); err != nil {
		return []string{text}, nil
	}
	return reminders, nil
}

// EmergencyAdvice falls back to fixed generic advice when the model output
// does not parse.
func (a *Assistant) EmergencyAdvice(ctx context.Context, symptoms, severity string) (*EmergencyAdvice, error) {
	details := map[string]string{}
	if strings.TrimSpace(symptoms) == "" {
		details["symptoms"] = "is required"
	}
	if !validSeverities[severity] {
		details["severity"] = "must be low, medium, high or critical"
	}
	if len(details) > 0 {
		return nil, apperr.Validation("invalid emergency advice request", details)
	}
	prompt := "Give emergency health advice for these symptoms: " + symptoms + "\nSeverity: " + severity + `

List immediate actions, when to seek medical help and prevention tips. Respond with a JSON object with
the array fields immediateActions, whenToSeekHelp and preventionTips.`

	text, err := a.generate(ctx, "emergency_advice", prompt)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		ImmediateActions []string `json:"immediateActions"`
		WhenToSeekHelp   []string `json:"whenToSeekHelp"`
		PreventionTips   []string `json:"preventionTips"`
	}
	if err := decodeModelJSON(text, &parsed); err != nil {
		advice := genericAdvice
		return &advice, nil
	}
	return &EmergencyAdvice{
		ImmediateActions: parsed.ImmediateActions,
		WhenToSeekHelp:   parsed.WhenToSeekHelp,
		PreventionTips:   parsed.PreventionTips,
	}, nil
}

// Translate returns text in language. Any failure returns the original.
func (a *Assistant) Translate(ctx context.Context, text, language string) string {
	if strings.TrimSpace(text) == "" || language == "" {
		return text
	}
	prompt := "Translate the following English text to " + language + ". Keep medical terms accurate and " +
		"culturally appropriate. Reply with the translation only.\n\nText: " + text
	out, err := a.generate(ctx, "translate", prompt)
	if err != nil || strings.TrimSpace(out) == "" {
		a.log.Warn().Err(err).Str("language", language).Msg("translation fell back to original text")
		return text
	}
	return strings.TrimSpace(out)
}
