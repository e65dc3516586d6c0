// Package finalize converts a finished call's transcript and shadow field
// record into a validated structured intake record. It runs after session
// close, asynchronously; a failure here never touches the call itself.
package finalize

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ErikRobinson94/caseconnect/internal/intake"
)

// Canonical output keys.
const (
	KeyClientType = "clientType"
	KeyFullName   = "fullName"
	KeyPhone      = "phone"
	KeyEmail      = "email"
	KeyIncident   = "incidentDescription"
	KeyDate       = "incidentDate"
	KeyLocation   = "incidentLocation"
	KeyInjuries   = "injuries"
	KeyTreatment  = "treatment"
)

var fieldKeys = []string{
	KeyClientType, KeyFullName, KeyPhone, KeyEmail,
	KeyIncident, KeyDate, KeyLocation, KeyInjuries, KeyTreatment,
}

// Base confidences assigned to realtime extractor output before the LLM
// pass weighs in.
var baseConfidence = map[string]float64{
	KeyClientType: 0.7,
	KeyFullName:   0.6,
	KeyPhone:      0.85,
	KeyEmail:      0.85,
	KeyIncident:   0.55,
	KeyDate:       0.7,
	KeyLocation:   0.6,
	KeyInjuries:   0.5,
	KeyTreatment:  0.5,
}

// Meta stamps the result with provenance.
type Meta struct {
	TranscriptHash string `json:"transcriptHash"`
	CallSID        string `json:"callSid,omitempty"`
	CallStartedAt  string `json:"callStartedAt,omitempty"`
	CallEndedAt    string `json:"callEndedAt,omitempty"`
	Source         string `json:"source"`
}

// Result is the structured intake record.
type Result struct {
	Fields           map[string]string   `json:"fields"`
	Confidence       map[string]float64  `json:"confidence"`
	SourceUtterances map[string][]string `json:"sourceUtterances"`
	Meta             Meta                `json:"meta"`
}

// CallMeta carries timing identity from the closed session.
type CallMeta struct {
	CallSID   string
	StartedAt time.Time
	EndedAt   time.Time
}

// llmOutput is the shape requested from the model.
type llmOutput struct {
	ClientType          string              `json:"clientType"`
	FullName            string              `json:"fullName"`
	Phone               string              `json:"phone"`
	Email               string              `json:"email"`
	IncidentDescription string              `json:"incidentDescription"`
	IncidentDate        string              `json:"incidentDate"`
	IncidentLocation    string              `json:"incidentLocation"`
	Injuries            string              `json:"injuries"`
	Treatment           string              `json:"treatment"`
	Confidence          map[string]float64  `json:"confidence"`
	SourceUtterances    map[string][]string `json:"sourceUtterances"`
}

func (o *llmOutput) field(key string) string {
	switch key {
	case KeyClientType:
		return o.ClientType
	case KeyFullName:
		return o.FullName
	case KeyPhone:
		return o.Phone
	case KeyEmail:
		return o.Email
	case KeyIncident:
		return o.IncidentDescription
	case KeyDate:
		return o.IncidentDate
	case KeyLocation:
		return o.IncidentLocation
	case KeyInjuries:
		return o.Injuries
	case KeyTreatment:
		return o.Treatment
	}
	return ""
}

// Normalizer performs the LLM-backed normalization pass.
type Normalizer struct {
	client *openai.Client
	model  string
}

// NewNormalizer builds a normalizer; with an empty API key the LLM pass is
// skipped and only the shadow seed is emitted.
func NewNormalizer(apiKey, model string) *Normalizer {
	if model == "" {
		model = openai.GPT4oMini
	}
	n := &Normalizer{model: model}
	if apiKey != "" {
		n.client = openai.NewClient(apiKey)
	}
	return n
}

// seed maps the shadow record onto canonical keys with base confidences.
func seed(rec intake.Record) (map[string]string, map[string]float64) {
	fields := map[string]string{}
	put := func(key, val string) {
		if val != "" {
			fields[key] = val
		}
	}
	put(KeyClientType, rec.ClientType)
	put(KeyFullName, rec.FullName)
	put(KeyPhone, rec.Phone)
	put(KeyEmail, rec.Email)
	put(KeyIncident, rec.Incident)
	put(KeyDate, rec.Date)
	put(KeyLocation, rec.Location)
	put(KeyInjuries, rec.Injuries)
	put(KeyTreatment, rec.Treatment)

	conf := map[string]float64{}
	for k := range fields {
		c, ok := baseConfidence[k]
		if !ok {
			c = 0.5
		}
		conf[k] = c
	}
	return fields, conf
}

// Checkpoint builds a mid-call snapshot without the LLM pass.
func Checkpoint(rec intake.Record, transcripts []string) Result {
	fields, conf := seed(rec)
	return Result{
		Fields:           fields,
		Confidence:       conf,
		SourceUtterances: map[string][]string{},
		Meta: Meta{
			TranscriptHash: transcriptHash(transcripts),
			Source:         "live-call",
		},
	}
}

// Finalize runs the full normalization: seed the shadow record, ask the
// model for a strict-JSON reconciliation against the transcript, merge the
// two preferring higher confidence, then validate.
func (n *Normalizer) Finalize(ctx context.Context, rec intake.Record, transcripts []string, meta CallMeta) (Result, error) {
	seedFields, seedConf := seed(rec)

	out := Result{
		Fields:           seedFields,
		Confidence:       seedConf,
		SourceUtterances: map[string][]string{},
		Meta: Meta{
			TranscriptHash: transcriptHash(transcripts),
			CallSID:        meta.CallSID,
			Source:         "post-call",
		},
	}
	if !meta.StartedAt.IsZero() {
		out.Meta.CallStartedAt = meta.StartedAt.UTC().Format(time.RFC3339)
	}
	if !meta.EndedAt.IsZero() {
		out.Meta.CallEndedAt = meta.EndedAt.UTC().Format(time.RFC3339)
	}

	if n.client == nil {
		return out, nil
	}

	llm, err := n.callModel(ctx, seedFields, transcripts)
	if err != nil {
		// Shadow seed is still a useful record; report the degraded pass.
		return out, fmt.Errorf("llm normalization failed: %w", err)
	}

	out.Fields, out.Confidence, out.SourceUtterances = merge(seedFields, seedConf, llm)
	return out, nil
}

func (n *Normalizer) callModel(ctx context.Context, seedFields map[string]string, transcripts []string) (*llmOutput, error) {
	seedJSON, _ := json.Marshal(seedFields)
	var lines strings.Builder
	for i, t := range transcripts {
		fmt.Fprintf(&lines, "%d. %s\n", i+1, t)
	}

	system := "You convert messy phone-call transcripts into STRICT JSON for a legal intake.\n" +
		"- Output ONLY a JSON object, no prose.\n" +
		"- If uncertain, set a field to null (do not guess).\n" +
		"- Include a \"confidence\" object with per-field scores in [0,1].\n" +
		"- Include \"sourceUtterances\" mapping field -> array of raw caller lines supporting it."
	user := fmt.Sprintf(
		"Seed data from realtime extractors (may be partial or noisy):\n%s\n\n"+
			"Transcript (chronological caller lines):\n%s\n"+
			"Return ONLY a JSON object with keys: "+
			"{\"clientType\",\"fullName\",\"phone\",\"email\",\"incidentDescription\",\"incidentDate\","+
			"\"incidentLocation\",\"injuries\",\"treatment\",\"confidence\",\"sourceUtterances\"}",
		seedJSON, lines.String())

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion")
	}
	var out llmOutput
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return nil, fmt.Errorf("unparseable completion: %w", err)
	}
	return &out, nil
}

// merge reconciles seed and LLM values field by field: keep whichever side
// has a value, and on conflict prefer higher confidence with a slight bias
// to the LLM, whose output is format-normalized.
func merge(seedFields map[string]string, seedConf map[string]float64, llm *llmOutput) (map[string]string, map[string]float64, map[string][]string) {
	fields := map[string]string{}
	conf := map[string]float64{}
	sources := map[string][]string{}

	for _, key := range fieldKeys {
		sVal := strings.TrimSpace(seedFields[key])
		lVal := strings.TrimSpace(llm.field(key))
		sConf := seedConf[key]
		lConf := llm.Confidence[key]

		switch {
		case sVal != "" && lVal == "":
			fields[key], conf[key] = sVal, sConf
		case sVal == "" && lVal != "":
			fields[key], conf[key] = lVal, lConf
		case sVal != "" && lVal != "":
			if lConf >= sConf-0.05 {
				fields[key] = lVal
				conf[key] = maxFloat(lConf, sConf*0.95)
			} else {
				fields[key] = sVal
				conf[key] = maxFloat(sConf, lConf*0.95)
			}
		}
		if _, ok := fields[key]; ok {
			sources[key] = llm.SourceUtterances[key]
			if sources[key] == nil {
				sources[key] = []string{}
			}
		}
	}
	return fields, conf, sources
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Validate checks the merged record's required shape and returns the list
// of violations; an empty list means valid.
func Validate(r Result) []string {
	var errs []string
	if r.Fields[KeyClientType] != "" {
		switch r.Fields[KeyClientType] {
		case "new", "existing":
		default:
			errs = append(errs, "clientType must be new or existing")
		}
	}
	if r.Fields[KeyPhone] == "" && r.Fields[KeyEmail] == "" {
		errs = append(errs, "at least one of phone or email is required")
	}
	if r.Fields[KeyFullName] == "" {
		errs = append(errs, "fullName is required")
	}
	for key, c := range r.Confidence {
		if c < 0 || c > 1 {
			errs = append(errs, fmt.Sprintf("confidence for %s out of range", key))
		}
	}
	if r.Meta.TranscriptHash == "" {
		errs = append(errs, "meta.transcriptHash is required")
	}
	return errs
}

func transcriptHash(transcripts []string) string {
	h := sha1.Sum([]byte(strings.Join(transcripts, "\n")))
	return hex.EncodeToString(h[:])
}
