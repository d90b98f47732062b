// Package assist forwards a patient's diagnostic data to a language model
// for a decision-support suggestion.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/quantumcare/clinical/internal/platform/apperr"
	"github.com/quantumcare/clinical/internal/platform/fhir"
	"github.com/quantumcare/clinical/internal/platform/metrics"
	"github.com/quantumcare/clinical/pkg/fhirmodels"
)

const preamble = "You are a clinical decision support system designed to assist doctors in decision-making. " +
	"You will receive patient vitals as your input. Based on this information, you need to generate  " +
	"potential diseases and recommend medications and  treatment plans for those diseases"

// LLM turns a prompt into text.
type LLM interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// observationSummary is the part of an Observation the model sees. Absent
// members stay absent.
type observationSummary struct {
	ResourceType   json.RawMessage `json:"resourceType,omitempty"`
	ID             json.RawMessage `json:"id,omitempty"`
	Status         json.RawMessage `json:"status,omitempty"`
	Code           json.RawMessage `json:"code,omitempty"`
	ValueQuantity  json.RawMessage `json:"valueQuantity,omitempty"`
	ReferenceRange json.RawMessage `json:"referenceRange,omitempty"`
	Interpretation json.RawMessage `json:"interpretation,omitempty"`
}

type promptPayload struct {
	PatientID        string               `json:"patientId,omitempty"`
	Observations     []observationSummary `json:"observations"`
	DiagnosticReport json.RawMessage      `json:"diagnosticReport"`
}

type Forwarder struct {
	llm     LLM
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewForwarder(llm LLM, logger zerolog.Logger) *Forwarder {
	return &Forwarder{llm: llm, logger: logger}
}

func (f *Forwarder) SetMetrics(m *metrics.Metrics) {
	f.metrics = m
}

// Forward extracts the DiagnosticReport and Observations of a bundle,
// sends them to the model and returns its text unchanged.
func (f *Forwarder) Forward(ctx context.Context, bundle []byte) (string, error) {
	prompt, err := BuildPrompt(bundle)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := f.llm.GenerateText(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		f.metrics.ObserveLLMRequest("error", elapsed)
		f.logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("language model request failed")
		return "", apperr.Upstream("language model request failed", err)
	}
	f.metrics.ObserveLLMRequest("success", elapsed)
	f.logger.Debug().Dur("elapsed", elapsed).Int("chars", len(text)).Msg("language model responded")
	return text, nil
}

// BuildPrompt returns the preamble followed by the JSON payload assembled
// from the bundle. No model is called.
func BuildPrompt(bundle []byte) (string, error) {
	b, err := fhir.ParseBundle(bundle)
	if err != nil {
		return "", err
	}

	report, ok := lo.Find(b.Entry, func(e fhir.BundleEntry) bool {
		return e.ResourceType() == fhirmodels.ResourceTypeDiagnosticReport
	})
	if !ok {
		return "", apperr.MissingDiagnosticReport()
	}

	observations := lo.FilterMap(b.Entry, func(e fhir.BundleEntry, _ int) (observationSummary, bool) {
		if e.ResourceType() != fhirmodels.ResourceTypeObservation {
			return observationSummary{}, false
		}
		return summarize(e.Resource), true
	})

	payload := promptPayload{
		PatientID:        subjectReference(report.Resource),
		Observations:     observations,
		DiagnosticReport: report.Resource,
	}

	var buf bytes.Buffer
	buf.WriteString(preamble)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", apperr.InvalidPayload("Invalid payload format")
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func summarize(resource json.RawMessage) observationSummary {
	var m map[string]json.RawMessage
	_ = json.Unmarshal(resource, &m)
	return observationSummary{
		ResourceType:   m["resourceType"],
		ID:             m["id"],
		Status:         m["status"],
		Code:           m["code"],
		ValueQuantity:  m["valueQuantity"],
		ReferenceRange: m["referenceRange"],
		Interpretation: m["interpretation"],
	}
}

func subjectReference(resource json.RawMessage) string {
	var r struct {
		Subject struct {
			Reference string `json:"reference"`
		} `json:"subject"`
	}
	_ = json.Unmarshal(resource, &r)
	return r.Subject.Reference
}
