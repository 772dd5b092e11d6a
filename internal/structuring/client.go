// Package structuring turns extracted document content into a StructuredPolicy using a generative model.
package structuring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Ge9Nico/SWYM/internal/extract"
	"github.com/Ge9Nico/SWYM/internal/models"
)

// Instruction is sent with every request.
const Instruction = `Please analyze this insurance policy document. Extract the provider name, policy number, effective dates, and a detailed list of all coverages and perks. Structure the output as a clean JSON object with exactly these keys: "provider", "policyNumber", "effectiveDates", "coverages", and "perks". For each coverage and perk, provide a "name" and a "description". Do not wrap the JSON in markdown backticks and do not add any other text.`

const textPreamble = "\n\nText to analyze:\n\n"

// ErrMalformedOutput is wrapped by errors for responses that do not match the five-field schema.
var ErrMalformedOutput = errors.New("malformed model output")

// Request is one call to the structuring service: the instruction plus either extracted
// text or an inline binary payload tagged with its content type.
type Request struct {
	Instruction   string
	ExtractedText string
	InlineData    []byte
	MIMEType      string
}

// Multimodal reports whether the request carries inline data instead of text.
func (r Request) Multimodal() bool {
	return r.MIMEType != ""
}

// Prompt is the single text part of a text request, or the instruction part of a multimodal one.
func (r Request) Prompt() string {
	if r.Multimodal() {
		return r.Instruction
	}
	return r.Instruction + textPreamble + r.ExtractedText
}

// Model is a generative model backend returning the textual response to a Request.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Client sends extraction results to a Model and parses the answer.
type Client struct {
	model Model
}

// NewClient returns a Client backed by model.
func NewClient(model Model) *Client {
	return &Client{model: model}
}

// BuildRequest maps an extraction result onto the request shape for its strategy.
func BuildRequest(res *extract.Result) Request {
	if res.Strategy == extract.StrategyMultimodal {
		return Request{Instruction: Instruction, InlineData: res.Data, MIMEType: res.MIMEType}
	}
	return Request{Instruction: Instruction, ExtractedText: res.Text}
}

// Structure calls the model once and parses its response. Malformed output is not retried.
func (c *Client) Structure(ctx context.Context, res *extract.Result) (*models.StructuredPolicy, error) {
	raw, err := c.model.Generate(ctx, BuildRequest(res))
	if err != nil {
		return nil, models.Errorf(models.KindStructuringServiceFailure, "structuring service: %w", err)
	}
	return Parse(raw)
}

var schemaKeys = map[string]bool{
	"provider":       true,
	"policyNumber":   false,
	"effectiveDates": true,
	"coverages":      true,
	"perks":          true,
}

// Parse decodes a model response into a StructuredPolicy. The trimmed response must be a single
// JSON object whose keys are exactly provider, policyNumber, effectiveDates, coverages and perks;
// policyNumber may be null or empty and provider must not be empty.
func Parse(raw string) (*models.StructuredPolicy, error) {
	trimmed := []byte(strings.TrimSpace(raw))
	malformed := func(format string, args ...any) error {
		pe := models.Errorf(models.KindMalformedModelOutput, "%w: "+format, append([]any{ErrMalformedOutput}, args...)...)
		pe.Raw = raw
		return pe
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, malformed("not a JSON object: %v", err)
	}
	for key := range fields {
		if _, known := schemaKeys[key]; !known {
			return nil, malformed("unexpected key %q", key)
		}
	}
	for key, required := range schemaKeys {
		v, ok := fields[key]
		if required && (!ok || bytes.Equal(v, []byte("null"))) {
			return nil, malformed("missing %q", key)
		}
	}

	var policy models.StructuredPolicy
	if err := json.Unmarshal(trimmed, &policy); err != nil {
		return nil, malformed("%v", err)
	}
	if strings.TrimSpace(policy.Provider) == "" {
		return nil, malformed("empty provider")
	}
	for _, group := range [][]models.Benefit{policy.Coverages, policy.Perks} {
		for i, b := range group {
			if strings.TrimSpace(b.Name) == "" {
				return nil, malformed("benefit %d has no name", i)
			}
		}
	}
	return &policy, nil
}

// Describe is a short log-friendly summary of a request.
func (r Request) Describe() string {
	if r.Multimodal() {
		return fmt.Sprintf("multimodal %s (%d bytes)", r.MIMEType, len(r.InlineData))
	}
	return fmt.Sprintf("text (%d chars)", len(r.ExtractedText))
}
