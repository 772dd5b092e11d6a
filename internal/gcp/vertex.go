package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Ge9Nico/SWYM/internal/structuring"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// VertexModel is the structuring backend served through Vertex AI.
type VertexModel struct {
	PolicyModel *genai.GenerativeModel
	baseClient  *genai.Client
}

// NewVertexModel creates a Vertex AI client with the policy analysis model configured.
func NewVertexModel(ctx context.Context, projectID, region, modelName string) (*VertexModel, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexModel: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	policyModel := baseClient.GenerativeModel(modelName)
	policyModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	return &VertexModel{
		PolicyModel: policyModel,
		baseClient:  baseClient,
	}, nil
}

// Generate sends req to the policy model and returns the concatenated text of the first candidate.
func (m *VertexModel) Generate(ctx context.Context, req structuring.Request) (string, error) {
	resp, err := m.PolicyModel.GenerateContent(ctx, vertexParts(req)...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return vertexResponseText(resp), nil
}

func (m *VertexModel) Close() error {
	if m.baseClient != nil {
		return m.baseClient.Close()
	}
	return nil
}

func vertexParts(req structuring.Request) []genai.Part {
	if req.Multimodal() {
		return []genai.Part{
			genai.Text(req.Prompt()),
			genai.Blob{MIMEType: req.MIMEType, Data: req.InlineData},
		}
	}
	return []genai.Part{genai.Text(req.Prompt())}
}

func vertexResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
