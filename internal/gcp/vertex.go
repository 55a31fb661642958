package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Describer Model Prompts ---
const DescriberSystemPrompt = "You are an SEO copywriter for a travel guide website. Your task is to write a single meta description for an article. It must be factual in tone, free of superlatives you cannot support, and suitable for a search result snippet."
const DescriberUserPrompt = `Write a meta description for a travel article.

Follow these rules precisely:
1. The article title is: "%s".
2. Write the description in the language of locale "%s".
3. Keep it between 120 and 155 characters.
4. Do not mention the website, do not use quotation marks, and do not address the reader with imperatives like "Discover" more than once.

Return ONLY the description text. Do not include any preamble or surround the output with backtick fences.`

// VertexClient holds the pre-configured generative models for the pipeline.
type VertexClient struct {
	DescriberModel *genai.GenerativeModel
	baseClient     *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// --- Configure the describer model ---
	describerModel := baseClient.GenerativeModel("gemini-1.5-flash")
	describerModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(DescriberSystemPrompt)},
	}
	describerModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.4),
	}
	describerModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		DescriberModel: describerModel,
		baseClient:     baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
