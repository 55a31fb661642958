package gcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Fixed sampling parameters for article imagery. These are configuration, not
// user input: every generated image shares the same shape and safety posture.
const (
	imagenSampleCount      = 1
	imagenAspectRatio      = "16:9"
	imagenSafetySetting    = "block_medium_and_above"
	imagenPersonGeneration = "allow_adult"
)

// GenerationErrorKind classifies a failed generation call.
type GenerationErrorKind int

const (
	// KindQuota is an HTTP 429: the shared quota is exhausted and the same
	// request is expected to succeed after a cooldown.
	KindQuota GenerationErrorKind = iota
	// KindBlocked means the service accepted the request but withheld the
	// image (safety filter, empty prediction). Retrying cannot help.
	KindBlocked
	// KindRequest is any other non-2xx response. Retrying cannot help.
	KindRequest
)

func (k GenerationErrorKind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindBlocked:
		return "blocked"
	default:
		return "request"
	}
}

// GenerationError is the typed failure of one generation call. It is always
// local to a single asset; callers must never treat it as fatal for the run.
type GenerationError struct {
	Kind       GenerationErrorKind
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("image generation failed (%s, HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("image generation failed (%s): %s", e.Kind, e.Message)
}

// ImagenClient calls the Vertex AI Imagen predict endpoint directly over
// REST. The genai SDK covers the Gemini surface only, so image generation
// speaks to the publisher model endpoint itself.
type ImagenClient struct {
	httpClient *http.Client
	endpoint   string
}

// NewImagenClient builds a client for the given project, region and publisher
// model, authenticating with application-default credentials. A missing
// project ID or region is a configuration error and must abort the run before
// any network call.
func NewImagenClient(ctx context.Context, projectID, region, model string) (*ImagenClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewImagenClient: projectID and region cannot be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("NewImagenClient: model cannot be empty")
	}

	tokenSource, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve application-default credentials: %w", err)
	}

	endpoint := fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		region, projectID, region, model,
	)

	return &ImagenClient{
		httpClient: oauth2.NewClient(ctx, tokenSource),
		endpoint:   endpoint,
	}, nil
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount      int    `json:"sampleCount"`
	AspectRatio      string `json:"aspectRatio"`
	SafetySetting    string `json:"safetySetting"`
	PersonGeneration string `json:"personGeneration"`
}

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenPrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type imagenResponse struct {
	Predictions []imagenPrediction `json:"predictions"`
}

// Generate turns a prompt into raw image bytes and a file extension. Failures
// are returned as *GenerationError so the caller can distinguish a retryable
// quota hit from a terminal rejection.
func (c *ImagenClient) Generate(ctx context.Context, prompt string) ([]byte, string, error) {
	payload, err := json.Marshal(imagenRequest{
		Instances: []imagenInstance{{Prompt: prompt}},
		Parameters: imagenParameters{
			SampleCount:      imagenSampleCount,
			AspectRatio:      imagenAspectRatio,
			SafetySetting:    imagenSafetySetting,
			PersonGeneration: imagenPersonGeneration,
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("predict call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read predict response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", &GenerationError{Kind: KindQuota, StatusCode: resp.StatusCode, Message: "quota exceeded"}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, "", &GenerationError{Kind: KindRequest, StatusCode: resp.StatusCode, Message: truncate(string(body), 300)}
	}

	var parsed imagenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, "", fmt.Errorf("failed to parse predict response: %w", err)
	}
	if len(parsed.Predictions) == 0 || parsed.Predictions[0].BytesBase64Encoded == "" {
		// The endpoint returns 200 with an empty prediction list when the
		// safety filter withholds the image.
		return nil, "", &GenerationError{Kind: KindBlocked, Message: "prediction withheld by the service"}
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode prediction bytes: %w", err)
	}

	return data, extForMime(parsed.Predictions[0].MimeType), nil
}

func extForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
