package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/travelcontentflow/internal/gcp"
	"github.com/Lllllllleong/travelcontentflow/internal/models"
)

// Describer drafts meta descriptions for locales that the manifest left
// blank. It is an optional nicety: every failure degrades to "no description"
// and is never allowed to fail the article.
type Describer struct {
	model *genai.GenerativeModel
}

func NewDescriber(vertexClient *gcp.VertexClient) *Describer {
	return &Describer{model: vertexClient.DescriberModel}
}

// FillMissing drafts a description for every locale that has a title but no
// meta description. Locales are visited in sorted order so the call pattern
// is stable across runs.
func (d *Describer) FillMissing(ctx context.Context, article *models.Article) {
	logCtx := slog.With("slug", article.Slug)

	locales := make([]string, 0, len(article.TitlesByLocale))
	for locale := range article.TitlesByLocale {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	for _, locale := range locales {
		title := article.TitlesByLocale[locale]
		if title == "" || article.MetaByLocale[locale] != "" {
			continue
		}
		description, err := d.describe(ctx, title, locale)
		if err != nil {
			logCtx.Warn("Failed to draft meta description; leaving it empty.", "locale", locale, "error", err)
			continue
		}
		if article.MetaByLocale == nil {
			article.MetaByLocale = make(map[string]string)
		}
		article.MetaByLocale[locale] = description
		logCtx.Info("Drafted meta description.", "locale", locale)
	}
}

func (d *Describer) describe(ctx context.Context, title, locale string) (string, error) {
	prompt := genai.Text(fmt.Sprintf(gcp.DescriberUserPrompt, title, locale))
	resp, err := d.model.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate description: %w", err)
	}
	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("model returned no text for locale %s", locale)
	}
	return text, nil
}

// extractText robustly gets the raw text content from the model response.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	text := strings.TrimSpace(sb.String())
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
