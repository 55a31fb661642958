package services

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/Lllllllleong/travelcontentflow/internal/models"
)

// placeholderPattern matches the placeholder comment syntax used by article
// templates. A final sweep with this pattern guarantees that no raw token
// survives into a published body, whatever mix of assets failed.
var placeholderPattern = regexp.MustCompile(`<!--\s*IMG_[A-Za-z0-9_-]*\s*-->`)

// InjectAssets produces the final article body from its template. Each
// request's placeholder is replaced with figure markup for its resolved
// asset, or removed when the asset could not be produced. The caption is
// derived from the article title, never from the generation prompt.
func InjectAssets(template string, requests []models.AssetRequest, resolved map[string]*models.GeneratedAsset, caption string) string {
	body := template
	for _, req := range requests {
		if req.Placeholder == "" {
			continue
		}
		asset := resolved[req.FilenameBase]
		if asset == nil {
			body = strings.ReplaceAll(body, req.Placeholder, "")
			continue
		}
		body = strings.ReplaceAll(body, req.Placeholder, renderFigure(asset.PublicPath, caption))
	}
	return placeholderPattern.ReplaceAllString(body, "")
}

func renderFigure(src, caption string) string {
	if caption == "" {
		return fmt.Sprintf(`<figure><img src=%q alt="" loading="lazy"></figure>`, src)
	}
	escaped := html.EscapeString(caption)
	return fmt.Sprintf(`<figure><img src=%q alt="%s" loading="lazy"><figcaption>%s</figcaption></figure>`, src, escaped, escaped)
}
