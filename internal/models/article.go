package models

import (
	"sort"
	"time"
)

// AssetRequest describes one image the pipeline must resolve for an article.
// FilenameBase is the idempotence key used by the asset cache; Placeholder is
// the literal token in the body template this asset replaces.
type AssetRequest struct {
	Placeholder  string `json:"placeholder"`
	FilenameBase string `json:"filenameBase"`
	Prompt       string `json:"prompt"`
	Cover        bool   `json:"cover,omitempty"`
}

// GeneratedAsset is an image produced by the generation service or recovered
// from the local asset cache.
type GeneratedAsset struct {
	FilenameBase string
	LocalPath    string
	PublicPath   string
	CreatedAt    time.Time
}

// Article is the content-store record for one travel article. The Firestore
// document ID is the slug. The same struct doubles as the manifest entry, so
// pipeline-input fields (template, asset requests) carry JSON tags only and
// are never persisted.
type Article struct {
	Slug           string            `firestore:"slug" json:"slug"`
	TitlesByLocale map[string]string `firestore:"titlesByLocale,omitempty" json:"titles"`
	MetaByLocale   map[string]string `firestore:"metaByLocale,omitempty" json:"metaDescriptions,omitempty"`
	BodyTemplate   string            `firestore:"-" json:"template,omitempty"`
	TemplateFile   string            `firestore:"-" json:"templateFile,omitempty"`
	Assets         []AssetRequest    `firestore:"-" json:"assets,omitempty"`
	BodyFinal      string            `firestore:"body,omitempty" json:"-"`
	CoverImagePath string            `firestore:"coverImagePath,omitempty" json:"-"`
	PublishedAt    time.Time         `firestore:"publishedAt,omitempty" json:"-"`
	UpdatedAt      time.Time         `firestore:"updatedAt,omitempty" json:"-"`
}

// DefaultTitle returns the English title when present, otherwise the title of
// the lexicographically first locale. Captions and alt text are derived from
// this value, never from generation prompts.
func (a *Article) DefaultTitle() string {
	if t := a.TitlesByLocale["en"]; t != "" {
		return t
	}
	locales := make([]string, 0, len(a.TitlesByLocale))
	for locale := range a.TitlesByLocale {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	for _, locale := range locales {
		if t := a.TitlesByLocale[locale]; t != "" {
			return t
		}
	}
	return ""
}

// Manifest is the input for one batch run.
type Manifest struct {
	Articles []Article `json:"articles"`
}
