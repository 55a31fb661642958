package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/travelcontentflow/internal/models"
)

func TestInjectAssets_ReplacesResolvedPlaceholder(t *testing.T) {
	requests := []models.AssetRequest{
		{Placeholder: "<!-- IMG_0 -->", FilenameBase: "guide-a-img-0"},
	}
	resolved := map[string]*models.GeneratedAsset{
		"guide-a-img-0": {FilenameBase: "guide-a-img-0", PublicPath: "/images/articles/guide-a-img-0-1700000000000.jpg"},
	}

	body := InjectAssets("<p>A</p><!-- IMG_0 --><p>B</p>", requests, resolved, "Guide A")

	assert.Contains(t, body, `<img src="/images/articles/guide-a-img-0-1700000000000.jpg"`)
	assert.Contains(t, body, `alt="Guide A"`)
	assert.NotContains(t, body, "<!-- IMG_0 -->")
	assert.Contains(t, body, "<p>A</p>")
	assert.Contains(t, body, "<p>B</p>")
}

func TestInjectAssets_RemovesUnresolvedPlaceholder(t *testing.T) {
	requests := []models.AssetRequest{
		{Placeholder: "<!-- IMG_0 -->", FilenameBase: "guide-a-img-0"},
	}

	body := InjectAssets("<p>A</p><!-- IMG_0 --><p>B</p>", requests, nil, "Guide A")

	assert.Equal(t, "<p>A</p><p>B</p>", body)
}

func TestInjectAssets_NoDanglingPlaceholders(t *testing.T) {
	// Mixed success and failure, plus a token nobody requested: nothing that
	// looks like placeholder syntax may survive.
	requests := []models.AssetRequest{
		{Placeholder: "<!-- IMG_0 -->", FilenameBase: "img-0"},
		{Placeholder: "<!-- IMG_1 -->", FilenameBase: "img-1"},
	}
	resolved := map[string]*models.GeneratedAsset{
		"img-1": {FilenameBase: "img-1", PublicPath: "/images/articles/img-1-1.png"},
	}
	template := "<!-- IMG_0 --><p>x</p><!-- IMG_1 --><p>y</p><!--  IMG_orphan  -->"

	body := InjectAssets(template, requests, resolved, "Title")

	assert.Empty(t, placeholderPattern.FindAllString(body, -1))
	assert.Contains(t, body, "/images/articles/img-1-1.png")
}

func TestInjectAssets_CaptionIsEscaped(t *testing.T) {
	requests := []models.AssetRequest{
		{Placeholder: "<!-- IMG_0 -->", FilenameBase: "img-0"},
	}
	resolved := map[string]*models.GeneratedAsset{
		"img-0": {FilenameBase: "img-0", PublicPath: "/images/articles/img-0-1.png"},
	}

	body := InjectAssets("<!-- IMG_0 -->", requests, resolved, `B&B "Aan Zee"`)

	assert.Contains(t, body, "B&amp;B &#34;Aan Zee&#34;")
	assert.NotContains(t, body, `alt="B&B`)
}

func TestInjectAssets_EmptyCaptionOmitsFigcaption(t *testing.T) {
	requests := []models.AssetRequest{
		{Placeholder: "<!-- IMG_0 -->", FilenameBase: "img-0"},
	}
	resolved := map[string]*models.GeneratedAsset{
		"img-0": {FilenameBase: "img-0", PublicPath: "/images/articles/img-0-1.png"},
	}

	body := InjectAssets("<!-- IMG_0 -->", requests, resolved, "")

	assert.NotContains(t, body, "<figcaption>")
	assert.Contains(t, body, `alt=""`)
}

func TestInjectAssets_PureTransformation(t *testing.T) {
	template := "<p>no placeholders here</p>"
	body := InjectAssets(template, nil, nil, "Title")
	assert.Equal(t, template, body)
}
