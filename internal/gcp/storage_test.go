package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicAssetPath_LocalPrefix(t *testing.T) {
	got := PublicAssetPath("", "/images/articles", "guide-a-img-0-1700000000000.jpg")
	assert.Equal(t, "/images/articles/guide-a-img-0-1700000000000.jpg", got)
}

func TestPublicAssetPath_CDNDomainWins(t *testing.T) {
	got := PublicAssetPath("cdn.example.com", "/images/articles", "guide-a-img-0-1700000000000.jpg")
	assert.Equal(t, "https://cdn.example.com/guide-a-img-0-1700000000000.jpg", got)

	got = PublicAssetPath("cdn.example.com/", "/images/articles", "a.png")
	assert.Equal(t, "https://cdn.example.com/a.png", got)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TRAVELCONTENTFLOW_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("TRAVELCONTENTFLOW_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("TRAVELCONTENTFLOW_TEST_MISSING", "fallback"))
}
