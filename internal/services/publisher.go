package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/travelcontentflow/internal/models"
)

// PublisherConfig holds configuration for the article publisher.
type PublisherConfig struct {
	CollectionName string
	// PurgeLegacyDuplicates enables the two-step purge-then-upsert path for
	// stores polluted by historical rows whose document IDs are not the slug.
	// A crash between the purge and the upsert leaves the slug temporarily
	// absent; accepted for an offline batch tool.
	PurgeLegacyDuplicates bool
}

// Publisher makes finished articles durable in Firestore. The document ID is
// the slug, so the default write is a single atomic upsert and the store can
// never hold two rows for one slug.
type Publisher struct {
	client *firestore.Client
	cfg    PublisherConfig
}

func NewPublisher(client *firestore.Client, cfg PublisherConfig) *Publisher {
	if cfg.CollectionName == "" {
		cfg.CollectionName = "articles"
	}
	return &Publisher{client: client, cfg: cfg}
}

// Publish upserts the article under its slug, refreshing publishedAt and
// updatedAt. A failure is attributed to this one article; the caller decides
// whether the rest of the batch continues.
func (p *Publisher) Publish(ctx context.Context, article *models.Article) error {
	if article.Slug == "" {
		return fmt.Errorf("cannot publish an article without a slug")
	}

	now := time.Now().UTC()
	article.PublishedAt = now
	article.UpdatedAt = now

	col := p.client.Collection(p.cfg.CollectionName)

	if p.cfg.PurgeLegacyDuplicates {
		if err := p.purgeLegacyRows(ctx, col, article.Slug); err != nil {
			return fmt.Errorf("failed to purge legacy rows for slug %q: %w", article.Slug, err)
		}
	}

	if _, err := col.Doc(article.Slug).Set(ctx, article); err != nil {
		return fmt.Errorf("failed to upsert article %q: %w", article.Slug, err)
	}
	return nil
}

// purgeLegacyRows deletes every document whose slug field matches but whose
// document ID does not. These are rows written before the ID-equals-slug
// convention; left in place they would surface as duplicates to readers that
// query by the slug field.
func (p *Publisher) purgeLegacyRows(ctx context.Context, col *firestore.CollectionRef, slug string) error {
	it := col.Where("slug", "==", slug).Documents(ctx)
	defer it.Stop()

	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list rows for slug: %w", err)
		}
		if doc.Ref.ID == slug {
			continue
		}
		slog.Info("Deleting legacy duplicate row.", "slug", slug, "docId", doc.Ref.ID)
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("failed to delete legacy row %s: %w", doc.Ref.ID, err)
		}
	}
}
