package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/travelcontentflow/internal/gcp"
	"github.com/Lllllllleong/travelcontentflow/internal/models"
)

// PipelineConfig holds all configuration for one pipeline instance. It is
// built once from the environment and passed in explicitly; nothing in the
// pipeline reads globals.
type PipelineConfig struct {
	ProjectID        string
	VertexAIRegion   string
	ImagenModel      string
	DatabaseID       string
	CollectionName   string
	AssetDir         string
	PublicPathPrefix string
	AssetBucket      string
	AssetCDNDomain   string

	Cooldown    time.Duration
	RetryDelay  time.Duration
	MaxAttempts int
	Concurrency int

	PurgeLegacyDuplicates bool
	DescribeMissingMeta   bool
	DryRun                bool
}

// LoadPipelineConfig loads and validates all necessary environment variables.
// A missing project ID is fatal and must abort the run before any network
// call is attempted.
func LoadPipelineConfig() (*PipelineConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	cfg := &PipelineConfig{
		ProjectID:             projectID,
		VertexAIRegion:        gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ImagenModel:           gcp.GetEnv("IMAGEN_MODEL", "imagen-3.0-generate-002"),
		DatabaseID:            gcp.GetEnv("FIRESTORE_DATABASE", ""),
		CollectionName:        gcp.GetEnv("ARTICLE_COLLECTION", "articles"),
		AssetDir:              gcp.GetEnv("ASSET_DIR", "public/images/articles"),
		PublicPathPrefix:      gcp.GetEnv("PUBLIC_PATH_PREFIX", "/images/articles"),
		AssetBucket:           gcp.GetEnv("ASSET_BUCKET", ""),
		AssetCDNDomain:        gcp.GetEnv("ASSET_CDN_DOMAIN", ""),
		Cooldown:              envSeconds("GENERATION_COOLDOWN_SECONDS", 30),
		RetryDelay:            envSeconds("GENERATION_RETRY_DELAY_SECONDS", 45),
		MaxAttempts:           envInt("GENERATION_MAX_ATTEMPTS", 3),
		Concurrency:           envInt("GENERATION_CONCURRENCY", 2),
		PurgeLegacyDuplicates: envBool("PURGE_LEGACY_DUPLICATES"),
		DescribeMissingMeta:   envBool("DESCRIBE_MISSING_META"),
	}
	return cfg, nil
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envInt(key string, fallback int) int {
	raw := gcp.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string) bool {
	switch gcp.GetEnv(key, "") {
	case "1", "true", "yes":
		return true
	}
	return false
}

// Narrow interfaces over the concrete collaborators, so the orchestrator can
// be exercised without network clients.
type assetGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, string, error)
}

type articlePublisher interface {
	Publish(ctx context.Context, article *models.Article) error
}

type assetMirror interface {
	Upload(ctx context.Context, localPath string) error
}

type metaDescriber interface {
	FillMissing(ctx context.Context, article *models.Article)
}

// Pipeline drives articles through asset resolution, injection and
// publishing. Within one article, asset requests are resolved on a bounded
// worker pool sharing the generator's token bucket; articles themselves are
// processed strictly in input order.
type Pipeline struct {
	cfg       PipelineConfig
	cache     *AssetCache
	generator assetGenerator
	publisher articlePublisher
	mirror    assetMirror   // nil when no asset bucket is configured
	describer metaDescriber // nil unless meta backfill is enabled
}

// NewPipeline wires the real collaborators. Configuration problems surface
// here, before any generation call is made.
func NewPipeline(ctx context.Context, cfg PipelineConfig) (*Pipeline, error) {
	cache, err := NewAssetCache(cfg.AssetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset cache: %w", err)
	}

	p := &Pipeline{cfg: cfg, cache: cache}

	if cfg.DryRun {
		// Dry runs never touch the network; only the cache and the injector
		// participate.
		return p, nil
	}

	imagenClient, err := gcp.NewImagenClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.ImagenModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create imagen client: %w", err)
	}
	p.generator = NewGenerator(imagenClient, GeneratorConfig{
		Cooldown:    cfg.Cooldown,
		RetryDelay:  cfg.RetryDelay,
		MaxAttempts: cfg.MaxAttempts,
	})

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.DatabaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	p.publisher = NewPublisher(firestoreClient, PublisherConfig{
		CollectionName:        cfg.CollectionName,
		PurgeLegacyDuplicates: cfg.PurgeLegacyDuplicates,
	})

	if cfg.AssetBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		p.mirror, err = NewAssetMirror(storageClient, cfg.AssetBucket)
		if err != nil {
			return nil, err
		}
	}

	if cfg.DescribeMissingMeta {
		vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		p.describer = NewDescriber(vertexClient)
	}

	return p, nil
}

// Run processes the whole manifest in order. A failed article never halts
// the batch; the report carries one outcome per article, in input order.
// A non-nil error means the run itself broke (asset cache I/O) and no
// further article was attempted.
func (p *Pipeline) Run(ctx context.Context, manifest *models.Manifest) (*models.RunReport, error) {
	report := &models.RunReport{}
	for i := range manifest.Articles {
		outcome, err := p.ProcessArticle(ctx, &manifest.Articles[i])
		if err != nil {
			return report, err
		}
		report.Add(outcome)
	}
	return report, nil
}

// ProcessArticle drives one article through the full sequence and returns
// its outcome. Per-asset failures surface only as missing images; only the
// publish step can fail the article. The error return is reserved for
// filesystem failures of the asset cache, which abort the whole run.
func (p *Pipeline) ProcessArticle(ctx context.Context, article *models.Article) (models.DocumentOutcome, error) {
	logCtx := slog.With("slug", article.Slug)
	outcome := models.DocumentOutcome{Slug: article.Slug, AssetsRequested: len(article.Assets)}

	if article.Slug == "" {
		outcome.Kind = models.OutcomeFailed
		outcome.Reason = "article has no slug"
		return outcome, nil
	}
	if err := p.loadTemplate(article); err != nil {
		logCtx.Error("Failed to load body template.", "error", err)
		outcome.Kind = models.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome, nil
	}
	if err := validateAssetRequests(article.Assets); err != nil {
		logCtx.Error("Invalid asset request list.", "error", err)
		outcome.Kind = models.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome, nil
	}

	if p.describer != nil && !p.cfg.DryRun {
		p.describer.FillMissing(ctx, article)
	}

	logCtx.Info("Resolving assets.", "requested", len(article.Assets))
	resolved, err := p.resolveAssets(ctx, article, logCtx)
	if err != nil {
		logCtx.Error("Asset cache is unusable; aborting the run.", "error", err)
		return outcome, fmt.Errorf("asset cache failed while processing %q: %w", article.Slug, err)
	}

	for _, req := range article.Assets {
		if resolved[req.FilenameBase] == nil {
			outcome.MissingAssets = append(outcome.MissingAssets, req.FilenameBase)
		}
	}
	outcome.AssetsIncluded = len(article.Assets) - len(outcome.MissingAssets)

	article.BodyFinal = InjectAssets(article.BodyTemplate, article.Assets, resolved, article.DefaultTitle())
	article.CoverImagePath = chooseCover(article.Assets, resolved)

	if p.cfg.DryRun {
		logCtx.Info("Dry run: skipping publish.", "included", outcome.AssetsIncluded, "missing", len(outcome.MissingAssets))
		outcome.Kind = models.OutcomeSkipped
		return outcome, nil
	}

	if err := p.publisher.Publish(ctx, article); err != nil {
		logCtx.Error("Failed to publish article.", "error", err)
		outcome.Kind = models.OutcomeFailed
		outcome.Reason = err.Error()
		return outcome, nil
	}

	if len(outcome.MissingAssets) > 0 {
		logCtx.Warn("Published with missing assets.", "included", outcome.AssetsIncluded, "missing", outcome.MissingAssets)
		outcome.Kind = models.OutcomePartial
	} else {
		logCtx.Info("Published.", "included", outcome.AssetsIncluded)
		outcome.Kind = models.OutcomePublished
	}
	return outcome, nil
}

func (p *Pipeline) loadTemplate(article *models.Article) error {
	if article.BodyTemplate != "" || article.TemplateFile == "" {
		return nil
	}
	data, err := os.ReadFile(article.TemplateFile)
	if err != nil {
		return fmt.Errorf("failed to read template file %s: %w", article.TemplateFile, err)
	}
	article.BodyTemplate = string(data)
	return nil
}

func validateAssetRequests(requests []models.AssetRequest) error {
	seen := make(map[string]bool, len(requests))
	for _, req := range requests {
		if req.FilenameBase == "" {
			return fmt.Errorf("asset request with placeholder %q has no filenameBase", req.Placeholder)
		}
		if seen[req.FilenameBase] {
			return fmt.Errorf("duplicate filenameBase %q in asset request list", req.FilenameBase)
		}
		seen[req.FilenameBase] = true
	}
	return nil
}

// resolveAssets resolves every request for one article. Workers share the
// generator's token bucket, so concurrency raises batch throughput without
// raising the call rate. Per-asset failures are recorded, never propagated;
// only a broken asset cache cancels the group and surfaces as an error,
// because without the cache no article in the run can make progress.
func (p *Pipeline) resolveAssets(ctx context.Context, article *models.Article, logCtx *slog.Logger) (map[string]*models.GeneratedAsset, error) {
	results := make([]*models.GeneratedAsset, len(article.Assets))

	g, gctx := errgroup.WithContext(ctx)
	concurrency := p.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i, req := range article.Assets {
		g.Go(func() error {
			asset, err := p.resolveOne(gctx, req)
			if errors.Is(err, ErrCacheIO) {
				return err
			}
			if err != nil {
				logCtx.Warn("Asset unresolved; its placeholder will be removed.", "filenameBase", req.FilenameBase, "error", err)
				return nil
			}
			results[i] = asset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resolved := make(map[string]*models.GeneratedAsset, len(article.Assets))
	for i, req := range article.Assets {
		if results[i] != nil {
			resolved[req.FilenameBase] = results[i]
		}
	}
	return resolved, nil
}

func (p *Pipeline) resolveOne(ctx context.Context, req models.AssetRequest) (*models.GeneratedAsset, error) {
	if localPath, ok, err := p.cache.Lookup(req.FilenameBase); err != nil {
		return nil, err
	} else if ok {
		// Cache hits re-attempt the upload so a mirror failure on an earlier
		// run heals; once the object exists the precondition makes this a
		// cheap no-op.
		p.mirrorAsset(ctx, req.FilenameBase, localPath)
		return p.assetFor(req.FilenameBase, localPath), nil
	}

	if p.cfg.DryRun {
		return nil, fmt.Errorf("dry run: cache miss for %q", req.FilenameBase)
	}

	data, ext, err := p.generator.Generate(ctx, req.Prompt)
	if err != nil {
		return nil, err
	}

	localPath, err := p.cache.Store(req.FilenameBase, data, ext)
	if err != nil {
		return nil, err
	}

	p.mirrorAsset(ctx, req.FilenameBase, localPath)
	return p.assetFor(req.FilenameBase, localPath), nil
}

// mirrorAsset uploads one cached file to the public bucket. A failure leaves
// the asset serving from the local directory, so it degrades to a warning;
// the next run's cache hit tries again.
func (p *Pipeline) mirrorAsset(ctx context.Context, filenameBase, localPath string) {
	if p.mirror == nil || p.cfg.DryRun {
		return
	}
	if err := p.mirror.Upload(ctx, localPath); err != nil {
		slog.Warn("Failed to mirror asset to bucket.", "filenameBase", filenameBase, "error", err)
	}
}

func (p *Pipeline) assetFor(filenameBase, localPath string) *models.GeneratedAsset {
	filename := filepath.Base(localPath)
	return &models.GeneratedAsset{
		FilenameBase: filenameBase,
		LocalPath:    localPath,
		PublicPath:   gcp.PublicAssetPath(p.cfg.AssetCDNDomain, p.cfg.PublicPathPrefix, filename),
		CreatedAt:    time.Now().UTC(),
	}
}

// chooseCover applies the one uniform cover rule: the first successfully
// resolved request flagged as cover, in request order; failing that, the
// first successful request overall. Decided after all resolutions complete,
// so worker completion order cannot affect it.
func chooseCover(requests []models.AssetRequest, resolved map[string]*models.GeneratedAsset) string {
	for _, req := range requests {
		if req.Cover {
			if asset := resolved[req.FilenameBase]; asset != nil {
				return asset.PublicPath
			}
		}
	}
	for _, req := range requests {
		if asset := resolved[req.FilenameBase]; asset != nil {
			return asset.PublicPath
		}
	}
	return ""
}
