package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Lllllllleong/travelcontentflow/internal/models"
	"github.com/Lllllllleong/travelcontentflow/internal/services"
)

// Exit codes: 0 every article published with all assets, 1 anything degraded
// or failed, 2 the run aborted before processing (configuration/filesystem).
const (
	exitOK      = 0
	exitPartial = 1
	exitAborted = 2
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	manifestPath := flag.String("manifest", "", "path to the run manifest (JSON)")
	dryRun := flag.Bool("dry-run", false, "skip generation and publishing; report what a real run would do")
	assetDir := flag.String("assets-dir", "", "override the asset cache directory (default from ASSET_DIR)")
	flag.Parse()

	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "--manifest is required")
		os.Exit(exitAborted)
	}

	manifest, err := readManifest(*manifestPath)
	if err != nil {
		slog.Error("CRITICAL: Failed to read manifest.", "error", err)
		os.Exit(exitAborted)
	}

	cfg, err := services.LoadPipelineConfig()
	if err != nil {
		slog.Error("CRITICAL: Configuration error.", "error", err)
		os.Exit(exitAborted)
	}
	cfg.DryRun = *dryRun
	if *assetDir != "" {
		cfg.AssetDir = *assetDir
	}

	ctx := context.Background()
	pipeline, err := services.NewPipeline(ctx, *cfg)
	if err != nil {
		slog.Error("CRITICAL: Pipeline initialization failed.", "error", err)
		os.Exit(exitAborted)
	}

	slog.Info("Starting batch run.", "articles", len(manifest.Articles), "dryRun", cfg.DryRun)
	report, err := pipeline.Run(ctx, manifest)
	if err != nil {
		slog.Error("CRITICAL: Run aborted.", "error", err, "processed", len(report.Outcomes))
		os.Exit(exitAborted)
	}

	for _, outcome := range report.Outcomes {
		slog.Info("Run outcome.",
			"slug", outcome.Slug,
			"outcome", outcome.Kind,
			"assetsIncluded", outcome.AssetsIncluded,
			"assetsRequested", outcome.AssetsRequested,
			"missingAssets", outcome.MissingAssets,
			"reason", outcome.Reason,
		)
	}

	os.Exit(report.ExitCode())
}

func readManifest(path string) (*models.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var manifest models.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
	}
	if len(manifest.Articles) == 0 {
		return nil, fmt.Errorf("manifest contains no articles")
	}
	return &manifest, nil
}
