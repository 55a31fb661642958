package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/travelcontentflow/internal/models"
	"github.com/Lllllllleong/travelcontentflow/internal/services"
)

// GCSEvent defines the structure for the GCS event data.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

var (
	pipelineInstance *services.Pipeline
	storageClient    *storage.Client
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function.
	// The first argument is the function name deployed in GCP.
	functions.CloudEvent("RunManifest", RunManifest)
}

// main is required by the Go Functions Framework.
func main() {}

// RunManifest runs a batch when the admin UI drops a run manifest into the
// manifest bucket. Per-article failures are contained by the pipeline; an
// error return here (and the resulting redelivery) is reserved for
// configuration and infrastructure problems.
func RunManifest(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var cfg *services.PipelineConfig
		cfg, initErr = services.LoadPipelineConfig()
		if initErr != nil {
			return
		}
		storageClient, initErr = storage.NewClient(context.Background())
		if initErr != nil {
			initErr = fmt.Errorf("failed to create storage client: %w", initErr)
			return
		}
		pipelineInstance, initErr = services.NewPipeline(context.Background(), *cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	logCtx := slog.With("gcsBucket", gcsEvent.Bucket, "gcsObject", gcsEvent.Name)
	if !strings.HasSuffix(gcsEvent.Name, ".json") {
		logCtx.Info("Ignoring non-manifest object.")
		return nil
	}
	logCtx.Info("Processing run manifest.")

	manifest, err := readManifestObject(ctx, gcsEvent.Bucket, gcsEvent.Name)
	if err != nil {
		logCtx.Error("Failed to read manifest object", "error", err)
		return err
	}

	report, err := pipelineInstance.Run(ctx, manifest)
	if err != nil {
		logCtx.Error("Run aborted on infrastructure failure", "error", err, "processed", len(report.Outcomes))
		return err
	}
	for _, outcome := range report.Outcomes {
		logCtx.Info("Run outcome.",
			"slug", outcome.Slug,
			"outcome", outcome.Kind,
			"assetsIncluded", outcome.AssetsIncluded,
			"assetsRequested", outcome.AssetsRequested,
		)
	}
	logCtx.Info("Manifest run complete.", "articles", len(report.Outcomes))
	return nil
}

func readManifestObject(ctx context.Context, bucket, object string) (*models.Manifest, error) {
	reader, err := storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest object: %w", err)
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
