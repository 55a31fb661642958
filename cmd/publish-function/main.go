package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/travelcontentflow/internal/models"
	"github.com/Lllllllleong/travelcontentflow/internal/services"
)

var (
	pipelineInstance *services.Pipeline
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the HTTP function with the framework.
	// "HandlePublishArticle" is the entry point name we'll see in GCP.
	functions.HTTP("HandlePublishArticle", handlePublishArticle)
}

// main is required by the Go Functions Framework.
func main() {}

// handlePublishArticle runs one article through the pipeline on demand. The
// admin UI calls this after an editor saves a template, so edits go live
// without waiting for the next batch run.
func handlePublishArticle(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		var cfg *services.PipelineConfig
		cfg, initErr = services.LoadPipelineConfig()
		if initErr != nil {
			return
		}
		pipelineInstance, initErr = services.NewPipeline(context.Background(), *cfg)
	})
	if initErr != nil {
		slog.Error("CRITICAL: Pipeline initialization failed.", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.PublishArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body.", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	outcome, err := pipelineInstance.ProcessArticle(r.Context(), &req.Article)
	if err != nil {
		slog.Error("Asset cache failure during publish.", "error", err)
		http.Error(w, "Internal Server Error: asset cache unavailable", http.StatusInternalServerError)
		return
	}

	res := models.PublishArticleResponse{Status: "completed", Outcome: outcome}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response.", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
