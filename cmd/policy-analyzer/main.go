package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Ge9Nico/SWYM/internal/models"
	"github.com/Ge9Nico/SWYM/internal/services"
)

var (
	analyzerInstance *services.AnalyzerFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("AnalyzePolicyDocument", analyzePolicyDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// analyzePolicyDocument is the Cloud Function entry point for "object finalized" events on the upload bucket.
func analyzePolicyDocument(ctx context.Context, e cloudevents.Event) error {
	// Clients are created on the first invocation and reused by warm instances.
	once.Do(func() {
		analyzerInstance, initErr = services.NewAnalyzer(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var uploadEvent models.UploadEvent
	if err := json.Unmarshal(e.Data(), &uploadEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// The error is already logged and recorded on the status record.
	return analyzerInstance.Process(ctx, uploadEvent)
}
