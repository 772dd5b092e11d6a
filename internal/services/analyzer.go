package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Ge9Nico/SWYM/internal/config"
	"github.com/Ge9Nico/SWYM/internal/extract"
	"github.com/Ge9Nico/SWYM/internal/gcp"
	"github.com/Ge9Nico/SWYM/internal/models"
	"github.com/Ge9Nico/SWYM/internal/paths"
	"github.com/Ge9Nico/SWYM/internal/structuring"
)

// failureWriteTimeout bounds the status write made after a failed phase.
const failureWriteTimeout = 10 * time.Second

// ObjectDownloader copies a storage object to a local file.
type ObjectDownloader interface {
	Download(ctx context.Context, bucket, object, destPath string) error
}

// StatusLedger moves StatusRecords forward.
type StatusLedger interface {
	Advance(ctx context.Context, ref models.DocumentRef, upd models.StatusUpdate) (models.StatusRecord, error)
}

// PolicyStore appends a PolicyRecord and completes its StatusRecord.
type PolicyStore interface {
	Append(ctx context.Context, ref models.DocumentRef, policy models.StructuredPolicy, meta models.StatusUpdate) (models.PolicyRecord, error)
}

// Structurer turns an extraction result into a StructuredPolicy.
type Structurer interface {
	Structure(ctx context.Context, res *extract.Result) (*models.StructuredPolicy, error)
}

// Dependencies are the service handles the analyzer runs against.
type Dependencies struct {
	Objects    ObjectDownloader
	Ledger     StatusLedger
	Policies   PolicyStore
	Extractor  *extract.Extractor
	Structurer Structurer
	// Closers are released by Close, in order.
	Closers []io.Closer
}

// AnalyzerFunction runs one upload through download, extraction, structuring and persistence.
type AnalyzerFunction struct {
	deps   Dependencies
	config config.Analyzer
}

// NewAnalyzer builds the analyzer against Cloud Storage, Firestore and the configured model backend.
func NewAnalyzer(ctx context.Context) (*AnalyzerFunction, error) {
	cfg, err := config.LoadAnalyzer()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	model, err := NewModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := gcp.NewFirestoreStore(firestoreClient, cfg.Namespace)
	f := NewAnalyzerWith(*cfg, Dependencies{
		Objects:    gcp.NewObjectStore(storageClient),
		Ledger:     store,
		Policies:   store,
		Extractor:  extract.New(cfg.MinTextLength),
		Structurer: structuring.NewClient(model),
		Closers:    []io.Closer{model, storageClient, firestoreClient},
	})
	slog.Info("Policy analyzer initialized.", "backend", cfg.StructuringBackend, "model", cfg.Model, "namespace", cfg.Namespace)
	return f, nil
}

// ClosableModel is a structuring backend holding a client connection.
type ClosableModel interface {
	structuring.Model
	io.Closer
}

// NewModel creates the structuring backend selected by cfg.StructuringBackend.
func NewModel(ctx context.Context, cfg *config.Analyzer) (ClosableModel, error) {
	switch cfg.StructuringBackend {
	case config.BackendGemini:
		m, err := gcp.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini model: %w", err)
		}
		return m, nil
	default:
		m, err := gcp.NewVertexModel(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI model: %w", err)
		}
		return m, nil
	}
}

// NewAnalyzerWith builds the analyzer from explicit handles.
func NewAnalyzerWith(cfg config.Analyzer, deps Dependencies) *AnalyzerFunction {
	if cfg.Namespace == "" {
		cfg.Namespace = "artifacts"
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(cfg.MinTextLength)
	}
	return &AnalyzerFunction{deps: deps, config: cfg}
}

// Close releases the handles acquired by NewAnalyzer.
func (f *AnalyzerFunction) Close() error {
	var errs []error
	for _, c := range f.deps.Closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Process handles one "object finalized" event. Objects outside the user upload
// convention are ignored. Every failure is recorded on the StatusRecord before it is returned.
func (f *AnalyzerFunction) Process(ctx context.Context, e models.UploadEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name, "contentType", e.ContentType)

	ref, ok := paths.ResolveUpload(f.config.Namespace, e.Name)
	if !ok {
		logCtx.Info("Object is not a user upload. Skipping.")
		return nil
	}
	logCtx = logCtx.With("tenantId", ref.TenantID, "userId", ref.UserID, "documentKey", ref.Key)
	logCtx.Info("Processing new upload.")

	tempDir, err := os.MkdirTemp(f.config.TempDir, "policy-analyzer-*")
	if err != nil {
		return f.handleError(ctx, logCtx, ref, models.Errorf(models.KindExtractionFailure, "failed to create temp dir: %w", err))
	}
	defer os.RemoveAll(tempDir)

	localPath := filepath.Join(tempDir, "source"+filepath.Ext(ref.Key))
	if err := f.deps.Objects.Download(ctx, e.Bucket, e.Name, localPath); err != nil {
		return f.handleError(ctx, logCtx, ref, models.NewProcessingError(models.KindDownloadFailure, err))
	}

	if _, err := f.deps.Ledger.Advance(ctx, ref, models.StatusUpdate{Status: models.StatusProcessing, FileName: ref.Key}); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			logCtx.Info("Document already processed or in progress. Skipping duplicate invocation.", "reason", err)
			return nil
		}
		return f.handleError(ctx, logCtx, ref, models.Errorf(models.KindPersistenceFailure, "failed to mark document processing: %w", err))
	}

	res, err := f.deps.Extractor.Extract(ctx, localPath, e.ContentType)
	if err != nil {
		return f.handleError(ctx, logCtx, ref, err)
	}
	logCtx = logCtx.With("strategy", res.Strategy)
	logCtx.Info("Content extracted.", "pageCount", res.PageCount, "textLength", len(res.Text))

	policy, err := f.deps.Structurer.Structure(ctx, res)
	if err != nil {
		return f.handleError(ctx, logCtx, ref, err)
	}

	record, err := f.deps.Policies.Append(ctx, ref, *policy, models.StatusUpdate{
		Strategy:  string(res.Strategy),
		PageCount: res.PageCount,
	})
	if err != nil {
		return f.handleError(ctx, logCtx, ref, models.Errorf(models.KindPersistenceFailure, "failed to save policy: %w", err))
	}

	logCtx.Info("Policy analysis complete.", "policyId", record.ID, "provider", record.Provider,
		"coverages", len(record.Coverages), "perks", len(record.Perks))
	return nil
}

// handleError records err on ref's StatusRecord and returns it.
func (f *AnalyzerFunction) handleError(ctx context.Context, logCtx *slog.Logger, ref models.DocumentRef, err error) error {
	kind := models.KindOf(err)
	args := []any{"kind", kind, "error", err}
	var pe *models.ProcessingError
	if errors.As(err, &pe) && pe.Raw != "" {
		args = append(args, "rawResponse", pe.Raw)
	}
	logCtx.Error("Policy analysis failed.", args...)

	// The invocation context may be the reason for the failure, so the write gets its own deadline.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	upd := models.StatusUpdate{Status: models.StatusFailed, Error: err.Error()}
	if _, werr := f.deps.Ledger.Advance(writeCtx, ref, upd); werr != nil {
		if errors.Is(werr, models.ErrInvalidTransition) {
			logCtx.Warn("Status record is already terminal. Failure not recorded.", "updateError", werr)
		} else {
			logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", werr)
		}
	}
	return fmt.Errorf("analyze %s: %w", ref.Key, err)
}
