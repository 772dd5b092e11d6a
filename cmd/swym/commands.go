package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"

	"github.com/Ge9Nico/SWYM/internal/config"
	"github.com/Ge9Nico/SWYM/internal/dashboard"
	"github.com/Ge9Nico/SWYM/internal/extract"
	"github.com/Ge9Nico/SWYM/internal/gcp"
	"github.com/Ge9Nico/SWYM/internal/models"
	"github.com/Ge9Nico/SWYM/internal/services"
	"github.com/Ge9Nico/SWYM/internal/structuring"
)

const loadTimeout = 30 * time.Second

// clients are the handles shared by the dashboard commands.
type clients struct {
	cfg       *config.Client
	firestore *firestore.Client
	store     *gcp.FirestoreStore
}

func connect(ctx context.Context) (*clients, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	fs, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	return &clients{cfg: cfg, firestore: fs, store: gcp.NewFirestoreStore(fs, cfg.Namespace)}, nil
}

func (c *clients) identity(f identityFlags) models.Identity {
	return models.Identity{Owner: models.Owner{TenantID: c.cfg.TenantID, UserID: f.userID}, IsGuest: f.guest}
}

func waitLoaded(ctx context.Context, s *dashboard.Session) (dashboard.View, error) {
	if v := s.Current(); v.Loaded {
		return v, nil
	}
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	for {
		select {
		case v, ok := <-s.Views():
			if !ok {
				return dashboard.View{}, errors.New("dashboard session ended before loading")
			}
			if v.Loaded {
				return v, nil
			}
		case <-ctx.Done():
			return dashboard.View{}, fmt.Errorf("waiting for dashboard: %w", ctx.Err())
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newWatchCmd() *cobra.Command {
	var id identityFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream the dashboard view until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := connect(ctx)
			if err != nil {
				return err
			}
			defer c.firestore.Close()

			s := dashboard.Open(ctx, c.store, c.identity(id))
			defer s.Close()
			for {
				select {
				case <-ctx.Done():
					return s.Close()
				case <-s.Done():
					return s.Close()
				case v, ok := <-s.Views():
					if !ok {
						return s.Close()
					}
					if !v.Loaded {
						continue
					}
					if err := printJSON(cmd.OutOrStdout(), v); err != nil {
						return err
					}
				}
			}
		},
	}
	id.register(cmd)
	return cmd
}

func newQuotaCmd() *cobra.Command {
	var id identityFlags
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Print whether the user may upload another document",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := connect(ctx)
			if err != nil {
				return err
			}
			defer c.firestore.Close()

			s := dashboard.Open(ctx, c.store, c.identity(id))
			defer s.Close()
			v, err := waitLoaded(ctx, s)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v.Quota)
		},
	}
	id.register(cmd)
	return cmd
}

func newUploadCmd() *cobra.Command {
	var (
		id          identityFlags
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a policy document for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(path))
			}
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			c, err := connect(ctx)
			if err != nil {
				return err
			}
			defer c.firestore.Close()
			storageClient, err := storage.NewClient(ctx)
			if err != nil {
				return fmt.Errorf("failed to create Storage client: %w", err)
			}
			defer storageClient.Close()

			file, err := os.Open(path)
			if err != nil {
				return err
			}
			defer file.Close()

			s := dashboard.Open(ctx, c.store, c.identity(id))
			defer s.Close()
			if _, err := waitLoaded(ctx, s); err != nil {
				return err
			}

			uploader := dashboard.NewUploader(gcp.NewObjectStore(storageClient), c.store, c.cfg.Namespace, c.cfg.UploadBucket)
			rec, err := s.Upload(ctx, uploader, dashboard.File{
				Name:        filepath.Base(path),
				ContentType: contentType,
				Body:        file,
			})
			var qe *dashboard.QuotaError
			if errors.As(err, &qe) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n%s\n[%s]\n", qe.Decision.Prompt.Title, qe.Decision.Prompt.Message, qe.Decision.Prompt.Action)
				return err
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	id.register(cmd)
	cmd.Flags().StringVar(&contentType, "content-type", "", "declared content type (default: from the file extension)")
	return cmd
}

func newPolicyCmd() *cobra.Command {
	var id identityFlags
	cmd := &cobra.Command{
		Use:   "policy <id>",
		Short: "Print one stored policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := connect(ctx)
			if err != nil {
				return err
			}
			defer c.firestore.Close()

			p, err := c.store.Policy(ctx, c.identity(id).Owner, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	id.register(cmd)
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Extract and structure a local document without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(path))
			}

			cfg, err := config.LoadAnalyzer()
			if err != nil {
				return err
			}
			res, err := extract.New(cfg.MinTextLength).Extract(ctx, path, contentType)
			if err != nil {
				return err
			}
			model, err := services.NewModel(ctx, cfg)
			if err != nil {
				return err
			}
			defer model.Close()

			req := structuring.BuildRequest(res)
			fmt.Fprintf(cmd.ErrOrStderr(), "strategy=%s pages=%d request=%s\n", res.Strategy, res.PageCount, req.Describe())
			policy, err := structuring.NewClient(model).Structure(ctx, res)
			if err != nil {
				var pe *models.ProcessingError
				if errors.As(err, &pe) && pe.Raw != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "raw response:\n%s\n", pe.Raw)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), policy)
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "declared content type (default: from the file extension)")
	return cmd
}
