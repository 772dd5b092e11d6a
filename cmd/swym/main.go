// Command swym is the dashboard client: it watches a user's documents and policies, applies the
// upload quota and uploads new documents.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type identityFlags struct {
	userID string
	guest  bool
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.userID, "user", "", "user id owning the documents")
	cmd.Flags().BoolVar(&f.guest, "guest", false, "treat the user as a guest identity")
	_ = cmd.MarkFlagRequired("user")
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "swym",
		Short:        "Insurance policy dashboard client",
		SilenceUsage: true,
	}
	var verbose bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at info level")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
		}
	}

	root.AddCommand(newWatchCmd(), newUploadCmd(), newQuotaCmd(), newPolicyCmd(), newAnalyzeCmd())
	return root
}
