package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/methodwatch/internal/core/config"
	"github.com/vietddude/methodwatch/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest observation for every watched method",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewObservationRepo(db)
	latest, err := repo.LastByMethod(ctx)
	if err != nil {
		slog.Error("Failed to query observations", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "METHOD\tKIND\tSTATUS\tLATENCY\tOBSERVED")

	for _, obs := range latest {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\n",
			obs.Method, obs.Kind, obs.Status, obs.Latency,
			obs.ObservedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
