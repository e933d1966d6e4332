package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/methodwatch/internal/core/config"
	"github.com/vietddude/methodwatch/internal/method"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Terminate the server session for the configured host",
	Run:   runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Host == "" {
		slog.Error("No host configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := method.NewClient(cfg.Host, 10*time.Second)
	defer client.Close()

	resp, err := client.Logout(ctx)
	if err != nil {
		slog.Error("Logout failed", "error", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Printf("Logout: %s\n", resp.Status)
}
