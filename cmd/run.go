package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fossas/broker/internal/config"
	"github.com/fossas/broker/internal/store"
	"github.com/fossas/broker/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the broker agent: poll, discover, scan, and upload",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	root, err := resolveDataRoot()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating data root %s: %w", root, err)
	}

	cfg, err := config.Load(cfgFile, root)
	if err != nil {
		return err
	}

	dbPath := dbFile
	if dbPath == "" {
		dbPath = filepath.Join(root, "db.sqlite")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	tmpRoot := filepath.Join(root, "broker-queue")
	sup := supervisor.New(cfg, st, root, tmpRoot)
	return sup.Run(ctx)
}
