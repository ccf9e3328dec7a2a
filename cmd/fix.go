package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/fossas/broker/internal/config"
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Run basic connectivity checks against the configured endpoint and remotes",
	RunE:  runFix,
}

func runFix(cmd *cobra.Command, args []string) error {
	root, err := resolveDataRoot()
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgFile, root)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ok := true
	if err := checkEndpoint(ctx, cfg.FossaEndpoint); err != nil {
		fmt.Printf("[FAIL] fossa_endpoint %s: %v\n", cfg.FossaEndpoint, err)
		ok = false
	} else {
		fmt.Printf("[ OK ] fossa_endpoint %s reachable\n", cfg.FossaEndpoint)
	}

	if _, err := exec.LookPath("git"); err != nil {
		fmt.Println("[FAIL] git executable not found on PATH")
		ok = false
	} else {
		fmt.Println("[ OK ] git executable found on PATH")
	}

	for _, integration := range cfg.Integrations {
		fmt.Printf("[ -- ] integration %s (%s): connectivity check not implemented, use 'git ls-remote %s' manually\n",
			integration.ID, integration.Remote, integration.Remote)
	}

	if !ok {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func checkEndpoint(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
