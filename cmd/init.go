package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fossas/broker/internal/config"
)

// exampleConfig is written as config.example.yml on init; its full
// schema and defaults live in internal/config.
const exampleConfig = `version: 1
fossa_endpoint: https://app.fossa.com
fossa_integration_key: <your-integration-key>
concurrency: 10
debugging:
  location: ` + "`" + `<data-root>/debug` + "`" + `
  retention:
    days: 7
integrations: []
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data root and a template config file",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := resolveDataRoot()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating data root %s: %w", root, err)
	}

	examplePath := filepath.Join(root, "config.example.yml")
	if err := os.WriteFile(examplePath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", examplePath, err)
	}

	configPath := filepath.Join(root, config.ConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}
		fmt.Printf("wrote %s — edit it, then run 'broker run'\n", configPath)
	} else {
		fmt.Printf("%s already exists, left untouched; see %s for the current schema\n", configPath, examplePath)
	}

	return nil
}
