package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/fabriclab/fabtest/internal/config"
)

// isTerminal reports whether stdout is an interactive terminal.
// Variable for testing injection.
var isTerminal = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Init creates a configuration file through the interactive wizard.
func Init(ctx context.Context, output string) error {
	if !isTerminal() {
		return fmt.Errorf("init requires an interactive terminal; write %s by hand instead", output)
	}

	result, err := runWizard(ctx)
	if err != nil {
		return err
	}

	cfg := result.ToConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.WriteYAML(cfg, output); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", output)
	fmt.Printf("Run 'fabtest run -c %s' to start a validation run.\n", output)
	return nil
}
