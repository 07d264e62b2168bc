package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/atelier-ai/atelier/internal/defaults"
)

// runInit sets up a working directory: the data layout plus an example
// config and a sample project plan. Existing files are left alone so
// re-running init on a live studio is safe.
func runInit(stdout io.Writer, dir string) error {
	for _, sub := range []string{"", "data", filepath.Join("data", "uploads")} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	wrote, err := writeIfMissing(filepath.Join(dir, "atelier.yaml"), defaults.ConfigYAML)
	if err != nil {
		return err
	}
	if wrote {
		fmt.Fprintf(stdout, "Wrote %s\n", filepath.Join(dir, "atelier.yaml"))
	} else {
		fmt.Fprintf(stdout, "Kept existing %s\n", filepath.Join(dir, "atelier.yaml"))
	}

	wrote, err = writeIfMissing(filepath.Join(dir, "plan.example.md"), defaults.PlanMD)
	if err != nil {
		return err
	}
	if wrote {
		fmt.Fprintf(stdout, "Wrote %s\n", filepath.Join(dir, "plan.example.md"))
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Next steps:")
	fmt.Fprintln(stdout, "  1. Edit atelier.yaml (model, Ollama URL)")
	fmt.Fprintln(stdout, "  2. atelier serve")
	fmt.Fprintln(stdout, "  3. atelier ingest plan.example.md")
	return nil
}

// writeIfMissing writes data to path unless the file already exists.
// Reports whether it wrote.
func writeIfMissing(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
