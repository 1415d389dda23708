package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/osctools/obsup/internal/command"
	"github.com/osctools/obsup/internal/update"
)

var (
	updateMessage      string
	updateFrom         string
	updateTarget       string
	updateBatch        string
	updateRetries      int
	updateCleanupOnErr bool
	updateNoSubmit     bool
	updateKeepNoChange bool
)

var updateCmd = &cobra.Command{
	Use:   "update [project] [package]",
	Short: "Branch a package, write new files, commit and submit",
	Long: `Branch <project>/<package>, copy the files under --from into the
checkout, commit them with --message as changelog entry and commit message,
wait for the server-side services and open a submit request back to the
origin project.

With --batch, updates every package listed in the YAML file instead.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if updateMessage == "" {
			return fmt.Errorf("--message is required")
		}
		if updateFrom == "" {
			return fmt.Errorf("--from is required")
		}
		if updateBatch != "" {
			if len(args) > 0 {
				return fmt.Errorf("--batch cannot be combined with positional arguments")
			}
			return updateBatchRun(cmd.Context(), updateBatch)
		}
		if len(args) != 2 {
			return fmt.Errorf("expected <project> <package> (or --batch)")
		}
		pkg := update.Package{Project: args[0], Name: args[1]}
		return updateRun(cmd.Context(), pkg, updateTarget)
	},
}

func init() {
	updateCmd.Flags().StringVarP(&updateMessage, "message", "m", "", "Commit, changelog and submit request message (required)")
	updateCmd.Flags().StringVar(&updateFrom, "from", "", "Directory with the new package files (required)")
	updateCmd.Flags().StringVar(&updateTarget, "target-project", "", "Branch into this project instead of the home project")
	updateCmd.Flags().StringVar(&updateBatch, "batch", "", "YAML file listing packages to update")
	updateCmd.Flags().IntVar(&updateRetries, "retries", 1, "Attempts per package for transient osc failures")
	updateCmd.Flags().BoolVar(&updateCleanupOnErr, "cleanup-on-error", false, "Delete the branched package when the update fails")
	updateCmd.Flags().BoolVar(&updateNoSubmit, "no-submit", false, "Commit without opening a submit request")
	updateCmd.Flags().BoolVar(&updateKeepNoChange, "keep-on-no-change", false, "Keep the branch even when nothing changed")

	rootCmd.AddCommand(updateCmd)
}

func updateRun(ctx context.Context, pkg update.Package, targetProject string) error {
	if dryRun {
		ui.DryRunMsg("would update %s from %s", pkg, updateFrom)
		return nil
	}

	u := newUpdater(copyTreeProducer(updateFrom))
	opts := update.Options{
		TargetProject:     targetProject,
		CleanupOnError:    updateCleanupOnErr,
		Submit:            !updateNoSubmit,
		CleanupOnNoChange: !updateKeepNoChange,
	}

	_, err := command.Retry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, u.Update(ctx, pkg, updateMessage, opts)
	}, command.WithAttempts(updateRetries), command.WithRetryLogger(ui))
	if err != nil {
		return err
	}

	ui.Success("updated %s", pkg)
	return nil
}

// batchFile is the schema of the --batch YAML file.
type batchFile struct {
	Packages []batchEntry `yaml:"packages"`
}

type batchEntry struct {
	Project       string `yaml:"project"`
	Package       string `yaml:"package"`
	TargetProject string `yaml:"target_project"`
}

func updateBatchRun(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}
	var batch batchFile
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("parse batch file: %w", err)
	}
	if len(batch.Packages) == 0 {
		return fmt.Errorf("batch file %s lists no packages", path)
	}

	for _, entry := range batch.Packages {
		if entry.Project == "" || entry.Package == "" {
			return fmt.Errorf("batch entry needs both project and package, got %q/%q", entry.Project, entry.Package)
		}
		pkg := update.Package{Project: entry.Project, Name: entry.Package}
		if err := updateRun(ctx, pkg, entry.TargetProject); err != nil {
			return fmt.Errorf("update %s: %w", pkg, err)
		}
	}
	return nil
}

// copyTreeProducer returns a FileProducer that copies everything under src
// into the checkout, reporting the copied files relative to the checkout
// root.
func copyTreeProducer(src string) update.FileProducer {
	return func(ctx context.Context, dir string) ([]string, error) {
		var written []string
		err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}
			if d.IsDir() {
				if rel == "." {
					return nil
				}
				return os.MkdirAll(filepath.Join(dir, rel), 0o755)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, rel), data, 0o644); err != nil {
				return err
			}
			written = append(written, rel)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("copy files from %s: %w", src, err)
		}
		return written, nil
	}
}
