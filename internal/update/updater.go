// Package update drives the branch/commit/submit workflow for a package in
// the build service on top of the osc command line client.
package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/osctools/obsup/internal/command"
)

// DefaultAPIURL is the build service instance targeted when none is set.
const DefaultAPIURL = "https://api.opensuse.org"

// Package identifies a package inside a build service project.
type Package struct {
	Project string
	Name    string
}

func (p Package) String() string { return p.Project + "/" + p.Name }

// FileProducer writes the new package files into dir, a fresh checkout of
// the branched package, and returns the names of the files it wrote. It is
// the only caller-supplied step of the workflow.
type FileProducer func(ctx context.Context, dir string) ([]string, error)

// Options control a single Update run.
type Options struct {
	// TargetProject branches into an alternative project instead of the
	// user's home project.
	TargetProject string
	// CleanupOnError deletes the branched package remotely when the update
	// fails after branching succeeded.
	CleanupOnError bool
	// Submit opens a submit request back to the origin project after the
	// commit.
	Submit bool
	// CleanupOnNoChange deletes the branched package when the produced
	// files change nothing.
	CleanupOnNoChange bool
}

// DefaultOptions submits the update and cleans up unchanged branches.
func DefaultOptions() Options {
	return Options{Submit: true, CleanupOnNoChange: true}
}

// Updater updates packages in the build service. ProduceFiles must be set;
// everything else has a usable zero value.
type Updater struct {
	// APIURL is the build service API endpoint (DefaultAPIURL when empty).
	APIURL string
	// OscBin is the osc executable ("osc" when empty).
	OscBin string
	// StepTimeout bounds each osc invocation; one minute when zero.
	StepTimeout time.Duration
	// Runner executes the osc commands.
	Runner *command.Runner
	// Log receives progress and failure diagnostics when set.
	Log command.Logger
	// ProduceFiles writes the updated package content into the checkout.
	ProduceFiles FileProducer
}

func (u *Updater) osc() string {
	bin := u.OscBin
	if bin == "" {
		bin = "osc"
	}
	api := u.APIURL
	if api == "" {
		api = DefaultAPIURL
	}
	return fmt.Sprintf("%s -A %s", bin, api)
}

// Update branches pkg (into opts.TargetProject when set), checks the branch
// out into a scratch directory, writes the new files via ProduceFiles,
// commits them with commitMsg as changelog entry and commit message, waits
// for the server-side services and opens a submit request back to the
// origin project.
//
// When the produced files change nothing, no commit is made; the branch is
// deleted remotely unless opts.CleanupOnNoChange is off. On failure after
// branching, the branch is deleted remotely only when opts.CleanupOnError
// is set, and the original error is returned either way. The scratch
// directory is removed on every exit path.
func (u *Updater) Update(ctx context.Context, pkg Package, commitMsg string, opts Options) error {
	if u.ProduceFiles == nil {
		return errors.New("updater has no file producer")
	}

	tmp, err := os.MkdirTemp("", "obsup-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if u.Log != nil {
		u.Log.Info("updating %s", pkg)
		u.Log.VerboseLog("running update in %s", tmp)
	}

	runner := u.Runner
	if runner == nil {
		runner = &command.Runner{Log: u.Log}
	}
	timeout := u.StepTimeout
	if timeout == 0 {
		timeout = time.Minute
	}
	run := func(cmdText string) (string, error) {
		res, err := runner.Run(ctx, cmdText, command.WithDir(tmp), command.WithTimeout(timeout))
		if err != nil {
			return "", err
		}
		return res.Stdout, nil
	}

	// Qualified project/package of the branch, set once branching succeeds.
	// Cleanup on error is only possible from that point on.
	branched := ""
	err = func() error {
		osc := u.osc()

		branchCmd := fmt.Sprintf("%s branch %s %s", osc, pkg.Project, pkg.Name)
		if opts.TargetProject != "" {
			branchCmd += " " + opts.TargetProject
		}
		stdout, err := run(branchCmd)
		if err != nil {
			return err
		}
		branched, err = parseBranchOutput(stdout)
		if err != nil {
			return err
		}

		if _, err := run(fmt.Sprintf("%s co %s -o %s", osc, branched, tmp)); err != nil {
			return err
		}

		written, err := u.ProduceFiles(ctx, tmp)
		if err != nil {
			return err
		}
		for _, name := range written {
			if _, err := run(fmt.Sprintf("%s add %s", osc, name)); err != nil {
				return err
			}
		}

		status, err := run(fmt.Sprintf("%s st", osc))
		if err != nil {
			return err
		}
		if status == "" {
			if u.Log != nil {
				u.Log.Info("nothing changed, no update available")
			}
			if opts.CleanupOnNoChange {
				_, err := run(fmt.Sprintf("%s rdelete %s -m 'cleanup as nothing changed'", osc, branched))
				return err
			}
			return nil
		}

		for _, sub := range []string{"vc", "ci"} {
			if _, err := run(fmt.Sprintf("%s %s -m %q", osc, sub, commitMsg)); err != nil {
				return err
			}
		}

		// branched is $proj/$pkg; service wait takes them as two arguments
		if _, err := run(fmt.Sprintf("%s service wait %s", osc, strings.ReplaceAll(branched, "/", " "))); err != nil {
			return err
		}

		if opts.Submit {
			if _, err := run(fmt.Sprintf("%s sr --cleanup -m %q", osc, commitMsg)); err != nil {
				return err
			}
		}
		return nil
	}()
	if err != nil {
		if u.Log != nil {
			u.Log.Error("failed to update %s: %v", pkg, err)
		}
		if opts.CleanupOnError && branched != "" {
			if u.Log != nil {
				u.Log.Info("cleaning up %s", branched)
			}
			if _, cleanupErr := run(fmt.Sprintf("%s rdelete %s -m 'cleanup on error'", u.osc(), branched)); cleanupErr != nil && u.Log != nil {
				u.Log.Error("cleanup of %s failed: %v", branched, cleanupErr)
			}
		}
		return err
	}
	return nil
}

// parseBranchOutput extracts the branched project/package from the checkout
// instruction printed by `osc branch`:
//
//	A working copy of the branched package can be checked out with:
//
//	osc co home:user:branches:devel:tools/pkg
func parseBranchOutput(stdout string) (string, error) {
	lines := strings.Split(stdout, "\n")
	if len(lines) < 3 {
		return "", fmt.Errorf("unexpected branch output: %q", stdout)
	}
	fields := strings.Fields(lines[2])
	if len(fields) == 0 {
		return "", fmt.Errorf("unexpected branch output: %q", stdout)
	}
	return fields[len(fields)-1], nil
}
