package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/harness"
	"github.com/roach88/speciate/internal/invoke"
	"github.com/roach88/speciate/internal/pregen"
	"github.com/roach88/speciate/internal/profile"
	"github.com/roach88/speciate/internal/species"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update  bool   // regenerate golden files
	Filter  string // scenario filter (glob pattern)
	Profile string // runtime thresholds for every scenario
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// RunResult holds the overall run result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenarios-dir|scenario.yaml>",
		Short: "Run bind and invoke scenarios",
		Long: `Run YAML scenarios against built-in targets and check their expectations.

A scenario with a golden file (golden/<name>.golden next to the scenario) must
also reproduce its canonical trace. A profile's thresholds override each
scenario's own runtime settings, and the units it requests are pregenerated
once and preloaded into every scenario's bridge.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable profile)

Examples:
  speciate run ./scenarios
  speciate run ./scenarios --filter "sum4_*"
  speciate run ./scenarios --update
  speciate run ./scenarios --profile tuning.cue --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE profile supplying runtime thresholds")

	return cmd
}

func runScenarios(opts *RunOptions, path string, cmd *cobra.Command) error {
	info, err := os.Stat(path)
	if err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios not found: %s", path))
	}

	var runOpts []harness.Option
	if opts.Profile != "" {
		p, err := profile.Load(opts.Profile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load profile", err)
		}
		bundle, err := pregenerateProfile(p)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to pregenerate profile units", err)
		}
		runOpts = append(runOpts,
			harness.WithRuntimeOptions(p.RuntimeOptions()...),
			harness.WithBundle(bundle))
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = findScenarioFiles(path, opts.Filter); err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
	}

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenario(file, runOpts, opts, cmd.OutOrStdout())
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	return reportRun(cmd, opts, result)
}

// pregenerateProfile generates the profile's units once so every
// scenario starts with them loaded.
func pregenerateProfile(p *profile.Profile) (*pregen.Bundle, error) {
	rt := invoke.New(append(p.RuntimeOptions(),
		invoke.WithRegistry(species.NewRegistry()),
		invoke.WithBridge(codegen.NewBridge(p.BridgeOptions()...)))...)
	bundle, err := rt.Pregenerate(p.Request)
	if err != nil {
		return nil, err
	}
	slog.Debug("profile pregenerated", "id", bundle.ID, "units", len(bundle.Units), "skipped", len(bundle.Skipped))
	return bundle, nil
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario executes one scenario file. Text output is written as it
// goes; JSON output is written once at the end by the caller.
func runScenario(file string, runOpts []harness.Option, opts *RunOptions, w io.Writer) ScenarioResult {
	fail := func(name string, errs ...string) ScenarioResult {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}
	pass := func(name, note string) ScenarioResult {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✓ %s%s\n", name, note)
		}
		return ScenarioResult{Name: name, Pass: true}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), fmt.Sprintf("load error: %v", err))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution error: %v", err))
	}
	slog.Debug("scenario executed", "name", scenario.Name, "steps", len(result.Trace), "pass", result.Pass)

	snapshot, err := harness.MarshalSnapshot(scenario, result)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("snapshot error: %v", err))
	}

	goldenPath := goldenFilePath(file)
	if opts.Update {
		if err := writeGolden(goldenPath, snapshot); err != nil {
			return fail(scenario.Name, fmt.Sprintf("golden update error: %v", err))
		}
		if !result.Pass {
			return fail(scenario.Name, result.Errors...)
		}
		return pass(scenario.Name, " (golden updated)")
	}

	if golden, err := os.ReadFile(goldenPath); err == nil {
		if string(golden) != string(snapshot) {
			return fail(scenario.Name, "trace does not match golden file (run with --update to regenerate)")
		}
	} else if !os.IsNotExist(err) {
		return fail(scenario.Name, fmt.Sprintf("golden read error: %v", err))
	}

	if !result.Pass {
		return fail(scenario.Name, result.Errors...)
	}
	return pass(scenario.Name, "")
}

// goldenFilePath returns golden/<name>.golden next to the scenario file.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// reportRun writes the run summary. Text mode has already printed one
// line per scenario.
func reportRun(cmd *cobra.Command, opts *RunOptions, result RunResult) error {
	text := func(w io.Writer) {
		if result.Total == 0 {
			fmt.Fprintln(w, "No scenarios found.")
			return
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		if result.Failed == 0 {
			fmt.Fprintln(w, "✓ All scenarios passed")
		}
	}

	out := opts.formatter(cmd)
	if result.Failed == 0 {
		return out.Success(result, text)
	}
	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := out.Failure(CodeScenarioFailed, msg, result, text); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}
