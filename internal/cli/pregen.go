package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/lform"
	"github.com/roach88/speciate/internal/pregen"
	"github.com/roach88/speciate/internal/profile"
	"github.com/roach88/speciate/internal/species"
	"github.com/roach88/speciate/internal/store"
)

// PregenOptions holds flags for the pregen command.
type PregenOptions struct {
	*RootOptions
	Profile  string
	Section  string
	Backend  string
	Database string
	Output   string
	Package  string
	Strict   bool

	// IDs overrides the bundle id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs pregen.IDGenerator
}

// PregenResult is the summary printed after a bundle is generated.
type PregenResult struct {
	ID        string        `json:"id"`
	Section   string        `json:"section"`
	Container string        `json:"container"`
	Digest    string        `json:"digest"`
	Units     []string      `json:"units"`
	Layouts   []string      `json:"layouts"`
	Skipped   []pregen.Skip `json:"skipped,omitempty"`
	Stored    bool          `json:"stored"`
	Output    string        `json:"output,omitempty"`
}

// NewPregenCommand creates the pregen command.
func NewPregenCommand(rootOpts *RootOptions) *cobra.Command {
	return newPregenCommand(&PregenOptions{RootOptions: rootOpts})
}

func newPregenCommand(opts *PregenOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pregen",
		Short: "Pregenerate a bundle of units",
		Long: `Generate a bundle of uniquely named units and record layouts.

The profile (CUE) lists the call shapes and signature keys to generate for;
without one only the basic forms are generated. Units rejected by the
backend are reported as skipped.

Sections:
  all                every section below
  basic-forms        zero and identity forms for every basic type
  direct-holder      direct forms for the profile's direct shapes
  delegating-holder  reinvoker and delegate forms for the delegating shapes
  invokers-holder    invoker and call site forms for the invoker and call site shapes
  species            record layouts for the profile's signature keys

Examples:
  speciate pregen
  speciate pregen --profile tuning.cue --db units.db
  speciate pregen --profile tuning.cue --backend source -o holder_gen.go`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPregen(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE profile file or directory")
	cmd.Flags().StringVar(&opts.Section, "section", string(pregen.SectionAll), "section to generate")
	cmd.Flags().StringVar(&opts.Backend, "backend", "closure", "code generation backend (closure|source)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store the bundle in this unit catalogue")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write generated Go source to this file (source backend)")
	cmd.Flags().StringVar(&opts.Package, "package", "holder", "package name of the generated Go source")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail when any unit is skipped")

	return cmd
}

func runPregen(opts *PregenOptions, cmd *cobra.Command) error {
	p := profile.Default()
	if opts.Profile != "" {
		loaded, err := profile.Load(opts.Profile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load profile", err)
		}
		p = loaded
		slog.Debug("profile loaded", "path", opts.Profile, "container", p.Container)
	}

	backend, err := newBackend(opts.Backend)
	if err != nil {
		return err
	}
	if opts.Output != "" && opts.Backend != "source" {
		return NewExitError(ExitCommandError, "--output requires --backend source")
	}

	bridgeOpts := append(p.BridgeOptions(), codegen.WithBackend(backend), codegen.WithLogger(slog.Default()))
	bridge := codegen.NewBridge(bridgeOpts...)
	cat := lform.NewCatalog(species.NewRegistry())
	genOpts := []pregen.Option{pregen.WithLogger(slog.Default())}
	if opts.IDs != nil {
		genOpts = append(genOpts, pregen.WithIDGenerator(opts.IDs))
	}
	gen := pregen.New(bridge, cat, genOpts...)

	bundle, err := generateSection(gen, pregen.Section(opts.Section), p.Request)
	if err != nil {
		return err
	}
	slog.Info("bundle generated",
		"id", bundle.ID,
		"section", bundle.Section,
		"units", len(bundle.Units),
		"skipped", len(bundle.Skipped))

	result := PregenResult{
		ID:        bundle.ID,
		Section:   string(bundle.Section),
		Container: bundle.Container,
		Digest:    bundle.Digest,
		Units:     bundle.Names(),
		Layouts:   make([]string, len(bundle.Layouts)),
		Skipped:   bundle.Skipped,
	}
	for i, l := range bundle.Layouts {
		result.Layouts[i] = l.Key
	}

	if opts.Database != "" {
		if err := storeBundle(commandContext(cmd), opts.Database, bundle); err != nil {
			return err
		}
		result.Stored = true
	}

	if opts.Output != "" {
		sources := make([]string, len(bundle.Layouts))
		for i, l := range bundle.Layouts {
			sources[i] = l.Source
		}
		data, err := codegen.RenderFile(opts.Package, sources, bundle.Units)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to render source", err)
		}
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		result.Output = opts.Output
	}

	text := func(w io.Writer) {
		writePregenText(w, result, opts.Verbose)
	}
	out := opts.formatter(cmd)
	if opts.Strict && len(bundle.Skipped) > 0 {
		msg := fmt.Sprintf("%d unit(s) skipped", len(bundle.Skipped))
		if err := out.Failure(CodeUnitsSkipped, msg, result, text); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return out.Success(result, text)
}

func newBackend(name string) (codegen.Backend, error) {
	switch name {
	case "closure":
		return codegen.NewClosureBackend(codegen.DefaultNameLimit), nil
	case "source":
		return codegen.NewSourceBackend(), nil
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown backend %q: must be closure or source", name))
}

func generateSection(gen *pregen.Generator, section pregen.Section, req pregen.Request) (*pregen.Bundle, error) {
	var (
		bundle *pregen.Bundle
		err    error
	)
	switch section {
	case pregen.SectionAll:
		bundle, err = gen.Generate(req)
	case pregen.SectionBasicForms:
		bundle, err = gen.BasicForms()
	case pregen.SectionDirect:
		bundle, err = gen.DirectHolder(req.Direct)
	case pregen.SectionDelegating:
		bundle, err = gen.DelegatingHolder(req.Delegating)
	case pregen.SectionInvokers:
		bundle, err = gen.InvokersHolder(req.Invokers, req.CallSites)
	case pregen.SectionSpecies:
		bundle, err = gen.ConcreteSpecies(req.Species)
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown section %q", section))
	}
	if err != nil {
		return nil, WrapExitError(ExitFailure, "pregeneration failed", err)
	}
	return bundle, nil
}

func storeBundle(ctx context.Context, path string, bundle *pregen.Bundle) error {
	st, err := store.Open(path, store.WithLogger(slog.Default()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalogue", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing catalogue", "error", closeErr)
		}
	}()
	if err := st.WriteBundle(ctx, bundle); err != nil {
		return WrapExitError(ExitFailure, "failed to store bundle", err)
	}
	slog.Debug("bundle stored", "db", path, "id", bundle.ID)
	return nil
}

func writePregenText(w io.Writer, r PregenResult, verbose bool) {
	fmt.Fprintf(w, "Bundle %s (%s)\n", r.ID, r.Section)
	fmt.Fprintf(w, "  container: %s\n", r.Container)
	fmt.Fprintf(w, "  digest:    %s\n", r.Digest)
	fmt.Fprintf(w, "  units:     %d\n", len(r.Units))
	fmt.Fprintf(w, "  layouts:   %d\n", len(r.Layouts))
	fmt.Fprintf(w, "  skipped:   %d\n", len(r.Skipped))
	if verbose {
		for _, name := range r.Units {
			fmt.Fprintf(w, "    %s\n", name)
		}
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  ✗ %s: %s\n", s.Name, s.Error)
	}
	if r.Stored {
		fmt.Fprintln(w, "✓ stored in catalogue")
	}
	if r.Output != "" {
		fmt.Fprintf(w, "✓ wrote %s\n", r.Output)
	}
}

// commandContext returns the command's context, or Background when the
// command runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
