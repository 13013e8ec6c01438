package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/speciate/internal/pregen"
	"github.com/roach88/speciate/internal/store"
)

// UnitsOptions holds flags for the units command.
type UnitsOptions struct {
	*RootOptions
	Database string
	Bundles  bool
	Bundle   string
	Species  bool
}

// UnitRow is one listed unit.
type UnitRow struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Shape   string `json:"shape"`
	Digest  string `json:"digest"`
	Backend string `json:"backend"`
}

// NewUnitsCommand creates the units command.
func NewUnitsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnitsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "units",
		Short: "List the unit catalogue",
		Long: `List units, bundles or record layouts stored by pregen.

By default every unit name is listed once, sorted by name. Use --bundles to
list bundles in insertion order, --bundle <id> to list the units of one
bundle (its digest is verified), and --species to list stored layouts.

Examples:
  speciate units --db units.db
  speciate units --db units.db --bundles
  speciate units --db units.db --bundle 0190a0d2-... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnits(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the unit catalogue (required)")
	cmd.Flags().BoolVar(&opts.Bundles, "bundles", false, "list bundles instead of units")
	cmd.Flags().StringVar(&opts.Bundle, "bundle", "", "list the units of one bundle")
	cmd.Flags().BoolVar(&opts.Species, "species", false, "list stored record layouts")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runUnits(opts *UnitsOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("catalogue not found: %s", opts.Database), err)
	}
	st, err := store.Open(opts.Database, store.WithLogger(slog.Default()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalogue", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing catalogue", "error", closeErr)
		}
	}()

	ctx := commandContext(cmd)
	out := opts.formatter(cmd)
	switch {
	case opts.Bundles:
		return listBundles(ctx, st, out)
	case opts.Bundle != "":
		return listBundle(ctx, st, out, opts.Bundle)
	case opts.Species:
		return listSpecies(ctx, st, out)
	}

	units, err := st.ReadUnits(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read units", err)
	}
	rows := make([]UnitRow, len(units))
	for i, u := range units {
		rows[i] = UnitRow{Name: u.Name, Kind: string(u.Kind), Shape: u.Shape, Digest: u.Digest, Backend: u.Backend}
	}
	return out.Success(rows, func(w io.Writer) {
		writeUnitRows(w, rows)
	})
}

func listBundles(ctx context.Context, st *store.Store, out *OutputFormatter) error {
	infos, err := st.ReadBundles(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read bundles", err)
	}
	return out.Success(infos, func(w io.Writer) {
		if len(infos) == 0 {
			fmt.Fprintln(w, "No bundles stored.")
			return
		}
		for _, b := range infos {
			fmt.Fprintf(w, "%d %s %-17s units=%d skipped=%d digest=%s\n",
				b.Seq, b.ID, b.Section, b.Units, b.Skipped, shortDigest(b.Digest))
		}
	})
}

func listBundle(ctx context.Context, st *store.Store, out *OutputFormatter, id string) error {
	b, err := st.ReadBundle(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("bundle not found: %s", id), err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read bundle", err)
	}
	rows := make([]UnitRow, len(b.Units))
	for i, u := range b.Units {
		rows[i] = UnitRow{Name: u.Name, Kind: string(u.Kind), Shape: u.Shape, Digest: u.Digest, Backend: u.Backend}
	}
	return out.Success(rows, func(w io.Writer) {
		fmt.Fprintf(w, "Bundle %s (%s) digest=%s\n", b.ID, b.Section, shortDigest(b.Digest))
		writeUnitRows(w, rows)
		for _, s := range b.Skipped {
			fmt.Fprintf(w, "  ✗ %s: %s\n", s.Name, s.Error)
		}
	})
}

func listSpecies(ctx context.Context, st *store.Store, out *OutputFormatter) error {
	layouts, err := st.ReadSpecies(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read species", err)
	}
	if layouts == nil {
		layouts = []pregen.Layout{}
	}
	return out.Success(layouts, func(w io.Writer) {
		for _, l := range layouts {
			fmt.Fprintf(w, "%q %s\n", l.Key, l.Name)
		}
	})
}

func storeSpecies(ctx context.Context, path string, layouts []pregen.Layout) error {
	st, err := store.Open(path, store.WithLogger(slog.Default()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalogue", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing catalogue", "error", closeErr)
		}
	}()
	if err := st.WriteSpecies(ctx, layouts...); err != nil {
		return WrapExitError(ExitFailure, "failed to store species", err)
	}
	return nil
}

func writeUnitRows(w io.Writer, rows []UnitRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No units stored.")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s  %s  %s\n", r.Name, shortDigest(r.Digest), r.Backend)
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
