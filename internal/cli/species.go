package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/speciate/internal/codegen"
	"github.com/roach88/speciate/internal/ir"
	"github.com/roach88/speciate/internal/pregen"
	"github.com/roach88/speciate/internal/species"
)

// SpeciesOptions holds flags for the species command.
type SpeciesOptions struct {
	*RootOptions
	Database  string
	MaxFields int
}

// SpeciesInfo describes one record layout.
type SpeciesInfo struct {
	Key    string   `json:"key"`
	Name   string   `json:"name"`
	Layout string   `json:"layout"`
	Fields []string `json:"fields"`
	Slots  []int    `json:"slots"`
	Source string   `json:"source"`
}

// NewSpeciesCommand creates the species command.
func NewSpeciesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SpeciesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "species <key>...",
		Short: "Describe record layouts for signature keys",
		Long: `Resolve signature keys through the specialization registry and print
the record layout of each: field types, per-type slots and Go source.

Keys use the characters L (reference), I (int32), J (int64), F (float32) and
D (float64). Use "" for the empty key.

Examples:
  speciate species LIJ
  speciate species L LL LLI --db units.db
  speciate species LIJ --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpecies(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "store the layouts in this unit catalogue")
	cmd.Flags().IntVar(&opts.MaxFields, "max-fields", ir.DefaultMaxKeyLength, "longest signature key accepted")

	return cmd
}

func runSpecies(opts *SpeciesOptions, keys []string, cmd *cobra.Command) error {
	if opts.MaxFields < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--max-fields must be at least 1, got %d", opts.MaxFields))
	}
	reg := species.NewRegistry(species.WithMaxFields(opts.MaxFields))

	infos := make([]SpeciesInfo, 0, len(keys))
	layouts := make([]pregen.Layout, 0, len(keys))
	for _, key := range keys {
		s, err := reg.Find(key)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid signature key %q", key), err)
		}
		src, err := codegen.SpeciesSource(s)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to render layout", err)
		}
		info := SpeciesInfo{
			Key:    s.Key(),
			Name:   s.Name(),
			Layout: codegen.LayoutType(s),
			Fields: make([]string, s.FieldCount()),
			Slots:  make([]int, s.FieldCount()),
			Source: src,
		}
		for i := range info.Fields {
			info.Fields[i] = s.FieldType(i).String()
			info.Slots[i] = s.Slot(i)
		}
		infos = append(infos, info)
		layouts = append(layouts, pregen.Layout{Key: s.Key(), Name: s.Name(), Source: src})
	}
	slog.Debug("species resolved", "keys", len(keys), "registry", reg.Len())

	if opts.Database != "" {
		if err := storeSpecies(commandContext(cmd), opts.Database, layouts); err != nil {
			return err
		}
	}

	return opts.formatter(cmd).Success(infos, func(w io.Writer) {
		for i, info := range infos {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%q %s\n", info.Key, info.Name)
			for j, f := range info.Fields {
				fmt.Fprintf(w, "  %d: %s slot %d\n", j, f, info.Slots[j])
			}
			fmt.Fprint(w, info.Source)
		}
	})
}
