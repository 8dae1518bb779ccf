package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZaninAndrea/zbra"
	"github.com/ZaninAndrea/zbra/internal/fixture"
	"github.com/ZaninAndrea/zbra/pkg/archive"
	"github.com/ZaninAndrea/zbra/pkg/logical"
)

func newExampleCommand(a *app) *cobra.Command {
	var (
		rows int
		seed uint64
		to   string
	)

	cmd := &cobra.Command{
		Use:   "example <output>",
		Short: "Write a sample dataset of monitoring events",
		Long: `Example generates monitoring events covering every kind of column:
scalars, strings, arrays, maps, an enum with a payload-less variant and a
nested table. The output is a JSON document unless --to or a .zbra extension
asks for an archive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.example(cmd, args[0], to, rows, seed)
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 1000, "number of events")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&to, "to", "", "output format (json, archive)")
	return cmd
}

func (a *app) example(cmd *cobra.Command, output, to string, rows int, seed uint64) error {
	if rows < 0 {
		return fail("generate", output, errNegativeRows)
	}
	format, err := outputFormat(to, output, formatJSON)
	if err != nil {
		return err
	}

	s := fixture.Schema()
	events := fixture.Events(seed, rows)

	var out []byte
	switch format {
	case formatJSON:
		out, err = logical.FormatDocument(logical.Document{Schema: s, Data: events})
		if err != nil {
			return fail("format", output, err)
		}
	case formatArchive:
		table, err := zbra.ToStriped(s, events)
		if err != nil {
			return fail("convert", output, err)
		}
		out, err = zbra.EncodeBinary(s, table, a.archiveConfig(s), archive.WithLogger(a.log))
		if err != nil {
			return fail("encode", output, err)
		}
	}

	if err := a.store.WriteFile(cmd.Context(), output, out); err != nil {
		return err
	}
	a.log.Info("wrote example", zap.String("output", output), zap.Int("rows", rows), zap.Uint64("seed", seed))
	return nil
}
