package cli

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZaninAndrea/zbra"
	"github.com/ZaninAndrea/zbra/pkg/archive"
	"github.com/ZaninAndrea/zbra/pkg/logical"
	"github.com/ZaninAndrea/zbra/pkg/schema"
	"github.com/ZaninAndrea/zbra/pkg/striped"
)

const (
	formatJSON    = "json"
	formatArchive = "archive"
)

// outputFormat picks the format to write: the --to flag, then the output
// extension, then fallback.
func outputFormat(flag, output, fallback string) (string, error) {
	switch flag {
	case formatJSON, formatArchive:
		return flag, nil
	case "":
	default:
		return "", fmt.Errorf("unknown output format %q, expected %s or %s", flag, formatJSON, formatArchive)
	}

	switch filepath.Ext(output) {
	case ".json":
		return formatJSON, nil
	case ".zbra":
		return formatArchive, nil
	}
	return fallback, nil
}

func newConvertCommand(a *app) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert between JSON documents and archives",
		Long: `Convert reads a JSON document or an archive and writes the other form.
Use --to, or a .json or .zbra output extension, to choose the output format
explicitly; converting an archive to an archive recompresses it with the
configured settings.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.convert(cmd, args[0], args[1], to)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "output format (json, archive)")
	return cmd
}

func (a *app) convert(cmd *cobra.Command, input, output, to string) error {
	ctx := cmd.Context()

	data, err := a.store.ReadFile(ctx, input)
	if err != nil {
		return err
	}

	fallback := formatArchive
	if archive.IsArchive(data) {
		fallback = formatJSON
	}
	format, err := outputFormat(to, output, fallback)
	if err != nil {
		return err
	}

	s, table, err := a.load(input, data)
	if err != nil {
		return err
	}

	var out []byte
	switch format {
	case formatArchive:
		out, err = zbra.EncodeBinary(s, table, a.archiveConfig(s), archive.WithLogger(a.log))
		if err != nil {
			return fail("encode", output, err)
		}
	case formatJSON:
		rows, err := zbra.ToLogical(table)
		if err != nil {
			return fail("convert", input, err)
		}
		out, err = logical.FormatDocument(logical.Document{Schema: s, Data: rows})
		if err != nil {
			return fail("format", output, err)
		}
	}

	if err := a.store.WriteFile(ctx, output, out); err != nil {
		return err
	}

	a.log.Info("converted",
		zap.String("input", input),
		zap.String("output", output),
		zap.String("format", format),
		zap.Int("rows", table.RowCount()),
		zap.Int("input_bytes", len(data)),
		zap.Int("output_bytes", len(out)),
	)
	return nil
}

// archiveConfig returns the configured archive settings for s. Overrides for
// columns s does not have are dropped with a warning, so one configuration
// file can serve datasets of different shapes.
func (a *app) archiveConfig(s schema.Table) archive.Config {
	cfg := a.config.Archive
	if len(cfg.Overrides) == 0 {
		return cfg
	}

	paths := archive.ColumnPaths(s)
	cfg.Overrides = make(map[string]archive.Compression, len(a.config.Archive.Overrides))
	for path, o := range a.config.Archive.Overrides {
		if !slices.Contains(paths, path) {
			a.log.Warn("ignoring compression override for unknown column", zap.String("column", path))
			continue
		}
		cfg.Overrides[path] = o
	}
	return cfg
}

// load decodes an archive or parses a JSON document into its striped form.
func (a *app) load(location string, data []byte) (schema.Table, striped.Table, error) {
	if archive.IsArchive(data) {
		s, table, err := zbra.DecodeBinary(data, archive.WithLogger(a.log))
		if err != nil {
			return nil, nil, fail("decode", location, err)
		}
		return s, table, nil
	}

	doc, err := zbra.LoadLogical(data)
	if err != nil {
		return nil, nil, fail("parse", location, err)
	}
	table, err := zbra.ToStriped(doc.Schema, doc.Data)
	if err != nil {
		return nil, nil, fail("convert", location, err)
	}
	return doc.Schema, table, nil
}
