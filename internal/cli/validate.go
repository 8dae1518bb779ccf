package cli

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZaninAndrea/zbra"
	"github.com/ZaninAndrea/zbra/pkg/archive"
	"github.com/ZaninAndrea/zbra/pkg/logical"
	"github.com/ZaninAndrea/zbra/pkg/striped"
)

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <input>...",
		Short: "Check documents and archives against their schema",
		Long: `Validate checks that every row of a JSON document matches its schema.
Archives are decoded chunk by chunk: checksums, column invariants and the
schema of every decoded row are verified.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, input := range args {
				rows, err := a.validate(cmd, input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %d rows\n", input, rows)
			}
			return nil
		},
	}
}

func (a *app) validate(cmd *cobra.Command, input string) (int, error) {
	rc, err := a.store.Open(cmd.Context(), input)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	in := bufio.NewReader(rc)
	head, _ := in.Peek(len(archive.Magic(archive.FormatVersion)))
	if archive.IsArchive(head) {
		return a.validateArchive(input, in)
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return 0, fail("read", input, err)
	}
	doc, err := zbra.LoadLogical(data)
	if err != nil {
		return 0, fail("validate", input, err)
	}
	if err := zbra.Validate(doc.Schema, doc.Data); err != nil {
		return 0, fail("validate", input, err)
	}
	return doc.Data.Len(), nil
}

func (a *app) validateArchive(input string, in io.Reader) (int, error) {
	r, err := archive.NewReader(in, archive.WithLogger(a.log))
	if err != nil {
		return 0, fail("validate", input, err)
	}

	rows, chunks := 0, 0
	for res := range r.Chunks() {
		chunk, err := res.Get()
		if err != nil {
			return 0, fail("validate", input, err)
		}
		if err := validateChunk(r, chunk); err != nil {
			return 0, fail("validate", input, fmt.Errorf("chunk %d: %w", chunks, err))
		}
		rows += chunk.RowCount()
		chunks++
	}

	a.log.Debug("validated archive", zap.String("input", input), zap.Int("chunks", chunks), zap.Int("rows", rows))
	return rows, nil
}

func validateChunk(r *archive.Reader, chunk striped.Table) error {
	rows, err := striped.ToLogical(chunk)
	if err != nil {
		return err
	}
	return logical.Validate(r.Schema(), rows)
}
