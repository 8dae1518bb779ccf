package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZaninAndrea/zbra/pkg/archive"
	"github.com/ZaninAndrea/zbra/pkg/schema"
)

func newInfoCommand(a *app) *cobra.Command {
	var headerOnly bool

	cmd := &cobra.Command{
		Use:   "info <archive>",
		Short: "Describe the header and chunks of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.info(cmd, args[0], headerOnly)
		},
	}
	cmd.Flags().BoolVar(&headerOnly, "header", false, "print only the header, without reading the chunks")
	return cmd
}

func (a *app) info(cmd *cobra.Command, input string, headerOnly bool) error {
	rc, err := a.store.Open(cmd.Context(), input)
	if err != nil {
		return err
	}
	defer rc.Close()

	r, err := archive.NewReader(rc, archive.WithLogger(a.log))
	if err != nil {
		return fail("read", input, err)
	}

	text, err := schema.MarshalTable(r.Schema())
	if err != nil {
		return fail("read", input, err)
	}

	out := cmd.OutOrStdout()
	cfg := r.Config()
	fmt.Fprintf(out, "format:      zbra v%d\n", archive.FormatVersion)
	fmt.Fprintf(out, "schema:      %s\n", text)
	fmt.Fprintf(out, "compression: %s\n", describeCompression(cfg.Compression))
	fmt.Fprintf(out, "chunk rows:  %d\n", cfg.ChunkRows)
	fmt.Fprintln(out, "columns:")
	if err := writeColumns(out, r.Schema(), cfg); err != nil {
		return err
	}

	if headerOnly {
		return nil
	}

	chunks, rows := 0, 0
	for res := range r.Chunks() {
		chunk, err := res.Get()
		if err != nil {
			return fail("read", input, err)
		}
		chunks++
		rows += chunk.RowCount()
	}
	fmt.Fprintf(out, "chunks:      %d\n", chunks)
	fmt.Fprintf(out, "rows:        %d\n", rows)
	return nil
}

func writeColumns(out io.Writer, s schema.Table, cfg archive.Config) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, path := range archive.ColumnPaths(s) {
		name := path
		if name == "" {
			name = "(rows)"
		}
		c := cfg.Compression
		if o, ok := cfg.Overrides[path]; ok {
			c = o
		}
		fmt.Fprintf(w, "  %s\t%s\n", name, describeCompression(c))
	}
	return w.Flush()
}

func describeCompression(c archive.Compression) string {
	if c.Level == 0 {
		return c.Algorithm.String()
	}
	return fmt.Sprintf("%s level %d", c.Algorithm, c.Level)
}
