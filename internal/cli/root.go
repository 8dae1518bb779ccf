// Package cli implements the zbra command line tool.
package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ZaninAndrea/zbra/internal/config"
	"github.com/ZaninAndrea/zbra/internal/logging"
	"github.com/ZaninAndrea/zbra/internal/source"
)

var errNegativeRows = errors.New("row count must not be negative")

// app is the state shared by the subcommands, filled in before any of them
// runs.
type app struct {
	viper  *viper.Viper
	config config.Config
	log    *zap.Logger
	store  *source.Store
}

// NewRootCommand builds the command tree. Input, output and log streams are
// taken from the command, so tests can redirect them with SetIn, SetOut and
// SetErr.
func NewRootCommand() *cobra.Command {
	a := &app{viper: config.New()}

	root := &cobra.Command{
		Use:   "zbra",
		Short: "Convert and inspect zbra columnar archives",
		Long: `zbra converts datasets between JSON documents of the form
{"schema": ..., "data": ...} and compressed columnar archives.

Locations are local paths, "-" for the standard streams, or s3://bucket/key.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	// Registering flags on a fresh command only fails on duplicate names.
	if err := config.BindFlags(a.viper, root); err != nil {
		panic(err)
	}

	root.AddCommand(
		newConvertCommand(a),
		newValidateCommand(a),
		newInfoCommand(a),
		newExampleCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	a.config, err = config.Load(a.viper, file)
	if err != nil {
		return err
	}

	a.log, err = logging.New(a.config.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.log = a.log.With(zap.String("command", cmd.Name()))

	a.store = source.New(a.config.S3, a.log)
	a.store.Stdin = cmd.InOrStdin()
	a.store.Stdout = cmd.OutOrStdout()

	a.log.Debug("loaded configuration",
		zap.Stringer("algorithm", a.config.Archive.Algorithm),
		zap.Int("level", a.config.Archive.Level),
		zap.Int("chunk_rows", a.config.Archive.ChunkRows),
		zap.Int("overrides", len(a.config.Archive.Overrides)),
	)
	return nil
}

// fail wraps an error with the location it concerns.
func fail(action, location string, err error) error {
	return fmt.Errorf("%s %s: %w", action, location, err)
}
