// Package config loads the settings of the command line tool. Values come,
// in increasing priority, from defaults, an optional YAML file, ZBRA_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZaninAndrea/zbra/internal/logging"
	"github.com/ZaninAndrea/zbra/internal/source"
	"github.com/ZaninAndrea/zbra/pkg/archive"
	"github.com/ZaninAndrea/zbra/pkg/compression"
)

const EnvPrefix = "ZBRA"

// minPartSize is the smallest part S3 accepts in a multipart upload.
const minPartSize = 5 << 20

const (
	KeyLogLevel             = "log.level"
	KeyLogFormat            = "log.format"
	KeyCompressionAlgorithm = "compression.algorithm"
	KeyCompressionLevel     = "compression.level"
	KeyChunkRows            = "chunk_rows"
	KeyS3Region             = "s3.region"
	KeyS3Endpoint           = "s3.endpoint"
	KeyS3PathStyle          = "s3.path_style"
	KeyS3PartSize           = "s3.part_size"
	KeyS3AccessKeyID        = "s3.access_key_id"
	KeyS3SecretAccessKey    = "s3.secret_access_key"
	KeyOverrides            = "overrides"
)

// flagKeys maps persistent flag names to configuration keys.
var flagKeys = map[string]string{
	"log-level":     KeyLogLevel,
	"log-format":    KeyLogFormat,
	"compression":   KeyCompressionAlgorithm,
	"level":         KeyCompressionLevel,
	"chunk-rows":    KeyChunkRows,
	"s3-region":     KeyS3Region,
	"s3-endpoint":   KeyS3Endpoint,
	"s3-path-style": KeyS3PathStyle,
}

// override is one entry of the overrides list. Column paths are case
// sensitive, so they are values rather than mapping keys.
type override struct {
	Path      string `mapstructure:"path"`
	Algorithm string `mapstructure:"algorithm"`
	Level     int    `mapstructure:"level"`
}

type Config struct {
	Log     logging.Config
	Archive archive.Config
	S3      source.S3Config
}

// New returns a viper instance holding the defaults and reading the
// environment.
func New() *viper.Viper {
	v := viper.New()

	logDefaults := logging.DefaultConfig()
	archiveDefaults := archive.DefaultConfig()
	v.SetDefault(KeyLogLevel, logDefaults.Level)
	v.SetDefault(KeyLogFormat, logDefaults.Format)
	v.SetDefault(KeyCompressionAlgorithm, archiveDefaults.Algorithm.String())
	// Level 0 picks the default of whichever algorithm is selected.
	v.SetDefault(KeyCompressionLevel, 0)
	v.SetDefault(KeyChunkRows, archiveDefaults.ChunkRows)
	v.SetDefault(KeyS3PathStyle, false)
	v.SetDefault(KeyS3PartSize, 0)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AllSettings only lists keys viper already knows about.
	for _, key := range []string{KeyS3Region, KeyS3Endpoint, KeyS3AccessKeyID, KeyS3SecretAccessKey} {
		v.BindEnv(key)
	}
	return v
}

// BindFlags registers the persistent flags on cmd and binds them to v.
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (console, json)")
	flags.String("compression", "", "block compression (none, zstd, lz4, snappy)")
	flags.Int("level", 0, "compression level")
	flags.Int("chunk-rows", 0, "rows per archive chunk, 0 for a single chunk")
	flags.String("s3-region", "", "AWS region for s3:// locations")
	flags.String("s3-endpoint", "", "custom S3 endpoint")
	flags.Bool("s3-path-style", false, "use path style S3 addressing")

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the configuration file, if any, and decodes the settings.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	algorithm, err := compression.ParseAlgorithm(v.GetString(KeyCompressionAlgorithm))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyCompressionAlgorithm, err)
	}
	chunkRows := v.GetInt(KeyChunkRows)
	if chunkRows < 0 {
		return Config{}, fmt.Errorf("invalid %s: %d is negative", KeyChunkRows, chunkRows)
	}
	partSize := v.GetInt64(KeyS3PartSize)
	if partSize != 0 && partSize < minPartSize {
		return Config{}, fmt.Errorf("invalid %s: %d is below the S3 minimum of %d bytes", KeyS3PartSize, partSize, minPartSize)
	}

	cfg := Config{
		Log: logging.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		Archive: archive.Config{
			Compression: archive.Compression{
				Algorithm: algorithm,
				Level:     v.GetInt(KeyCompressionLevel),
			},
			ChunkRows: chunkRows,
		},
		S3: source.S3Config{
			Region:          v.GetString(KeyS3Region),
			Endpoint:        v.GetString(KeyS3Endpoint),
			UsePathStyle:    v.GetBool(KeyS3PathStyle),
			PartSize:        partSize,
			AccessKeyID:     v.GetString(KeyS3AccessKeyID),
			SecretAccessKey: v.GetString(KeyS3SecretAccessKey),
		},
	}

	var overrides []override
	if err := v.UnmarshalKey(KeyOverrides, &overrides); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyOverrides, err)
	}
	for _, o := range overrides {
		if _, dup := cfg.Archive.Overrides[o.Path]; dup {
			return Config{}, fmt.Errorf("invalid %s: column %q listed twice", KeyOverrides, o.Path)
		}
		algorithm, err := compression.ParseAlgorithm(o.Algorithm)
		if err != nil {
			return Config{}, fmt.Errorf("invalid override for column %q: %w", o.Path, err)
		}
		if cfg.Archive.Overrides == nil {
			cfg.Archive.Overrides = make(map[string]archive.Compression, len(overrides))
		}
		cfg.Archive.Overrides[o.Path] = archive.Compression{Algorithm: algorithm, Level: o.Level}
	}

	if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
		return Config{}, errors.New("s3 credentials need both access_key_id and secret_access_key")
	}
	return cfg, nil
}
