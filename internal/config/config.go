// Package config loads the tool configuration (YAML) and the user-editable
// JSON input files, checks their shape and hands typed objects to the rest
// of the pipeline.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eraatools/ucprep/internal/dataset"
)

// Config holds the tool-level configuration, as opposed to the per-run
// selection carried by the JSON files.
type Config struct {
	// root folder of the input dataset CSV files
	InputFolder string `yaml:"input_folder"`
	// folder receiving plots, CSV exports and JSON dumps
	OutputFolder string             `yaml:"output_folder"`
	FilesFormat  dataset.FileFormat `yaml:"files_format"`
	// maximal number of curves on one data-analysis plot
	NCurvesMax   int    `yaml:"n_curves_max"`
	LogLevel     string `yaml:"log_level"`
	DatabaseFile string `yaml:"database_file"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		InputFolder:  "data",
		OutputFolder: "output",
		FilesFormat:  dataset.DefaultFileFormat(),
		NCurvesMax:   6,
		LogLevel:     "info",
		DatabaseFile: "ucprep.db",
	}
}

// Load parses YAML bytes into a Config, filling missing fields with
// defaults.
func Load(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return applyDefaults(cfg), nil
}

// LoadFile reads and parses a YAML config file. A missing file yields the
// defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, err
	}
	return Load(data)
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.InputFolder == "" {
		cfg.InputFolder = def.InputFolder
	}
	if cfg.OutputFolder == "" {
		cfg.OutputFolder = def.OutputFolder
	}
	if cfg.FilesFormat.ColumnSep == "" {
		cfg.FilesFormat.ColumnSep = def.FilesFormat.ColumnSep
	}
	if cfg.FilesFormat.DecimalSep == "" {
		cfg.FilesFormat.DecimalSep = def.FilesFormat.DecimalSep
	}
	if cfg.NCurvesMax <= 0 {
		cfg.NCurvesMax = def.NCurvesMax
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = def.DatabaseFile
	}
	return cfg
}

// NewLogger builds the process logger at the requested level.
func NewLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(parsed)
	zapCfg.Encoding = "console"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapCfg.Build()
}
