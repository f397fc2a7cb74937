// Package logger configures the global kart-io/logger instance.
package logger

import (
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
	"github.com/kart-io/version"
	"github.com/spf13/pflag"
)

// Options are the log.* settings. Keys mirror the flag names so that config
// files and CONTRACT_ASSISTANT_LOG_* variables line up with the flags.
type Options struct {
	Engine      string   `json:"engine" mapstructure:"engine"`
	Level       string   `json:"level" mapstructure:"level"`
	Format      string   `json:"format" mapstructure:"format"`
	OutputPaths []string `json:"output-paths" mapstructure:"output-paths"`
	Development bool     `json:"development" mapstructure:"development"`

	// Rotation applies only to file outputs.
	MaxSize    int  `json:"max-size" mapstructure:"max-size"`
	MaxAge     int  `json:"max-age" mapstructure:"max-age"`
	MaxBackups int  `json:"max-backups" mapstructure:"max-backups"`
	Compress   bool `json:"compress" mapstructure:"compress"`
}

// NewOptions returns console logging at INFO to stdout.
func NewOptions() *Options {
	def := option.DefaultLogOption()
	return &Options{
		Engine:      def.Engine,
		Level:       "INFO",
		Format:      "console",
		OutputPaths: []string{"stdout"},
		MaxSize:     100,
		MaxAge:      15,
		MaxBackups:  10,
		Compress:    true,
	}
}

// AddFlags registers the log.* flags.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Engine, "log.engine", o.Engine, "Logging engine (zap, slog).")
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum level (DEBUG, INFO, WARN, ERROR).")
	fs.StringVar(&o.Format, "log.format", o.Format, "Output format (json, console).")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Log destinations: stdout, stderr or file paths.")
	fs.BoolVar(&o.Development, "log.development", o.Development, "Development mode with caller info and stack traces.")
	fs.IntVar(&o.MaxSize, "log.max-size", o.MaxSize, "Rotate log files at this size in MB.")
	fs.IntVar(&o.MaxAge, "log.max-age", o.MaxAge, "Days to keep rotated files.")
	fs.IntVar(&o.MaxBackups, "log.max-backups", o.MaxBackups, "Rotated files to keep.")
	fs.BoolVar(&o.Compress, "log.compress", o.Compress, "Gzip rotated files.")
}

// Complete normalizes the level.
func (o *Options) Complete() error {
	o.Level = strings.ToUpper(strings.TrimSpace(o.Level))
	if len(o.OutputPaths) == 0 {
		o.OutputPaths = []string{"stdout"}
	}
	return nil
}

// Validate checks the options against the logger's own rules.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	if err := o.logOption().Validate(); err != nil {
		return []error{fmt.Errorf("log: %w", err)}
	}
	return nil
}

// Init installs the global logger. Every entry carries service.name and
// service.version.
func (o *Options) Init(service string) error {
	opt := o.logOption()
	opt.AddInitialField("service.name", service)
	opt.AddInitialField("service.version", version.Get().GitVersion)

	l, err := logger.New(opt)
	if err != nil {
		return err
	}
	logger.SetGlobal(l)
	return nil
}

func (o *Options) logOption() *option.LogOption {
	opt := option.DefaultLogOption()
	opt.Engine = o.Engine
	opt.Level = o.Level
	opt.Format = o.Format
	opt.OutputPaths = o.OutputPaths
	opt.Development = o.Development
	opt.Rotation.MaxSize = o.MaxSize
	opt.Rotation.MaxAge = o.MaxAge
	opt.Rotation.MaxBackups = o.MaxBackups
	opt.Rotation.Compress = o.Compress
	return opt
}
