// Package tracing configures OpenTelemetry spans for ingestion, retrieval and
// generation.
package tracing

import (
	"fmt"
	"time"

	"github.com/kart-io/version"
	"github.com/spf13/pflag"
)

// Exporter selects where finished spans go.
type Exporter string

const (
	ExporterOTLPGRPC Exporter = "otlp_grpc"
	ExporterOTLPHTTP Exporter = "otlp_http"
	ExporterStdout   Exporter = "stdout"
	ExporterNoop     Exporter = "noop"
)

// Options configures the tracer provider. Tracing is off unless Enabled.
type Options struct {
	Enabled     bool     `json:"enabled" mapstructure:"enabled"`
	ServiceName string   `json:"service-name" mapstructure:"service-name"`
	Environment string   `json:"environment" mapstructure:"environment"`
	Exporter    Exporter `json:"exporter" mapstructure:"exporter"`

	// Endpoint is host:port for otlp_grpc and otlp_http.
	Endpoint string            `json:"endpoint" mapstructure:"endpoint"`
	Insecure bool              `json:"insecure" mapstructure:"insecure"`
	Headers  map[string]string `json:"headers" mapstructure:"headers"`

	// SampleRatio applies to root spans; child spans follow their parent.
	SampleRatio   float64       `json:"sample-ratio" mapstructure:"sample-ratio"`
	BatchTimeout  time.Duration `json:"batch-timeout" mapstructure:"batch-timeout"`
	ExportTimeout time.Duration `json:"export-timeout" mapstructure:"export-timeout"`
}

// NewOptions returns disabled tracing with an OTLP/gRPC exporter preset.
func NewOptions() *Options {
	return &Options{
		ServiceName:   "contract-assistant",
		Environment:   "development",
		Exporter:      ExporterOTLPGRPC,
		Endpoint:      "localhost:4317",
		Insecure:      true,
		SampleRatio:   1.0,
		BatchTimeout:  5 * time.Second,
		ExportTimeout: 30 * time.Second,
	}
}

// AddFlags registers the tracing.* flags.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "tracing.enabled", o.Enabled, "Export OpenTelemetry spans.")
	fs.StringVar(&o.ServiceName, "tracing.service-name", o.ServiceName, "service.name resource attribute.")
	fs.StringVar(&o.Environment, "tracing.environment", o.Environment, "deployment.environment resource attribute.")
	fs.StringVar((*string)(&o.Exporter), "tracing.exporter", string(o.Exporter), "Span exporter (otlp_grpc, otlp_http, stdout, noop).")
	fs.StringVar(&o.Endpoint, "tracing.endpoint", o.Endpoint, "OTLP collector host:port.")
	fs.BoolVar(&o.Insecure, "tracing.insecure", o.Insecure, "Disable TLS towards the collector.")
	fs.StringToStringVar(&o.Headers, "tracing.headers", o.Headers, "Extra OTLP headers, key=value.")
	fs.Float64Var(&o.SampleRatio, "tracing.sample-ratio", o.SampleRatio, "Fraction of root spans sampled, 0 to 1.")
	fs.DurationVar(&o.BatchTimeout, "tracing.batch-timeout", o.BatchTimeout, "Maximum delay before a batch is exported.")
	fs.DurationVar(&o.ExportTimeout, "tracing.export-timeout", o.ExportTimeout, "Timeout of a single export.")
}

// Complete restores the default service name when it was cleared.
func (o *Options) Complete() error {
	if o.ServiceName == "" {
		o.ServiceName = "contract-assistant"
	}
	return nil
}

// Validate checks the options. Disabled tracing is always valid.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	switch o.Exporter {
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		if o.Endpoint == "" {
			errs = append(errs, fmt.Errorf("tracing.endpoint is required for %s", o.Exporter))
		}
	case ExporterStdout, ExporterNoop:
	default:
		errs = append(errs, fmt.Errorf("unknown tracing exporter %q", o.Exporter))
	}
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample-ratio must be within [0, 1], got %g", o.SampleRatio))
	}
	if o.BatchTimeout <= 0 || o.ExportTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tracing batch and export timeouts must be positive"))
	}
	return errs
}

func serviceVersion() string {
	if v := version.Get().GitVersion; v != "" {
		return v
	}
	return "unknown"
}
