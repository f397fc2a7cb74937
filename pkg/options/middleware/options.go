// Package middleware provides HTTP middleware configuration options.
package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/contract-assistant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options groups the middleware applied to every HTTP server.
type Options struct {
	CORS      *CORSOptions      `json:"cors" mapstructure:"cors"`
	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
}

// NewOptions creates Options with every middleware enabled.
func NewOptions() *Options {
	return &Options{
		CORS:      NewCORSOptions(),
		Recovery:  NewRecoveryOptions(),
		Logger:    NewLoggerOptions(),
		RequestID: NewRequestIDOptions(),
	}
}

// AddFlags adds flags for all middleware options.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.CORS.AddFlags(fs, prefixes...)
	o.Recovery.AddFlags(fs, prefixes...)
	o.Logger.AddFlags(fs, prefixes...)
	o.RequestID.AddFlags(fs, prefixes...)
}

// Validate validates all middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	errs = append(errs, o.CORS.Validate()...)
	errs = append(errs, o.Recovery.Validate()...)
	errs = append(errs, o.Logger.Validate()...)
	errs = append(errs, o.RequestID.Validate()...)
	return errs
}

// Complete fills in missing sections.
func (o *Options) Complete() error {
	if o.CORS == nil {
		o.CORS = NewCORSOptions()
	}
	if o.Recovery == nil {
		o.Recovery = NewRecoveryOptions()
	}
	if o.Logger == nil {
		o.Logger = NewLoggerOptions()
	}
	if o.RequestID == nil {
		o.RequestID = NewRequestIDOptions()
	}
	return nil
}
