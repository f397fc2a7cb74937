// Package pool provides worker pool options.
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/contract-assistant/pkg/infra/pool"
	"github.com/kart-io/contract-assistant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options sizes the pool used for document loading.
type Options struct {
	Capacity       int           `json:"capacity" mapstructure:"capacity"`
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	Nonblocking    bool          `json:"nonblocking" mapstructure:"nonblocking"`
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{
		Capacity:       8,
		ExpiryDuration: 10 * time.Second,
	}
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.Capacity, p+"capacity", o.Capacity, "Maximum concurrent loader goroutines.")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.BoolVar(&o.Nonblocking, p+"nonblocking", o.Nonblocking, "Fail instead of waiting when the pool is full.")
}

// Validate validates the pool options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Capacity <= 0 {
		return []error{fmt.Errorf("pool.capacity must be positive")}
	}
	return nil
}

// PoolConfig converts the options into a pool.Config.
func (o *Options) PoolConfig() *pool.Config {
	return &pool.Config{
		Capacity:       o.Capacity,
		ExpiryDuration: o.ExpiryDuration,
		Nonblocking:    o.Nonblocking,
	}
}
