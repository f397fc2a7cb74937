// Package milvusopts configures the optional Milvus retrieval backend.
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/contract-assistant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options are the milvus.* settings. They only matter with index.backend=milvus.
type Options struct {
	Address    string        `json:"address" mapstructure:"address"`
	Database   string        `json:"database" mapstructure:"database"`
	Username   string        `json:"username" mapstructure:"username"`
	Password   string        `json:"-" mapstructure:"password"`
	Collection string        `json:"collection" mapstructure:"collection"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`

	// InsertBatch is the number of chunks written per insert call.
	InsertBatch int `json:"insert-batch" mapstructure:"insert-batch"`
}

// NewOptions targets a local standalone Milvus.
func NewOptions() *Options {
	return &Options{
		Address:     "localhost:19530",
		Database:    "default",
		Collection:  "contract_chunks",
		Timeout:     30 * time.Second,
		InsertBatch: 512,
	}
}

// AddFlags registers the milvus.* flags.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus address, host:port.")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus user.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password.")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Collection mirroring the current chunk index. It is dropped on every ingest.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Connect timeout.")
	fs.IntVar(&o.InsertBatch, p+"insert-batch", o.InsertBatch, "Chunks written per insert call.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus.address is required"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("milvus.collection is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus.timeout must be positive"))
	}
	if o.InsertBatch <= 0 {
		errs = append(errs, fmt.Errorf("milvus.insert-batch must be positive"))
	}
	return errs
}
