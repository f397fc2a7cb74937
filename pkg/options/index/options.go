// Package index provides vector index storage options.
package index

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/contract-assistant/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Backend selects where retrieval runs.
type Backend string

const (
	// BackendLocal searches the in-memory index restored from Path.
	BackendLocal Backend = "local"
	// BackendMilvus mirrors each built index into Milvus and searches there.
	BackendMilvus Backend = "milvus"
)

// Options contains index persistence configuration.
type Options struct {
	// Path is the persisted index file.
	Path string `json:"path" mapstructure:"path"`

	// Backend is local or milvus.
	Backend Backend `json:"backend" mapstructure:"backend"`
}

// NewOptions creates Options with default values.
func NewOptions() *Options {
	return &Options{
		Path:    "data/contract_index.json",
		Backend: BackendLocal,
	}
}

// AddFlags adds flags for index options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "index."
	fs.StringVar(&o.Path, p+"path", o.Path, "Persisted vector index file.")
	fs.StringVar((*string)(&o.Backend), p+"backend", string(o.Backend), "Retrieval backend (local, milvus).")
}

// Validate validates the index options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Path == "" {
		errs = append(errs, fmt.Errorf("index.path is required"))
	}
	switch o.Backend {
	case BackendLocal, BackendMilvus:
	default:
		errs = append(errs, fmt.Errorf("index.backend %q is not one of local, milvus", o.Backend))
	}
	return errs
}

// UseMilvus reports whether the Milvus backend is selected.
func (o *Options) UseMilvus() bool {
	return o.Backend == BackendMilvus
}
