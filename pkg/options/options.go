// Package options holds the flag groups shared by every subcommand.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join builds a dotted flag prefix: Join("cache", "redis") is "cache.redis.".
// No prefixes yield "".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined == "" {
		return ""
	}
	return joined + "."
}

// IOptions is implemented by every prefixable flag group.
type IOptions interface {
	Validate() []error
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
