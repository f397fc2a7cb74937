// Package json is the codec used for the index file, provider payloads and
// cache entries. It runs on sonic where sonic has a JIT and on encoding/json
// elsewhere.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

var (
	Marshal    func(v any) ([]byte, error)
	Unmarshal  func(data []byte, v any) error
	NewEncoder func(w io.Writer) Encoder
	NewDecoder func(r io.Reader) Decoder

	backend string
)

func init() {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		useSonic()
	default:
		useStd()
	}
}

func useSonic() {
	api := sonic.ConfigStd
	Marshal, Unmarshal = api.Marshal, api.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return api.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return api.NewDecoder(r) }
	backend = "sonic"
}

func useStd() {
	Marshal, Unmarshal = stdjson.Marshal, stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
	backend = "encoding/json"
}

// Backend names the active implementation: "sonic" or "encoding/json".
func Backend() string {
	return backend
}
