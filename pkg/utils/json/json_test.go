package json

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID     string    `json:"id"`
	Page   *int      `json:"page,omitempty"`
	Vector []float32 `json:"vector"`
}

func TestRoundTrip(t *testing.T) {
	page := 3
	in := []entry{{ID: "0", Page: &page, Vector: []float32{0.25, -1, 3.5}}, {ID: "1", Vector: []float32{}}}

	data, err := Marshal(in)
	require.NoError(t, err)
	assert.NotContains(t, string(data[bytes.Index(data, []byte(`"1"`)):]), "page")

	var out []entry
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]int{"k": 4}))

	var out map[string]int
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, 4, out["k"])
}

func TestBackend(t *testing.T) {
	want := "encoding/json"
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		want = "sonic"
	}
	assert.Equal(t, want, Backend())
}

func TestStdBackendMatchesSonic(t *testing.T) {
	in := map[string][]float32{"v": {0.5, -2}}
	sonicData, err := Marshal(in)
	require.NoError(t, err)

	restore := useSonic
	if Backend() != "sonic" {
		restore = useStd
	}
	t.Cleanup(restore)
	useStd()
	stdData, err := Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, string(sonicData), string(stdData))
	assert.Equal(t, "encoding/json", Backend())
}
