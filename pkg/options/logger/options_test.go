package logger

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideDefaults(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--log.level", "debug", "--log.format", "json"}))
	require.NoError(t, o.Complete())

	assert.Equal(t, "DEBUG", o.Level)
	assert.Equal(t, "json", o.Format)
	assert.Empty(t, o.Validate())
}

func TestValidateRejectsUnknownLevel(t *testing.T) {
	o := NewOptions()
	o.Level = "LOUD"
	assert.NotEmpty(t, o.Validate())
}

func TestInit(t *testing.T) {
	o := NewOptions()
	o.OutputPaths = []string{"stderr"}
	assert.NoError(t, o.Init("contract-assistant"))
}
