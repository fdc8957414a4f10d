package cmd

import (
	"bytes"
	"strings"
	"testing"

	"direxpo/pkg/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetArgs(nil)
	})
	require.NoError(t, RootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := runRoot(t, "version")
	assert.True(t, strings.HasPrefix(out, "direxpo version "+version.Version), out)
}

func TestVersionCommandShort(t *testing.T) {
	out := runRoot(t, "version", "--short")
	assert.Equal(t, version.Version+"\n", out)
}

func TestServeFlagsAreRegistered(t *testing.T) {
	for _, name := range []string{"addr", "output-dir", "max-size-mb", "gitignore"} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), name)
	}
	assert.NotNil(t, RootCmd.PersistentFlags().Lookup("debug"))
}
