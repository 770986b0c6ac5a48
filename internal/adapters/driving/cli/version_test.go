package cli

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	prev := version
	t.Cleanup(func() { version, verbose = prev, false })

	t.Run("prints the stamped version", func(t *testing.T) {
		resetFlags()
		version = "1.4.0"
		out, err := execute("version")
		require.NoError(t, err)
		assert.Equal(t, "vconsearch version 1.4.0\n", out)
	})

	t.Run("defaults to dev", func(t *testing.T) {
		resetFlags()
		version = "dev"
		out, err := execute("version")
		require.NoError(t, err)
		assert.Contains(t, out, "vconsearch version dev")
	})

	t.Run("verbose adds the toolchain", func(t *testing.T) {
		resetFlags()
		version = "dev"
		out, err := execute("version", "--verbose")
		require.NoError(t, err)
		assert.Contains(t, out, "go: "+runtime.Version())
	})
}
