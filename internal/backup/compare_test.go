package backup

import (
	"context"
	"testing"

	"github.com/hardenlabs/wslharden/internal/wsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	setHome(t)
	fake := wsl.NewFakeDistro(map[string]string{
		"/etc/environment": "PATH=/usr/bin\n",
	})
	cfg := testConfig(t)

	bundle, err := NewEngine(fake).Create(context.Background(), cfg, false)
	require.NoError(t, err)

	t.Run("NoChange", func(t *testing.T) {
		diff, err := Compare(context.Background(), fake, bundle, "environment")
		require.NoError(t, err)
		assert.Empty(t, diff)
	})

	t.Run("Mutated", func(t *testing.T) {
		fake.Files["/etc/environment"] = "PATH=/usr/bin\nhttp_proxy=http://proxy:3128\n"
		diff, err := Compare(context.Background(), fake, bundle, "environment")
		require.NoError(t, err)
		assert.Contains(t, diff, "+http_proxy=http://proxy:3128")
		assert.Contains(t, diff, "bundle/environment")
	})

	t.Run("AbsentAtBackupNowPresent", func(t *testing.T) {
		fake.Files["/etc/resolv.conf"] = "nameserver 10.0.0.53\n"
		diff, err := Compare(context.Background(), fake, bundle, "resolv-conf")
		require.NoError(t, err)
		assert.Contains(t, diff, "+nameserver 10.0.0.53")
	})

	t.Run("UnknownArtifact", func(t *testing.T) {
		_, err := Compare(context.Background(), fake, bundle, "nope")
		assert.Error(t, err)
	})
}
