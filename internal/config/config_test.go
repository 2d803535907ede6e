package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-p2p/internal/config"
)

func TestInitConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		datadir := t.TempDir()
		t.Setenv("TDEXP2P_DATADIR", datadir)
		t.Setenv("TDEXP2P_P2P_LISTENING_PORT", "19945")

		require.NoError(t, config.InitConfig())
		require.Equal(t, datadir, config.GetDatadir())
		require.Equal(t, config.DBBadger, config.GetString(config.DBTypeKey))
		require.Equal(t, "/ip4/127.0.0.1/tcp/19945", config.GetString(config.NodeAddressKey))
		require.Equal(t, 10*time.Minute, config.GetSeconds(config.TradeTimeoutKey))
		require.Equal(t, 5*time.Second, config.GetMilliseconds(config.ConfirmationPollIntervalKey))
		require.Empty(t, config.GetStringSlice(config.SeedNodesKey))
		require.DirExists(t, filepath.Join(datadir, config.DbLocation))
	})

	t.Run("seed nodes", func(t *testing.T) {
		t.Setenv("TDEXP2P_DATADIR", t.TempDir())
		t.Setenv(
			"TDEXP2P_SEED_NODES",
			"/ip4/10.0.0.1/tcp/9945, /dns4/seed.tdex.network/tcp/9945",
		)

		require.NoError(t, config.InitConfig())
		require.Equal(t, []string{
			"/ip4/10.0.0.1/tcp/9945", "/dns4/seed.tdex.network/tcp/9945",
		}, config.GetStringSlice(config.SeedNodesKey))
	})

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown db type", "TDEXP2P_DB_TYPE", "postgres"},
		{"invalid node address", "TDEXP2P_NODE_ADDRESS", "127.0.0.1:9945"},
		{"invalid seed node", "TDEXP2P_SEED_NODES", "seed:9945"},
		{"zero trade timeout", "TDEXP2P_TRADE_TIMEOUT", "0"},
		{"negative rate limit", "TDEXP2P_GETDATA_REQUESTS_PER_SECOND", "-1"},
		{"response size above message cap", "TDEXP2P_MAX_GETDATA_RESPONSE_SIZE", "16777216"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TDEXP2P_DATADIR", t.TempDir())
			t.Setenv(tt.key, tt.value)
			require.Error(t, config.InitConfig())
		})
	}
}

func TestGetNodeKey(t *testing.T) {
	datadir := t.TempDir()
	t.Setenv("TDEXP2P_DATADIR", datadir)
	require.NoError(t, config.InitConfig())

	key, err := config.GetNodeKey()
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(datadir, config.NodeKeyFile))

	sameKey, err := config.GetNodeKey()
	require.NoError(t, err)
	require.Equal(t, key, sameKey)

	err = os.WriteFile(filepath.Join(datadir, config.NodeKeyFile), []byte("nope"), 0600)
	require.NoError(t, err)
	_, err = config.GetNodeKey()
	require.Error(t, err)
}
