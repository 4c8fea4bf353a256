package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dns_settings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsListenPort(t *testing.T) {
	path := writeSettings(t, `{
		"listen_ip": "0.0.0.0",
		"upstreams": [{"address": "8.8.8.8", "enable_udp": true, "is_domestic": false}]
	}`)
	s, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, defaultListenPort, s.ListenPort)
}

func TestLoadDropsTransportlessUpstream(t *testing.T) {
	path := writeSettings(t, `{
		"listen_ip": "0.0.0.0",
		"upstreams": [
			{"address": "114.114.114.114", "is_domestic": true},
			{"address": "8.8.8.8", "enable_udp": true, "is_domestic": false}
		]
	}`)
	s, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, s.Upstreams, 1)
	require.Equal(t, "8.8.8.8", s.Upstreams[0].Address)
}

func TestLoadFailsWhenNoUpstreamUsable(t *testing.T) {
	path := writeSettings(t, `{"listen_ip": "0.0.0.0", "upstreams": [{"address": "8.8.8.8"}]}`)
	_, err := Load(context.Background(), path)
	require.Error(t, err)
}

func TestCustomHostsPreserveOrder(t *testing.T) {
	path := writeSettings(t, `{
		"listen_ip": "0.0.0.0",
		"upstreams": [{"address": "8.8.8.8", "enable_udp": true}],
		"custom_hosts": {"*.example.lan": "10.0.0.5", "host.example.lan": "10.0.0.9"}
	}`)
	s, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, s.CustomHosts, 2)
	require.Equal(t, "*.example.lan", s.CustomHosts[0].Pattern)
	require.Equal(t, "host.example.lan", s.CustomHosts[1].Pattern)
}

func TestTransferOnlyReadsEnv(t *testing.T) {
	s := &Settings{}
	require.False(t, s.TransferOnly())

	t.Setenv("TRANSFER_ONLY", "1")
	require.True(t, s.TransferOnly())
}
