package dnsfrontend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverrideFirstPatternWins(t *testing.T) {
	o := overrides{
		{Pattern: "*.example.lan", IP: "10.0.0.5"},
		{Pattern: "host.example.lan", IP: "10.0.0.9"},
	}
	ip, ok := o.lookup("host.example.lan.")
	require.True(t, ok)
	require.Equal(t, "10.0.0.5", ip.String())
}

func TestOverrideNoMatch(t *testing.T) {
	o := overrides{{Pattern: "*.example.lan", IP: "10.0.0.5"}}
	_, ok := o.lookup("unrelated.com.")
	require.False(t, ok)
}

func TestOverrideCaseInsensitive(t *testing.T) {
	o := overrides{{Pattern: "*.Example.LAN", IP: "10.0.0.5"}}
	_, ok := o.lookup("Host.example.lan.")
	require.True(t, ok)
}

