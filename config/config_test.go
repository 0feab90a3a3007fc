package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
RPCAddress = "0.0.0.0:9000"
RPCToken = "secret"
DataDir = "/var/lib/stakehub"
Owner = "0x00000000000000000000000000000000000000aa"
ModuleAddress = "0x00000000000000000000000000000000000000ee"
ServiceName = "stakehubd"
Environment = "test"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, "secret", cfg.RPCToken)
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000aa"), cfg.OwnerAddress())
	require.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000ee"), cfg.Module())
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
Owner = "0x00000000000000000000000000000000000000aa"
ModuleAddress = "0x00000000000000000000000000000000000000ee"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, "stakehubd", cfg.ServiceName)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.FileExists(t, path)

	// The generated file carries no owner yet, so it must fail validation.
	require.Error(t, cfg.Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "missing owner", body: `
ModuleAddress = "0x00000000000000000000000000000000000000ee"
`},
		{name: "malformed owner", body: `
Owner = "not-an-address"
ModuleAddress = "0x00000000000000000000000000000000000000ee"
`},
		{name: "missing module address", body: `
Owner = "0x00000000000000000000000000000000000000aa"
`},
		{name: "zero module address", body: `
Owner = "0x00000000000000000000000000000000000000aa"
ModuleAddress = "0x0000000000000000000000000000000000000000"
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}
}
