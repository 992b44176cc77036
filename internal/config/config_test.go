package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAMLMissingFileIsNotError(t *testing.T) {
	cfg, err := LoadYAML(Default(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geodnsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("udp_addr: \":5300\"\nmax_cname_depth: 4\n"), 0o644))

	cfg, err := LoadYAML(Default(), path)
	require.NoError(t, err)
	require.Equal(t, ":5300", cfg.UDPAddr)
	require.Equal(t, 4, cfg.MaxCNAMEDepth)
	require.Equal(t, Default().TCPAddr, cfg.TCPAddr)
}

func TestValidateRejectsBadListenerCount(t *testing.T) {
	cfg := Default()
	cfg.UDPListeners = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadAdvertisedSize(t *testing.T) {
	cfg := Default()
	cfg.AdvertisedUDPSize = 100
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyZoneDir(t *testing.T) {
	cfg := Default()
	cfg.ZoneDir = ""
	require.Error(t, cfg.Validate())
}
