package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesOverrides(t *testing.T) {
	path := writeConfig(t, `
[outstation]
outstation_address = 1024
master_address = 1
decode_level = object-headers
confirm_timeout = 3s
unsolicited_class1 = true
max_controls_per_request = 8
solicited_buffer_size = 512
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(1024), cfg.OutstationAddress)
	assert.Equal(t, uint16(1), cfg.MasterAddress)
	assert.Equal(t, 3*time.Second, cfg.ConfirmTimeout)
	assert.True(t, cfg.EnabledUnsolicitedClasses.Class1)
	assert.Equal(t, 8, cfg.MaxControlsPerRequest)
	assert.Equal(t, 512, cfg.SolicitedBufferSize)
}

func TestLoadRejectsOutOfRangeAddress(t *testing.T) {
	path := writeConfig(t, "[outstation]\noutstation_address = 70000\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBufferSizeOutOfRange(t *testing.T) {
	path := writeConfig(t, "[outstation]\nsolicited_buffer_size = 10\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadKeepsDefaultsWhenUnset(t *testing.T) {
	path := writeConfig(t, "[outstation]\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 2048, cfg.SolicitedBufferSize)
}
