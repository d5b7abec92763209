package util

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/gridsynapse/internal/config"
)

func TestLoadTLSConfigNil(t *testing.T) {
	cfg, err := LoadTLSConfig(nil)
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadTLSConfigWithoutFiles(t *testing.T) {
	cfg, err := LoadTLSConfig(&config.TLSConfig{})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Empty(t, cfg.Certificates)
	assert.Nil(t, cfg.RootCAs)
}

func TestLoadTLSConfigMissingCA(t *testing.T) {
	_, err := LoadTLSConfig(&config.TLSConfig{CA: filepath.Join(t.TempDir(), "ca.pem")})
	assert.ErrorContains(t, err, "failed to read CA certificate")
}

func TestLoadTLSConfigInvalidCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := LoadTLSConfig(&config.TLSConfig{CA: path})
	assert.ErrorContains(t, err, "failed to append CA certificate")
}

func TestLoadTLSConfigMissingKeyPair(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTLSConfig(&config.TLSConfig{
		Cert: filepath.Join(dir, "client.pem"),
		Key:  filepath.Join(dir, "client-key.pem"),
	})
	assert.ErrorContains(t, err, "failed to load client certificate")
}
