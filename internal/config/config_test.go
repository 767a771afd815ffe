package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadString(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return Load(path)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadString(t, "{}")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 60, cfg.DNS.TTL)
	assert.Equal(t, 3600, cfg.DNS.SOATTL)
	assert.False(t, cfg.DNS.AnswerSOA)
	assert.Equal(t, 5, cfg.DNS.MaxHosts)
	assert.Equal(t, "127.0.0.1:8053", cfg.DNS.RemoteListen)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "http://localhost:8080", cfg.SMTP.BaseURL)
}

func TestLoadSuffixGetsLeadingDot(t *testing.T) {
	cfg, err := loadString(t, "dns:\n  suffix: dyn.example.com\n")
	require.NoError(t, err)
	assert.Equal(t, ".dyn.example.com", cfg.DNS.Suffix)

	cfg, err = loadString(t, "dns:\n  suffix: .dyn.example.com\n")
	require.NoError(t, err)
	assert.Equal(t, ".dyn.example.com", cfg.DNS.Suffix)
}

func TestLoadSMTPRequiresSender(t *testing.T) {
	_, err := loadString(t, "smtp:\n  enabled: true\n")
	assert.Error(t, err)
}

func TestLoadLDAPValidation(t *testing.T) {
	_, err := loadString(t, "ldap:\n  enabled: true\n")
	assert.Error(t, err)

	cfg, err := loadString(t, `
ldap:
  enabled: true
  url: ldaps://ldap.example.com
  bind_dn: cn=svc,dc=example,dc=com
  bind_password: secret
  base_dn: dc=example,dc=com
  user_group: cn=users,dc=example,dc=com
`)
	require.NoError(t, err)
	assert.Equal(t, "(sAMAccountName=%s)", cfg.LDAP.UserFilter)
	assert.Equal(t, "sAMAccountName", cfg.LDAP.UsernameAttr)
}

func TestLoadRoute53RequiresZones(t *testing.T) {
	_, err := loadString(t, "route53:\n  enabled: true\n")
	assert.Error(t, err)

	cfg, err := loadString(t, `
route53:
  enabled: true
  zones:
    dyn.example.com: Z123
`)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Route53.Region)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
