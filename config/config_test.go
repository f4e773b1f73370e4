package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestMySQLConfig_DSN(t *testing.T) {
	c := MySQLConfig{
		Host:     "localhost",
		Port:     3306,
		Database: "smsflow",
		Username: "root",
		Password: "1",
		Options: []MySQLOption{
			{Key: "multiStatements", Value: "true"},
		},
	}

	parsed, err := mysql.ParseDSN(c.DSN())
	assert.Equal(t, nil, err)

	assert.Equal(t, "root", parsed.User)
	assert.Equal(t, "1", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "localhost:3306", parsed.Addr)
	assert.Equal(t, "smsflow", parsed.DBName)
	assert.Equal(t, true, parsed.ParseTime)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Equal(t, true, parsed.MultiStatements)
}

func TestLoadTestConfig_Defaults_And_Env(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.test.yml"), []byte(`
mysql:
  host: localhost
  port: 3306
webhook:
  secret: some-secret
`), 0o644)
	assert.Equal(t, nil, err)

	t.Setenv("SMSFLOW_RECONCILE_MAX_PAGES", "7")

	conf := LoadTestConfig(dir)

	assert.Equal(t, "localhost", conf.MySQL.Host)
	assert.Equal(t, "some-secret", conf.Webhook.Secret)
	assert.Equal(t, "X-Signature", conf.Webhook.SignatureHeader)
	assert.Equal(t, 3, conf.Gateway.MaxAttempts)
	assert.Equal(t, 30*time.Second, conf.Gateway.RequestTimeout)
	assert.Equal(t, int64(100), conf.ABTest.MinSendsPerVariant)
	assert.Equal(t, 7, conf.Reconcile.MaxPages)
	assert.Equal(t, "America/New_York", conf.DefaultTimezone)

	assert.Equal(t, "smsflow:lease:", conf.Memcache.KeyPrefix)
	assert.Equal(t, 10*time.Second, conf.Memcache.RetryDuration)
	assert.Equal(t, 30*time.Minute, conf.MySQL.ConnMaxLifetime)
}

func TestMemcacheConfig_Addr(t *testing.T) {
	c := MemcacheConfig{Host: "localhost", Port: 11211}
	assert.Equal(t, "localhost:11211", c.Addr())
}

func TestServerListen(t *testing.T) {
	s := ServerListen{Host: "localhost", Port: 10080}
	assert.Equal(t, "localhost:10080", s.String())
	assert.Equal(t, ":10080", s.ListenString())
}
