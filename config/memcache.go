package config

import (
	"fmt"
	"time"
)

// MemcacheConfig for the memcached holding the job leases
type MemcacheConfig struct {
	Host          string        `mapstructure:"host"`
	Port          uint16        `mapstructure:"port"`
	NumConns      int           `mapstructure:"num_conns"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	RetryDuration time.Duration `mapstructure:"retry_duration"`
}

// Addr ...
func (c MemcacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
