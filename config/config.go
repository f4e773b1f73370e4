package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application config
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Jaeger   JaegerConfig   `mapstructure:"jaeger"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Memcache MemcacheConfig `mapstructure:"memcache"`

	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Queue     QueueConfig     `mapstructure:"queue"`
	ABTest    ABTestConfig    `mapstructure:"abtest"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Recovery  RecoveryConfig  `mapstructure:"recovery"`
	Jobs      JobsConfig      `mapstructure:"jobs"`

	DefaultTimezone string `mapstructure:"default_timezone"`
}

// ServerListen for server listen config
type ServerListen struct {
	Host string `mapstructure:"host"`
	Port uint16 `mapstructure:"port"`
}

// ServerConfig ...
type ServerConfig struct {
	HTTP ServerListen `mapstructure:"http"`
}

// String ...
func (s ServerListen) String() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ListenString ...
func (s ServerListen) ListenString() string {
	return fmt.Sprintf(":%d", s.Port)
}

// JaegerConfig ...
type JaegerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Environment string `mapstructure:"environment"`
}

// GatewayConfig for the messaging provider REST API
type GatewayConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	APIKeyHeader   string        `mapstructure:"api_key_header"`
	DefaultSender  string        `mapstructure:"default_sender"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BaseBackoff    time.Duration `mapstructure:"base_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PageSize       int           `mapstructure:"page_size"`
}

// WebhookConfig ...
type WebhookConfig struct {
	Secret          string `mapstructure:"secret"`
	SignatureHeader string `mapstructure:"signature_header"`
	SeenCacheSize   int    `mapstructure:"seen_cache_size"`
}

// QueueConfig ...
type QueueConfig struct {
	BatchSize           int64         `mapstructure:"batch_size"`
	WinnerShare         float64       `mapstructure:"winner_share"`
	ReplyWindow         time.Duration `mapstructure:"reply_window"`
	DefaultHoursStart   string        `mapstructure:"default_hours_start"`
	DefaultHoursEnd     string        `mapstructure:"default_hours_end"`
	ConversationContext bool          `mapstructure:"conversation_context"`
}

// ABTestConfig ...
type ABTestConfig struct {
	MinSendsPerVariant int64   `mapstructure:"min_sends_per_variant"`
	Significance       float64 `mapstructure:"significance"`
}

// ReconcileConfig ...
type ReconcileConfig struct {
	LookBack time.Duration `mapstructure:"look_back"`
	MaxPages int           `mapstructure:"max_pages"`
	PageSize int           `mapstructure:"page_size"`
}

// RecoveryConfig ...
type RecoveryConfig struct {
	MaxRetries  int64         `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	BatchSize   int64         `mapstructure:"batch_size"`
}

// JobsConfig intervals of the periodic jobs
type JobsConfig struct {
	QueueInterval     time.Duration `mapstructure:"queue_interval"`
	ScheduleInterval  time.Duration `mapstructure:"schedule_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	RecoveryInterval  time.Duration `mapstructure:"recovery_interval"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	IntegrityInterval time.Duration `mapstructure:"integrity_interval"`
	LeaseDuration     time.Duration `mapstructure:"lease_duration"`
	UseLease          bool          `mapstructure:"use_lease"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.port", 10080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mysql.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("mysql.dial_timeout", 5*time.Second)

	v.SetDefault("memcache.num_conns", 2)
	v.SetDefault("memcache.key_prefix", "smsflow:lease:")
	v.SetDefault("memcache.retry_duration", 10*time.Second)

	v.SetDefault("gateway.api_key_header", "Authorization")
	v.SetDefault("gateway.max_attempts", 3)
	v.SetDefault("gateway.base_backoff", time.Second)
	v.SetDefault("gateway.max_backoff", 30*time.Second)
	v.SetDefault("gateway.connect_timeout", 5*time.Second)
	v.SetDefault("gateway.request_timeout", 30*time.Second)
	v.SetDefault("gateway.page_size", 50)

	v.SetDefault("webhook.signature_header", "X-Signature")
	v.SetDefault("webhook.seen_cache_size", 16*1024*1024)

	v.SetDefault("queue.batch_size", 500)
	v.SetDefault("queue.winner_share", 0.9)
	v.SetDefault("queue.reply_window", 7*24*time.Hour)
	v.SetDefault("queue.default_hours_start", "09:00")
	v.SetDefault("queue.default_hours_end", "17:00")
	v.SetDefault("queue.conversation_context", true)

	v.SetDefault("abtest.min_sends_per_variant", 100)
	v.SetDefault("abtest.significance", 0.05)

	v.SetDefault("reconcile.look_back", 24*time.Hour)
	v.SetDefault("reconcile.max_pages", 20)
	v.SetDefault("reconcile.page_size", 50)

	v.SetDefault("recovery.max_retries", 5)
	v.SetDefault("recovery.base_backoff", time.Minute)
	v.SetDefault("recovery.max_backoff", 6*time.Hour)
	v.SetDefault("recovery.batch_size", 100)

	v.SetDefault("jobs.queue_interval", time.Minute)
	v.SetDefault("jobs.schedule_interval", time.Minute)
	v.SetDefault("jobs.reconcile_interval", 15*time.Minute)
	v.SetDefault("jobs.recovery_interval", 5*time.Minute)
	v.SetDefault("jobs.cleanup_interval", time.Hour)
	v.SetDefault("jobs.integrity_interval", time.Hour)
	v.SetDefault("jobs.lease_duration", 10*time.Minute)

	v.SetDefault("default_timezone", "America/New_York")
}

func loadConfigFile(dir string, name string) Config {
	_ = godotenv.Load(path.Join(dir, ".env"))

	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("smsflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		panic(err)
	}

	var cfg Config
	err = v.Unmarshal(&cfg)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load config from config.yml of the working directory
func Load() Config {
	return loadConfigFile(".", "config")
}

// LoadTestConfig load config for testing
func LoadTestConfig(rootDir string) Config {
	return loadConfigFile(rootDir, "config.test")
}
