package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Magento    MagentoConfig    `yaml:"magento"`
	Tidio      TidioConfig      `yaml:"tidio"`
	Transform  TransformConfig  `yaml:"transform"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Sync       SyncConfig       `yaml:"sync"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Database   *DatabaseConfig  `yaml:"database"`
	RabbitMQ   *RabbitMQConfig  `yaml:"rabbitmq"`
	LogLevel   string           `yaml:"log_level"`
}

type MagentoConfig struct {
	BaseURL      string `yaml:"base_url"`
	MediaBaseURL string `yaml:"media_base_url"`
	StoreBaseURL string `yaml:"store_base_url"`
	AuthHeader   string `yaml:"auth_header"`
	SecretName   string `yaml:"secret_name"`
	SecretValue  string `yaml:"secret_value"`
	Store        string `yaml:"store"`
	Currency     string `yaml:"currency"`
	PageSize     int    `yaml:"page_size"`
	// PriceChunkSize bounds the number of SKUs per price lookup request.
	PriceChunkSize   int           `yaml:"price_chunk_size"`
	UpdateAgeMinutes int           `yaml:"update_age_minutes"`
	WebsiteID        int64         `yaml:"website_id"`
	Timezone         string        `yaml:"timezone"`
	Timeout          time.Duration `yaml:"timeout"`
	Retry            RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type TidioConfig struct {
	BaseURL       string `yaml:"base_url"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	AcceptVersion string `yaml:"accept_version"`
	// MinInterval is the minimum gap between consecutive batch deliveries.
	MinInterval  time.Duration `yaml:"min_interval"`
	MaxBatchSize int           `yaml:"max_batch_size"`
	Timeout      time.Duration `yaml:"timeout"`
}

type TransformConfig struct {
	// HideDiscontinued marks products hidden when the catalog carries a
	// truthy "discontinued" attribute. Legacy catalogs did not expose the
	// flag, so the default keeps every product visible.
	HideDiscontinued bool `yaml:"hide_discontinued"`
	// MaxFeatureLength caps feature values; 0 disables truncation.
	MaxFeatureLength   int      `yaml:"max_feature_length"`
	ExcludedAttributes []string `yaml:"excluded_attributes"`
	BrandAttribute     string   `yaml:"brand_attribute"`
}

type CheckpointConfig struct {
	LocalPath string `yaml:"local_path"`
	// Every is the number of successfully sent batches between remote
	// checkpoint pushes.
	Every  int           `yaml:"every"`
	Remote *RemoteConfig `yaml:"remote"`
}

type RemoteConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type SyncConfig struct {
	TransformWorkers int           `yaml:"transform_workers"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
}

type ScheduleConfig struct {
	FullHour         int   `yaml:"full_hour"`
	IncrementalHours []int `yaml:"incremental_hours"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Magento.PageSize == 0 {
		c.Magento.PageSize = 100
	}
	if c.Magento.PriceChunkSize == 0 {
		c.Magento.PriceChunkSize = 20
	}
	if c.Magento.UpdateAgeMinutes == 0 {
		c.Magento.UpdateAgeMinutes = 130
	}
	if c.Magento.Timezone == "" {
		c.Magento.Timezone = "Europe/London"
	}
	if c.Magento.Currency == "" {
		c.Magento.Currency = "GBP"
	}
	if c.Magento.Timeout == 0 {
		c.Magento.Timeout = 30 * time.Second
	}
	if c.Magento.Retry.MaxAttempts == 0 {
		c.Magento.Retry.MaxAttempts = 3
	}
	if c.Magento.Retry.InitialBackoff == 0 {
		c.Magento.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Magento.Retry.MaxBackoff == 0 {
		c.Magento.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Tidio.BaseURL == "" {
		c.Tidio.BaseURL = "https://api.tidio.com"
	}
	if c.Tidio.MinInterval == 0 {
		c.Tidio.MinInterval = 7 * time.Second
	}
	if c.Tidio.MaxBatchSize == 0 {
		c.Tidio.MaxBatchSize = 100
	}
	if c.Tidio.Timeout == 0 {
		c.Tidio.Timeout = 60 * time.Second
	}
	if c.Transform.ExcludedAttributes == nil {
		c.Transform.ExcludedAttributes = []string{
			"description",
			"short_description",
			"url_key",
			"category_ids",
			"image",
			"small_image",
			"thumbnail",
			"options_container",
			"required_options",
			"discontinued",
			"price_on_application",
		}
	}
	if c.Transform.BrandAttribute == "" {
		c.Transform.BrandAttribute = "brand"
	}
	if c.Checkpoint.LocalPath == "" {
		c.Checkpoint.LocalPath = "saved_batches.json"
	}
	if c.Checkpoint.Every == 0 {
		c.Checkpoint.Every = 5
	}
	if c.Sync.TransformWorkers == 0 {
		c.Sync.TransformWorkers = 4
	}
	if c.Sync.RunTimeout == 0 {
		c.Sync.RunTimeout = 90 * time.Minute
	}
	if c.Schedule.FullHour == 0 {
		c.Schedule.FullHour = 2
	}
	if c.Schedule.IncrementalHours == nil {
		c.Schedule.IncrementalHours = []int{0, 4, 6, 8, 10, 12, 14, 16, 18, 20, 22}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
