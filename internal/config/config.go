package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"applymate/internal/logging/types"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port" default:"8080"`
		Host         string        `yaml:"host" default:"0.0.0.0"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
	} `yaml:"server"`

	Browser struct {
		HeadlessMode      bool          `yaml:"headless_mode" default:"true"`
		StealthMode       bool          `yaml:"stealth_mode" default:"true"`
		UserAgent         string        `yaml:"user_agent"`
		NavigationTimeout time.Duration `yaml:"navigation_timeout" default:"60s"`
		ActionTimeout     time.Duration `yaml:"action_timeout" default:"45s"`
		ViewportWidth     int           `yaml:"viewport_width" default:"1920"`
		ViewportHeight    int           `yaml:"viewport_height" default:"1080"`
	} `yaml:"browser"`

	Detector struct {
		PortalChangeThreshold float64       `yaml:"portal_change_threshold" default:"0.7"`
		FieldWaitTimeout      time.Duration `yaml:"field_wait_timeout" default:"10s"`
	} `yaml:"detector"`

	Retry struct {
		MaxAttempts int           `yaml:"max_attempts" default:"3"`
		Strategy    string        `yaml:"strategy" default:"exponential"`
		BaseDelay   time.Duration `yaml:"base_delay" default:"1s"`
		MaxDelay    time.Duration `yaml:"max_delay" default:"10s"`
		Multiplier  float64       `yaml:"multiplier" default:"2.0"`
		Jitter      bool          `yaml:"jitter" default:"true"`
	} `yaml:"retry"`

	Screenshots struct {
		Enabled   bool   `yaml:"enabled" default:"true"`
		Directory string `yaml:"directory" default:"screenshots"`
	} `yaml:"screenshots"`

	Store struct {
		Directory string `yaml:"directory" default:"data/applications"`
		InMemory  bool   `yaml:"in_memory" default:"false"`
	} `yaml:"store"`

	Redis struct {
		URL      string        `yaml:"url" default:"redis://localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" default:"0"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
		Queue    string        `yaml:"queue" default:"applications:pending"`
		Channel  string        `yaml:"channel" default:"applications:events"`
	} `yaml:"redis"`

	Limiter struct {
		RequestsPerMinute int           `yaml:"requests_per_minute" default:"10"`
		Burst             int           `yaml:"burst" default:"3"`
		FailureThreshold  int           `yaml:"failure_threshold" default:"5"`
		RecoveryTimeout   time.Duration `yaml:"recovery_timeout" default:"5m"`
	} `yaml:"limiter"`

	Sweeps struct {
		StaleSchedule string        `yaml:"stale_schedule" default:"0 * * * *"`
		StaleAfter    time.Duration `yaml:"stale_after" default:"2h"`
		RetrySchedule string        `yaml:"retry_schedule" default:"0 */6 * * *"`
	} `yaml:"sweeps"`

	Logging struct {
		Level    string                `yaml:"level" default:"info"`
		Adapters []types.AdapterConfig `yaml:"adapters"`
	} `yaml:"logging"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := &Config{}

	// Set defaults
	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 30 * time.Second
	config.Server.IdleTimeout = 60 * time.Second

	config.Browser.HeadlessMode = true
	config.Browser.StealthMode = true
	config.Browser.NavigationTimeout = 60 * time.Second
	config.Browser.ActionTimeout = 45 * time.Second
	config.Browser.ViewportWidth = 1920
	config.Browser.ViewportHeight = 1080
	config.Browser.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	config.Detector.PortalChangeThreshold = 0.7
	config.Detector.FieldWaitTimeout = 10 * time.Second

	config.Retry.MaxAttempts = 3
	config.Retry.Strategy = "exponential"
	config.Retry.BaseDelay = 1 * time.Second
	config.Retry.MaxDelay = 10 * time.Second
	config.Retry.Multiplier = 2.0
	config.Retry.Jitter = true

	config.Screenshots.Enabled = true
	config.Screenshots.Directory = "screenshots"

	config.Store.Directory = "data/applications"

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.DB = 0
	config.Redis.Timeout = 5 * time.Second
	config.Redis.Queue = "applications:pending"
	config.Redis.Channel = "applications:events"

	config.Limiter.RequestsPerMinute = 10
	config.Limiter.Burst = 3
	config.Limiter.FailureThreshold = 5
	config.Limiter.RecoveryTimeout = 5 * time.Minute

	config.Sweeps.StaleSchedule = "0 * * * *"
	config.Sweeps.StaleAfter = 2 * time.Hour
	config.Sweeps.RetrySchedule = "0 */6 * * *"

	config.Logging.Level = "info"

	// Load from YAML file if it exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			// Expand environment variables in the YAML content
			yamlContent := expandEnvVars(string(data))

			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, err
			}
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	return config, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}

	if dir := os.Getenv("SCREENSHOTS_DIR"); dir != "" {
		c.Screenshots.Directory = dir
	}

	if dir := os.Getenv("STORE_DIR"); dir != "" {
		c.Store.Directory = dir
	}

	if headless := os.Getenv("BROWSER_HEADLESS"); headless != "" {
		c.Browser.HeadlessMode = headless == "true" || headless == "1"
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}
