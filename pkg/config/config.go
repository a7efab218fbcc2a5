package config

import (
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

type Config struct {
	// Port Settings
	ServerAddr string `json:"serverAddr"` // The address the server endpoint binds to.
	BaseURL    string `json:"baseURL"`    // Public URL of the web app, used for redirects and links.

	Auth struct {
		JWTSecret  string `json:"jwtSecret" env:"JWT_SECRET"` // HS256 secret shared with the auth provider.
		CookieName string `json:"cookieName"`                 // Session cookie checked when no bearer token is sent.
	} `json:"auth"`

	Postgres struct {
		Host     string   `json:"host" env:"POSTGRES_HOST"`
		Port     string   `json:"port" env:"POSTGRES_PORT"`
		DBName   string   `json:"dbname" env:"POSTGRES_DB"`
		User     string   `json:"user" env:"POSTGRES_USER"`
		Password string   `json:"password" env:"POSTGRES_PASSWORD"`
		SSLMode  string   `json:"sslmode"`
		TimeZone string   `json:"TimeZone"`
		Replicas []string `json:"replicas"` // Read replica DSNs, optional.
	} `json:"postgres"`
	AutoMigrate bool `json:"autoMigrate"`

	Paystack struct {
		BaseURL     string `json:"baseURL"`
		SecretKey   string `json:"secretKey" env:"PAYSTACK_SECRET_KEY"`
		Currency    string `json:"currency"`
		CallbackURL string `json:"callbackURL"` // Points at GET /api/payments/verify.
	} `json:"paystack"`

	SMS struct {
		Enable      bool   `json:"enable"`
		BaseURL     string `json:"baseURL"`
		APIKey      string `json:"apiKey" env:"SMS_API_KEY"`
		SenderID    string `json:"senderID"`
		CountryCode string `json:"countryCode"`
	} `json:"sms"`

	Email struct {
		Enable   bool   `json:"enable"`
		Provider string `json:"provider"` // resend or smtp
		BaseURL  string `json:"baseURL"`
		APIKey   string `json:"apiKey" env:"EMAIL_API_KEY"`
		From     string `json:"from"`
		SMTP     struct {
			Host     string `json:"host"`
			Port     int    `json:"port"`
			User     string `json:"user"`
			Password string `json:"password" env:"SMTP_PASSWORD"`
		} `json:"smtp"`
	} `json:"email"`

	Meeting struct {
		BaseURL string `json:"baseURL"`
	} `json:"meeting"`

	Notify struct {
		DeliveryTimeout Duration `json:"deliveryTimeout"`
	} `json:"notify"`

	Cron struct {
		ReconcileSpec  string   `json:"reconcileSpec"`  // Cron spec of the pending payment reconciler, empty disables it.
		ReconcileAfter Duration `json:"reconcileAfter"` // Minimum age of a pending payment before it is re-verified.
		PendingExpiry  Duration `json:"pendingExpiry"`  // Age after which an unsettled checkout is marked failed.
		StatsSpec      string   `json:"statsSpec"`      // Cron spec of the project status gauge refresh.
		JobTimeout     Duration `json:"jobTimeout"`
	} `json:"cron"`
}

// Duration reads "30s" style strings from the config file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

func IsDebugMode() bool {
	return gin.Mode() == gin.DebugMode
}

// initConfig reads ./etc/debug-config.yaml (or SITECRAFT_DEBUG_CONFIG_PATH) in
// debug mode and /etc/sitecraft/config.yaml otherwise. Secrets are then
// overlaid from the environment.
func initConfig() *Config {
	var configPath string
	if IsDebugMode() {
		if os.Getenv("SITECRAFT_DEBUG_CONFIG_PATH") != "" {
			configPath = os.Getenv("SITECRAFT_DEBUG_CONFIG_PATH")
		} else {
			configPath = "./etc/debug-config.yaml"
		}
	} else {
		configPath = "/etc/sitecraft/config.yaml"
	}
	klog.Info("config path: ", configPath)

	cfg, err := Load(configPath)
	if err != nil {
		klog.Error("init config", err)
		panic(err)
	}
	return cfg
}

// Load reads the YAML file at filePath, applies the environment overlay and
// fills defaults.
func Load(filePath string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "sitecraft-access-token"
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.TimeZone == "" {
		c.Postgres.TimeZone = "UTC"
	}
	if c.Paystack.BaseURL == "" {
		c.Paystack.BaseURL = "https://api.paystack.co"
	}
	if c.Paystack.Currency == "" {
		c.Paystack.Currency = "NGN"
	}
	if c.Paystack.CallbackURL == "" {
		c.Paystack.CallbackURL = c.BaseURL + "/api/payments/verify"
	}
	if c.SMS.BaseURL == "" {
		c.SMS.BaseURL = "https://api.ng.termii.com"
	}
	if c.SMS.CountryCode == "" {
		c.SMS.CountryCode = "234"
	}
	if c.Email.Provider == "" {
		c.Email.Provider = "resend"
	}
	if c.Email.BaseURL == "" {
		c.Email.BaseURL = "https://api.resend.com"
	}
	if c.Meeting.BaseURL == "" {
		c.Meeting.BaseURL = "https://meet.jit.si"
	}
	if c.Notify.DeliveryTimeout.Duration == 0 {
		c.Notify.DeliveryTimeout.Duration = 10 * time.Second
	}
	if c.Cron.ReconcileAfter.Duration == 0 {
		c.Cron.ReconcileAfter.Duration = 15 * time.Minute
	}
	if c.Cron.PendingExpiry.Duration == 0 {
		c.Cron.PendingExpiry.Duration = 24 * time.Hour
	}
	if c.Cron.StatsSpec == "" {
		c.Cron.StatsSpec = "@every 1m"
	}
	if c.Cron.JobTimeout.Duration == 0 {
		c.Cron.JobTimeout.Duration = 5 * time.Minute
	}
}
