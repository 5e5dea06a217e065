package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort        = 8080
	defaultQueueSize   = 64
	defaultWorkers     = 2
	defaultRateLimit   = 60 // webhook requests per minute per IP
	defaultAIModel     = "gemini-1.5-flash"
	defaultAICooldown  = 65 // seconds between AI calls, free-tier safe
	defaultAIAttempts  = 4
	defaultGraphAPIURL = "https://graph.facebook.com/v19.0"
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Email    EmailConfig    `yaml:"email"`
	AI       AIConfig       `yaml:"ai,omitempty"`
	Options  Options        `yaml:"options,omitempty"`
}

// ServerConfig holds webhook listener settings.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	VerifyToken string `yaml:"verify_token"` // WhatsApp webhook verification token
	QueueSize   int    `yaml:"queue_size"`   // bounded processing queue capacity
	Workers     int    `yaml:"workers"`      // background processing workers
}

// WhatsAppConfig holds Cloud API credentials for sending replies.
type WhatsAppConfig struct {
	APIURL        string `yaml:"api_url,omitempty"`
	Token         string `yaml:"token,omitempty"`
	PhoneNumberID string `yaml:"phone_number_id"`
	Reply         bool   `yaml:"reply"` // send confirmation/failure replies to the sender
}

type EmailConfig struct {
	Provider string     `yaml:"provider"` // "smtp", "resend", "sendgrid"
	From     string     `yaml:"from"`
	APIKey   string     `yaml:"api_key,omitempty"` // resend/sendgrid
	SMTP     SMTPConfig `yaml:"smtp,omitempty"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UseTLS   bool   `yaml:"use_tls"`
}

// AIConfig holds settings for the generative-AI fallback extractor.
type AIConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIKey      string `yaml:"api_key,omitempty"`
	Model       string `yaml:"model"`
	CooldownSec int    `yaml:"cooldown_sec"` // minimum gap between calls
	MaxAttempts int    `yaml:"max_attempts"` // tries before giving up on quota errors
}

type Options struct {
	CompanyName string `yaml:"company_name"` // seller name on quotations and replies
	OutputDir   string `yaml:"output_dir"`   // where quotation PDFs are written
	HistoryPath string `yaml:"history_path,omitempty"`
	RateLimit   int    `yaml:"rate_limit"` // webhook requests per minute per IP
	DryRun      bool   `yaml:"dry_run"`
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".quotedesk", "config.yaml")
}

func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".quotedesk", "history.db")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.QueueSize == 0 {
		c.Server.QueueSize = defaultQueueSize
	}
	if c.Server.Workers == 0 {
		c.Server.Workers = defaultWorkers
	}
	if c.WhatsApp.APIURL == "" {
		c.WhatsApp.APIURL = defaultGraphAPIURL
	}
	if c.AI.Model == "" {
		c.AI.Model = defaultAIModel
	}
	if c.AI.CooldownSec == 0 {
		c.AI.CooldownSec = defaultAICooldown
	}
	if c.AI.MaxAttempts == 0 {
		c.AI.MaxAttempts = defaultAIAttempts
	}
	if c.Options.CompanyName == "" {
		c.Options.CompanyName = "QuoteDesk"
	}
	if c.Options.OutputDir == "" {
		c.Options.OutputDir = "quotes"
	}
	if c.Options.HistoryPath == "" {
		c.Options.HistoryPath = DefaultHistoryPath()
	}
	if c.Options.RateLimit == 0 {
		c.Options.RateLimit = defaultRateLimit
	}
}

// Secrets can live in the environment (or a .env file loaded by the CLI)
// instead of the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WHATSAPP_TOKEN"); v != "" {
		c.WhatsApp.Token = v
	}
	if v := os.Getenv("WHATSAPP_VERIFY_TOKEN"); v != "" {
		c.Server.VerifyToken = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.Email.SMTP.Password = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" && c.Email.Provider == "resend" {
		c.Email.APIKey = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" && c.Email.Provider == "sendgrid" {
		c.Email.APIKey = v
	}
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.Email.From == "" {
		return fmt.Errorf("email: from address is required")
	}

	switch c.Email.Provider {
	case "", "smtp":
		if c.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp: host is required")
		}
		if c.Email.SMTP.Port == 0 {
			return fmt.Errorf("email.smtp: port is required")
		}
	case "resend", "sendgrid":
		if c.Email.APIKey == "" {
			return fmt.Errorf("email: api_key is required for provider %q", c.Email.Provider)
		}
	default:
		return fmt.Errorf("email: unknown provider %q (smtp, resend, sendgrid)", c.Email.Provider)
	}

	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai: api_key is required when ai is enabled")
	}
	return nil
}

// ValidateWhatsApp validates reply settings (only called when replies are enabled).
func (c *Config) ValidateWhatsApp() error {
	if !c.WhatsApp.Reply {
		return nil
	}
	if c.WhatsApp.Token == "" {
		return fmt.Errorf("whatsapp: token is required when replies are enabled")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		return fmt.Errorf("whatsapp: phone_number_id is required when replies are enabled")
	}
	return nil
}
