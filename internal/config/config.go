package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/guildgate/internal/domain"
	"github.com/guildgate/internal/pkg/validate"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	BotToken         string `env:"BOT_TOKEN,required,notEmpty"`
	ClientID         string `env:"CLIENT_ID,required,notEmpty"`
	ClientSecret     string `env:"CLIENT_SECRET,required,notEmpty"`
	RedirectURI      string `env:"REDIRECT_URI,required,notEmpty" validate:"url"`
	WebhookURL       string `env:"WEBHOOK_URL" validate:"omitempty,url"`
	VerifiedRoleName string `env:"VERIFIED_ROLE_NAME" envDefault:"Verified" validate:"required,max=100"`
	Port             int    `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`

	StateSecret string        `env:"STATE_SECRET"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"10m" validate:"gt=0"`
	SweepEvery  time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m" validate:"gt=0"`

	RaidThreshold     int           `env:"RAID_THRESHOLD" envDefault:"10" validate:"min=1"`
	RaidWindow        time.Duration `env:"RAID_WINDOW" envDefault:"60s" validate:"gt=0"`
	RaidAlertTopicARN string        `env:"RAID_ALERT_TOPIC_ARN"`
	RaidAlertCooldown time.Duration `env:"RAID_ALERT_COOLDOWN" envDefault:"1m"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`

	OAuthAuthURL     string        `env:"OAUTH_AUTH_URL" envDefault:"https://discord.com/oauth2/authorize" validate:"url"`
	OAuthTokenURL    string        `env:"OAUTH_TOKEN_URL" envDefault:"https://discord.com/api/oauth2/token" validate:"url"`
	OAuthIdentityURL string        `env:"OAUTH_IDENTITY_URL" envDefault:"https://discord.com/api/users/@me" validate:"url"`
	OAuthTimeout     time.Duration `env:"OAUTH_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	DiscordTimeout   time.Duration `env:"DISCORD_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	CallbackRateLimit float64  `env:"CALLBACK_RATE_LIMIT" envDefault:"5" validate:"gt=0"`
	CallbackRateBurst int      `env:"CALLBACK_RATE_BURST" envDefault:"10" validate:"min=1"`
	AllowedOrigins    []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	// Peers whose X-Forwarded-For / X-Real-Ip headers are believed. Empty
	// means the connection address is always the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:"," validate:"dive,cidr|ip"`

	NotifyBuffer      int           `env:"NOTIFY_BUFFER" envDefault:"64" validate:"min=1"`
	StartupMaxRetries int           `env:"STARTUP_MAX_RETRIES" envDefault:"5" validate:"min=1"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
}

// Load reads all configuration from environment variables. Any missing
// required option or invalid value is reported as domain.ErrConfiguration.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.StateSecret == "" {
		cfg.StateSecret = cfg.ClientSecret
	}
	proxies := cfg.TrustedProxies[:0]
	for _, p := range cfg.TrustedProxies {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	cfg.TrustedProxies = proxies
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return &cfg, nil
}

// NotificationsEnabled reports whether a webhook sink is configured.
func (c *Config) NotificationsEnabled() bool { return c.WebhookURL != "" }

// TrustedProxyPrefixes returns TrustedProxies as prefixes; a bare address
// becomes a single-host prefix.
func (c *Config) TrustedProxyPrefixes() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(raw); err == nil {
			out = append(out, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
		}
	}
	return out
}

// RaidAlertsEnabled reports whether raid alerts are published to SNS.
func (c *Config) RaidAlertsEnabled() bool { return c.RaidAlertTopicARN != "" }
