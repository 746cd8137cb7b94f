package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// HTTPAddr is the host:port the API listens on. The host may be empty.
	HTTPAddr string `koanf:"http_addr" validate:"required,host_port"`

	// StorePath is the bbolt database holding tenant rules.
	StorePath string `koanf:"store_path" validate:"required"`

	// RulesCacheSize is the number of tenant snapshots kept in memory; 0 disables caching.
	RulesCacheSize int `koanf:"rules_cache_size" validate:"gte=0"`

	// RulesTTL expires cached snapshots; 0 keeps them until evicted or invalidated.
	RulesTTL time.Duration `koanf:"rules_ttl" validate:"gte=0"`

	// RulesLoadTimeout bounds a single rule store fetch.
	RulesLoadTimeout time.Duration `koanf:"rules_load_timeout" validate:"required,gt=0"`

	// DefaultsDir optionally overrides the built-in default rules with list files.
	DefaultsDir string `koanf:"defaults_dir"`

	// RedisAddr enables blocked-domain analytics when set.
	RedisAddr string `koanf:"redis_addr" validate:"omitempty,host_port"`

	RedisDB int `koanf:"redis_db" validate:"gte=0,lte=15"`

	// AnalyticsPrefix namespaces the Redis counter keys.
	AnalyticsPrefix string `koanf:"analytics_prefix" validate:"required"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings for the link service.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:              "prod",
	LogLevel:         "info",
	HTTPAddr:         ":8080",
	StorePath:        "/var/lib/linkguard/rules.db",
	RulesCacheSize:   1000,
	RulesTTL:         5 * time.Minute,
	RulesLoadTimeout: 2 * time.Second,
	DefaultsDir:      "",
	RedisAddr:        "",
	RedisDB:          0,
	AnalyticsPrefix:  "linkguard:blocked",
}

// validHostPort validates a "host:port" listen or dial address. The host may
// be empty, an IP address, or a host name; the port must be 1..65535.
func validHostPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if host != "" && net.ParseIP(host) == nil && !validHostName(host) {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

func validHostName(host string) bool {
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return false
			}
		}
	}
	return true
}

// envLoader loads environment variables with the prefix "LINKS_", lowercasing
// keys and splitting space or comma separated values into lists.
// It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "LINKS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "LINKS_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "host_port" validation.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("host_port", validHostPort)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
