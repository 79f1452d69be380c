package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string `validate:"required"`
		Host            string
		DebugHost       string
		DisableReqLogs  bool
		ShutdownTimeout time.Duration `validate:"min=0"`
	}

	UpstreamConfig struct {
		BaseURL  string `validate:"required,url"`
		Username string
		Password string
		Timeout  time.Duration `validate:"min=0"`
		MaxPages int           `validate:"min=1"`
	}

	ListingConfig struct {
		DefaultPageSize int `validate:"min=1"`
		MaxPageSize     int `validate:"gtefield=DefaultPageSize"`
	}

	CacheConfig struct {
		Driver   string        `validate:"oneof=none memory redis"`
		TTL      time.Duration `validate:"min=0"`
		RedisURL string
	}

	Config struct {
		AppName      string `validate:"required"`
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		SecretKey    string `validate:"required"`
		RollbarToken string
		Server       ServerConfig
		Upstream     UpstreamConfig
		Listing      ListingConfig
		Cache        CacheConfig
	}
)

// NewConfig reads the configuration from the environment, prefixed with $ENV (DEV by default),
// after loading config/.env.<env> if it exists.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Masomo Console")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("upstream.baseURL", "http://127.0.0.1:8000/api")
	v.SetDefault("upstream.username", "")
	v.SetDefault("upstream.password", "")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.maxPages", 50)
	v.SetDefault("listing.defaultPageSize", 10)
	v.SetDefault("listing.maxPageSize", 100)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redisURL", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(ProjectRoot(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Upstream: UpstreamConfig{
			BaseURL:  strings.TrimRight(v.GetString("upstream.baseURL"), "/"),
			Username: v.GetString("upstream.username"),
			Password: v.GetString("upstream.password"),
			Timeout:  v.GetDuration("upstream.timeout"),
			MaxPages: v.GetInt("upstream.maxPages"),
		},
		Listing: ListingConfig{
			DefaultPageSize: v.GetInt("listing.defaultPageSize"),
			MaxPageSize:     v.GetInt("listing.maxPageSize"),
		},
		Cache: CacheConfig{
			Driver:   strings.ToLower(v.GetString("cache.driver")),
			TTL:      v.GetDuration("cache.ttl"),
			RedisURL: v.GetString("cache.redisURL"),
		},
	}
	if err := conf.Validate(validator.New()); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return conf, nil
}

func (c *Config) Validate(validate *validator.Validate) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Cache.Driver == "redis" && c.Cache.RedisURL == "" {
		return NewValidationError(
			errors.New("redis cache requires a URL"),
			FieldError{Field: "Cache.RedisURL", Error: "required when Cache.Driver is redis"},
		)
	}
	return nil
}
