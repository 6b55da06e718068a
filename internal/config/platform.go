package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlatformConfig carries branding and operational limits that operators may
// tune without a restart.
type PlatformConfig struct {
	PlatformName string `mapstructure:"platformName"`
	LogoURL      string `mapstructure:"logoUrl"`
	SupportEmail string `mapstructure:"supportEmail"`
	PublicURL    string `mapstructure:"publicUrl"`
}

// DefaultPlatformConfig returns the values used when no platform.yml exists.
func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		PlatformName: "Confirmd",
		SupportEmail: "support@confirmd.io",
		PublicURL:    "https://platform.confirmd.io",
	}
}

// PlatformConfigHolder exposes the current platform config and hot-reloads it
// when the file changes.
type PlatformConfigHolder struct {
	current atomic.Value // holds PlatformConfig
}

// NewPlatformConfigHolder reads platform.yml and watches it for changes.
func NewPlatformConfigHolder() (*PlatformConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("platform")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/confirmd/config")
	v.AddConfigPath("/etc/confirmd")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CONFIRMD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPlatformConfig()
		v.SetDefault("platform.platformName", defaults.PlatformName)
		v.SetDefault("platform.logoUrl", defaults.LogoURL)
		v.SetDefault("platform.supportEmail", defaults.SupportEmail)
		v.SetDefault("platform.publicUrl", defaults.PublicURL)
	}

	var cfg PlatformConfig
	if err := v.UnmarshalKey("platform", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlatformConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PlatformConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlatformConfig
		if err := v.UnmarshalKey("platform", &updated); err != nil {
			log.Printf("[platform-config] reload failed: %v", err)
			return
		}
		if err := validatePlatformConfig(updated); err != nil {
			log.Printf("[platform-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[platform-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// Get returns the current platform config.
func (h *PlatformConfigHolder) Get() PlatformConfig {
	return h.current.Load().(PlatformConfig)
}

func validatePlatformConfig(cfg PlatformConfig) error {
	if strings.TrimSpace(cfg.PlatformName) == "" {
		return errors.New("platform.platformName cannot be empty")
	}
	if strings.TrimSpace(cfg.SupportEmail) == "" {
		return errors.New("platform.supportEmail cannot be empty")
	}
	return nil
}
