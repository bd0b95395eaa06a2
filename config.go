package main

import (
	"os"

	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
	"github.com/ataraxie68/pixelscope/pixelbase/utils"
	"github.com/spf13/viper"
)

type Config struct {
	appbase.Config `mapstructure:",squash"`

	// TargetDomain is the site under observation. First-party cookies set
	// against it are reported with cookie_type "target_domain".
	TargetDomain string `mapstructure:"TARGET_DOMAIN"`

	// RegistryPath points at a JSON or YAML platform registry file.
	// When empty the built-in registry is used.
	RegistryPath string `mapstructure:"REGISTRY_PATH"`

	// OutputPath is where structured records go. Empty means stdout.
	OutputPath string `mapstructure:"OUTPUT_PATH"`

	BackupLogDir         string `mapstructure:"BACKUP_LOG_DIR"`
	BackupLogTTL         int    `mapstructure:"BACKUP_LOG_TTL_DAYS" default:"7"`
	BackupLogRotateHours int    `mapstructure:"BACKUP_LOG_ROTATE_HOURS" default:"24"`
	BackupLogMaxSizeMb   int    `mapstructure:"BACKUP_LOG_MAX_SIZE_MB" default:"100"`

	MetricsPort int `mapstructure:"METRICS_PORT" default:"9091"`

	//Extra delay may be needed. E.g. for metric scrapper to scrape final metrics. So http server will stay active for an extra period.
	ShutdownExtraDelay int `mapstructure:"SHUTDOWN_EXTRA_DELAY_SEC" default:"0"`
}

func init() {
	viper.SetDefault("HTTP_PORT", utils.NvlString(os.Getenv("PORT"), "3059"))
}
