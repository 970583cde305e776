package disk

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/index"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// AutoOffset asks OpenImage to locate the volume itself
const AutoOffset int64 = -1

// Config holds configuration for image access and directory reconstruction
type Config struct {
	VolumeOffset        int64 `mapstructure:"volume_offset"`
	AutoDetectPartition bool  `mapstructure:"auto_detect_partition"`
	CacheRecords        int   `mapstructure:"cache_records"`
	MaxPathDepth        int   `mapstructure:"max_path_depth"`
	DeletedTimeMinYear  int   `mapstructure:"deleted_time_min_year"`
	DeletedTimeMaxYear  int   `mapstructure:"deleted_time_max_year"`
}

// LoadConfig loads configuration using Viper. When configFile is empty the
// usual locations are searched for ntfs-config.yaml; a missing file leaves
// the defaults in place.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("ntfs-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.ntfsf")
		v.AddConfigPath("/etc/ntfsf")
	}

	v.SetDefault("volume_offset", AutoOffset)
	v.SetDefault("auto_detect_partition", true)
	v.SetDefault("cache_records", 1024)
	v.SetDefault("max_path_depth", types.MaxPathDepth)
	v.SetDefault("deleted_time_min_year", index.DefaultMinYear)
	v.SetDefault("deleted_time_max_year", index.DefaultMaxYear)

	v.SetEnvPrefix("NTFSF")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configured values for consistency
func (c *Config) Validate() error {
	if c.VolumeOffset < AutoOffset {
		return fmt.Errorf("volume_offset must be -1 (auto) or a byte offset, got %d", c.VolumeOffset)
	}
	if c.CacheRecords < 0 {
		return fmt.Errorf("cache_records cannot be negative")
	}
	if c.MaxPathDepth < 0 || c.MaxPathDepth > types.MaxPathDepth {
		return fmt.Errorf("max_path_depth must be between 0 and %d, got %d", types.MaxPathDepth, c.MaxPathDepth)
	}
	if c.DeletedTimeMinYear >= c.DeletedTimeMaxYear {
		return fmt.Errorf("deleted_time_min_year (%d) must be before deleted_time_max_year (%d)",
			c.DeletedTimeMinYear, c.DeletedTimeMaxYear)
	}
	return nil
}

// TimeWindow returns the plausibility window for deleted index entries
func (c *Config) TimeWindow() index.TimeWindow {
	return index.YearWindow(c.DeletedTimeMinYear, c.DeletedTimeMaxYear)
}
