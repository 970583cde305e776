package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/disk"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration after merging defaults, the config file and
NTFSF_* environment variables.

Example:
  NTFSF_CACHE_RECORDS=4096 ntfsf config -o yaml`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfig()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig() error {
	config, err := disk.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if volumeOffset >= 0 {
		config.VolumeOffset = volumeOffset
	}

	view := map[string]interface{}{
		"volume_offset":         config.VolumeOffset,
		"auto_detect_partition": config.AutoDetectPartition,
		"cache_records":         config.CacheRecords,
		"max_path_depth":        config.MaxPathDepth,
		"deleted_time_min_year": config.DeletedTimeMinYear,
		"deleted_time_max_year": config.DeletedTimeMaxYear,
	}

	switch GetOutputFormat() {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(view)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(view)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "KEY\tVALUE\n")
	fmt.Fprintf(w, "volume_offset\t%d\n", config.VolumeOffset)
	fmt.Fprintf(w, "auto_detect_partition\t%t\n", config.AutoDetectPartition)
	fmt.Fprintf(w, "cache_records\t%d\n", config.CacheRecords)
	fmt.Fprintf(w, "max_path_depth\t%d\n", config.MaxPathDepth)
	fmt.Fprintf(w, "deleted_time_min_year\t%d\n", config.DeletedTimeMinYear)
	fmt.Fprintf(w, "deleted_time_max_year\t%d\n", config.DeletedTimeMaxYear)
	return w.Flush()
}
