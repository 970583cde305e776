package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string

	// Global image flags
	configFile   string
	volumeOffset int64
)

var rootCmd = &cobra.Command{
	Use:   "ntfsf",
	Short: "Read-only NTFS directory and path reconstruction tool",
	Long: `ntfsf is a read-only command-line tool for examining NTFS volumes in raw
disk or partition images. It rebuilds directory listings from the MFT,
including deleted entries recovered from index slack and orphaned files
whose parent directory no longer lists them, and reconstructs the full
paths of any MFT entry.

Commands:
  ls          List a directory, including deleted entries
  findpath    Print every path of an MFT entry
  orphans     List files that cannot be traced to a live directory
  config      Show the effective configuration`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configureLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ntfs-config.yaml in ., ./config, $HOME/.ntfsf, /etc/ntfsf)")
	rootCmd.PersistentFlags().Int64Var(&volumeOffset, "offset", -1, "byte offset of the NTFS volume in the image (default: detect)")
}

func configureLogging() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet cannot be combined")
	}
	switch outputFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	switch {
	case quiet:
		logrus.SetLevel(logrus.ErrorLevel)
	case verbose:
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.SetLevel(logrus.WarnLevel)
	}
	return nil
}

// newContext builds the application context from the global flags
func newContext() *app.Context {
	ctx := app.NewContext()
	ctx.OutputFormat = GetOutputFormat()
	ctx.Verbose = GetVerbose()
	ctx.Quiet = GetQuiet()
	ctx.ConfigFile = configFile
	ctx.Logger = logrus.StandardLogger()
	return ctx
}

// newTarget builds the image target for imagePath from the global flags
func newTarget(imagePath string) app.ImageTarget {
	target := app.ImageTarget{ImagePath: imagePath}
	if volumeOffset >= 0 {
		target.Offset = volumeOffset
		target.HasOffset = true
	}
	return target
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetQuiet returns the quiet flag value
func GetQuiet() bool {
	return quiet
}

// GetOutputFormat returns the output format
func GetOutputFormat() string {
	return outputFormat
}
