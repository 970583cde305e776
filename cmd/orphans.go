package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app/listing"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans [image-path]",
	Short: "List unallocated files that cannot be traced to a live directory",
	Long: `List the virtual $OrphanFiles directory: unallocated MFT entries none of
whose names point at an allocated directory with a matching sequence number.
Entries without any name are listed as OrphanFile-<inode>.

Examples:
  ntfsf orphans disk.img
  ntfsf orphans disk.img --offset 1048576 -o yaml`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrphans(args[0])
	},
}

func init() {
	rootCmd.AddCommand(orphansCmd)
}

func runOrphans(imagePath string) error {
	ctx := newContext()

	response, err := listing.Handle(ctx, &listing.Request{
		Target:  newTarget(imagePath),
		Orphans: true,
	})
	if err != nil {
		return err
	}

	return listing.FormatOutput(os.Stdout, response, ctx.OutputFormat)
}
