package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app/listing"
)

var (
	lsInode         uint64
	lsDeletedOnly   bool
	lsAllocatedOnly bool
	lsRecursive     bool
	lsMaxDepth      int
)

var lsCmd = &cobra.Command{
	Use:   "ls [image-path]",
	Short: "List a directory, including deleted and orphaned entries",
	Long: `List the entries of an NTFS directory. Entries recovered from index slack
and orphaned files that still name the directory as their parent are marked
with "*".

Examples:
  # List the root directory
  ntfsf ls disk.img

  # List MFT entry 64 showing only deleted entries
  ntfsf ls disk.img --inode 64 --deleted-only

  # Walk the whole tree as JSON
  ntfsf ls disk.img -r -o json`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLs(args[0], cmd.Flags().Changed("inode"))
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().Uint64VarP(&lsInode, "inode", "i", 0, "MFT entry of the directory (default: root)")
	lsCmd.Flags().BoolVarP(&lsDeletedOnly, "deleted-only", "d", false, "show only deleted entries")
	lsCmd.Flags().BoolVarP(&lsAllocatedOnly, "allocated-only", "u", false, "show only allocated entries")
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "descend into subdirectories")
	lsCmd.Flags().IntVar(&lsMaxDepth, "max-depth", 0, "maximum recursion depth (default 64)")

	lsCmd.MarkFlagsMutuallyExclusive("deleted-only", "allocated-only")
}

func runLs(imagePath string, hasInode bool) error {
	ctx := newContext()

	request := &listing.Request{
		Target:        newTarget(imagePath),
		Inode:         lsInode,
		HasInode:      hasInode,
		DeletedOnly:   lsDeletedOnly,
		AllocatedOnly: lsAllocatedOnly,
		Recursive:     lsRecursive,
		MaxDepth:      lsMaxDepth,
	}

	response, err := listing.Handle(ctx, request)
	if err != nil {
		return err
	}

	ctx.Log(listing.FormatSummary(response))
	return listing.FormatOutput(os.Stdout, response, ctx.OutputFormat)
}
