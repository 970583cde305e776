package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app/pathfind"
)

var (
	findInode      uint64
	findAttrType   string
	findAttrID     uint16
	findAllocated  bool
	findUnalloc    bool
	findMaxResults int
)

var findpathCmd = &cobra.Command{
	Use:   "findpath [image-path]",
	Short: "Print every path of an MFT entry",
	Long: `Reconstruct the full paths of an MFT entry by following the parent
references of each of its names. A file with several hard links has several
paths. When an ancestor has been deleted or reused the path is anchored at
/ORPHAN.

Examples:
  # Paths of MFT entry 1234
  ntfsf findpath disk.img --inode 1234

  # Path of a named data stream
  ntfsf findpath disk.img --inode 1234 --attr-type '$DATA' --attr-id 3`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFindpath(args[0], cmd.Flags().Changed("attr-id"))
	},
}

func init() {
	rootCmd.AddCommand(findpathCmd)

	findpathCmd.Flags().Uint64VarP(&findInode, "inode", "i", 0, "MFT entry to resolve")
	findpathCmd.Flags().StringVar(&findAttrType, "attr-type", "", "attribute type to append as :name ($DATA, 0x80, 128)")
	findpathCmd.Flags().Uint16Var(&findAttrID, "attr-id", 0, "attribute instance id")
	findpathCmd.Flags().BoolVar(&findAllocated, "alloc", false, "only report allocated entries")
	findpathCmd.Flags().BoolVar(&findUnalloc, "unalloc", false, "only report unallocated entries")
	findpathCmd.Flags().IntVar(&findMaxResults, "limit", 0, "maximum number of paths (0 for all)")

	_ = findpathCmd.MarkFlagRequired("inode")
	findpathCmd.MarkFlagsMutuallyExclusive("alloc", "unalloc")
	findpathCmd.MarkFlagsRequiredTogether("attr-id", "attr-type")
}

func runFindpath(imagePath string, hasAttrID bool) error {
	ctx := newContext()

	request := &pathfind.Request{
		Target:     newTarget(imagePath),
		Inode:      findInode,
		AttrID:     findAttrID,
		HasAttrID:  hasAttrID,
		Alloc:      pathfind.AllocAny,
		MaxResults: findMaxResults,
	}
	if findAttrType != "" {
		attrType, err := pathfind.ParseAttrType(findAttrType)
		if err != nil {
			return err
		}
		request.AttrType = attrType
	}
	switch {
	case findAllocated:
		request.Alloc = pathfind.AllocAllocated
	case findUnalloc:
		request.Alloc = pathfind.AllocUnallocated
	}

	response, err := pathfind.Handle(ctx, request)
	if err != nil {
		return err
	}

	return pathfind.FormatOutput(os.Stdout, response, ctx.OutputFormat)
}
