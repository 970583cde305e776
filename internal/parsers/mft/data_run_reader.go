package mft

import (
	"fmt"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// ParseDataRuns decodes a run list. Each run header byte holds the size of
// the length field in its low nibble and the size of the signed, relative
// LCN offset in its high nibble; a zero offset size marks a sparse run.
func ParseDataRuns(data []byte) ([]types.DataRun, error) {
	runs := make([]types.DataRun, 0, 4)
	offset := 0
	var lcn int64

	for offset < len(data) {
		header := data[offset]
		if header == 0 {
			break
		}

		lengthSize := int(header & 0x0F)
		offsetSize := int(header >> 4)

		if lengthSize == 0 || lengthSize > 8 || offsetSize > 8 {
			return nil, fmt.Errorf("invalid data run header 0x%02x at offset %d", header, offset)
		}
		if offset+1+lengthSize+offsetSize > len(data) {
			return nil, fmt.Errorf("data run at offset %d extends beyond buffer", offset)
		}

		var length uint64
		for i := 0; i < lengthSize; i++ {
			length |= uint64(data[offset+1+i]) << (8 * i)
		}

		run := types.DataRun{ClusterCount: length, Sparse: offsetSize == 0}

		if offsetSize > 0 {
			var delta int64
			for i := 0; i < offsetSize; i++ {
				delta |= int64(data[offset+1+lengthSize+i]) << (8 * i)
			}
			// sign extend
			if data[offset+lengthSize+offsetSize]&0x80 != 0 && offsetSize < 8 {
				delta |= -1 << (8 * offsetSize)
			}
			lcn += delta
			if lcn < 0 {
				return nil, fmt.Errorf("data run at offset %d has negative LCN %d", offset, lcn)
			}
			run.StartCluster = uint64(lcn)
		}

		runs = append(runs, run)
		offset += 1 + lengthSize + offsetSize
	}

	return runs, nil
}
