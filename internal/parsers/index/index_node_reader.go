package index

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// ParseListHeader decodes an entry list header. data must hold at least
// IndexListHeaderSize bytes.
func ParseListHeader(data []byte) types.IndexListHeader {
	return types.IndexListHeader{
		BeginOffset:     binary.LittleEndian.Uint32(data[0:4]),
		UsedOffset:      binary.LittleEndian.Uint32(data[4:8]),
		AllocatedOffset: binary.LittleEndian.Uint32(data[8:12]),
		Flags:           binary.LittleEndian.Uint32(data[12:16]),
	}
}

// ParseIndexRoot decodes the resident content of an $INDEX_ROOT attribute.
func ParseIndexRoot(data []byte) (*types.IndexRoot, error) {
	if len(data) < types.IndexRootHeaderSize+types.IndexListHeaderSize {
		return nil, fmt.Errorf("insufficient data for $INDEX_ROOT: %d bytes", len(data))
	}

	return &types.IndexRoot{
		AttrType:         binary.LittleEndian.Uint32(data[0:4]),
		CollationRule:    binary.LittleEndian.Uint32(data[4:8]),
		IndexBlockSize:   binary.LittleEndian.Uint32(data[8:12]),
		ClustersPerBlock: data[12],
		List:             ParseListHeader(data[types.IndexRootHeaderSize:]),
	}, nil
}

// ParseIndexRecordHeader decodes the header of an INDX block.
func ParseIndexRecordHeader(data []byte) (*types.IndexRecordHeader, error) {
	if len(data) < types.IndexRecordHeaderSize+types.IndexListHeaderSize {
		return nil, fmt.Errorf("insufficient data for INDX header: %d bytes", len(data))
	}

	hdr := &types.IndexRecordHeader{
		Magic:           binary.LittleEndian.Uint32(data[0:4]),
		UpdateSeqOffset: binary.LittleEndian.Uint16(data[4:6]),
		UpdateSeqCount:  binary.LittleEndian.Uint16(data[6:8]),
		LogSequence:     binary.LittleEndian.Uint64(data[8:16]),
		VCN:             binary.LittleEndian.Uint64(data[16:24]),
		List:            ParseListHeader(data[types.IndexRecordHeaderSize:]),
	}
	if hdr.Magic != types.IndexRecordMagic {
		return nil, fmt.Errorf("invalid INDX magic 0x%08x", hdr.Magic)
	}
	return hdr, nil
}

// IsIndexRecord reports whether data starts with the INDX magic.
func IsIndexRecord(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == types.IndexRecordMagic
}

// CheckRootList validates a root list header against the number of bytes
// available after it.
func CheckRootList(list types.IndexListHeader, avail int) error {
	if list.UsedOffset < list.BeginOffset {
		return fmt.Errorf("used offset %d before begin offset %d", list.UsedOffset, list.BeginOffset)
	}
	if list.AllocatedOffset < list.UsedOffset {
		return fmt.Errorf("allocated offset %d before used offset %d", list.AllocatedOffset, list.UsedOffset)
	}
	if int64(list.AllocatedOffset) > int64(avail) {
		return fmt.Errorf("allocated offset %d beyond %d available bytes", list.AllocatedOffset, avail)
	}
	return nil
}

// CheckBlockList validates the list header of an INDX block whose list
// starts at listOff and whose span ends at end, both relative to the same
// buffer.
func CheckBlockList(list types.IndexListHeader, listOff, end int) error {
	if int64(listOff)+int64(list.BeginOffset) > int64(end) {
		return fmt.Errorf("begin offset %d runs past block end", list.BeginOffset)
	}
	if int64(listOff)+int64(list.UsedOffset) > int64(end) {
		return fmt.Errorf("used offset %d runs past block end", list.UsedOffset)
	}
	if list.UsedOffset < list.BeginOffset {
		return fmt.Errorf("used offset %d before begin offset %d", list.UsedOffset, list.BeginOffset)
	}
	return nil
}

// ScanIndexBlocks returns the offsets of every INDX magic found in buf at
// multiples of stride. Blocks are located by scanning rather than by VCN so
// that blocks no longer referenced from the tree are still found.
func ScanIndexBlocks(buf []byte, stride int) []int {
	if stride <= 0 {
		stride = types.DefaultClusterSize
	}
	offsets := make([]int, 0, len(buf)/stride+1)
	for off := 0; off+4 <= len(buf); off += stride {
		if IsIndexRecord(buf[off:]) {
			offsets = append(offsets, off)
		}
	}
	return offsets
}
