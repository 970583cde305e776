package mft

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// NTFSOEMID is the OEM identifier of an NTFS boot sector
const NTFSOEMID = "NTFS    "

// BootSectorSize is the size of the NTFS volume boot record
const BootSectorSize = 512

// IsNTFSBootSector reports whether data starts with an NTFS boot sector.
func IsNTFSBootSector(data []byte) bool {
	return len(data) >= 11 && string(data[3:11]) == NTFSOEMID
}

// ParseBootSector decodes the NTFS boot sector geometry.
func ParseBootSector(data []byte) (*types.BootSector, error) {
	if len(data) < BootSectorSize {
		return nil, fmt.Errorf("insufficient data for boot sector: %d bytes", len(data))
	}
	if !IsNTFSBootSector(data) {
		return nil, fmt.Errorf("not an NTFS boot sector: OEM id %q", string(data[3:11]))
	}

	bs := &types.BootSector{
		OEMID:             string(data[3:11]),
		BytesPerSector:    binary.LittleEndian.Uint16(data[0x0B:0x0D]),
		SectorsPerCluster: data[0x0D],
		TotalSectors:      binary.LittleEndian.Uint64(data[0x28:0x30]),
		MftCluster:        binary.LittleEndian.Uint64(data[0x30:0x38]),
		MftMirrCluster:    binary.LittleEndian.Uint64(data[0x38:0x40]),
		SerialNumber:      binary.LittleEndian.Uint64(data[0x48:0x50]),
	}

	switch bs.BytesPerSector {
	case 256, 512, 1024, 2048, 4096:
	default:
		return nil, fmt.Errorf("invalid bytes per sector: %d", bs.BytesPerSector)
	}
	if bs.SectorsPerCluster == 0 {
		return nil, fmt.Errorf("invalid sectors per cluster: 0")
	}

	clusterSize := uint32(bs.ClusterSize())
	bs.FileRecordSize = decodeRecordSize(int8(data[0x40]), clusterSize)
	bs.IndexBlockSize = decodeRecordSize(int8(data[0x44]), clusterSize)

	if bs.FileRecordSize < types.FileRecordHeaderSize || bs.FileRecordSize > 1<<16 {
		return nil, fmt.Errorf("invalid FILE record size: %d", bs.FileRecordSize)
	}
	if bs.IndexBlockSize == 0 || bs.IndexBlockSize > 1<<16 {
		return nil, fmt.Errorf("invalid index block size: %d", bs.IndexBlockSize)
	}

	return bs, nil
}

// decodeRecordSize decodes the clusters-per-record encoding: positive values
// count clusters, negative values are a power of two in bytes.
func decodeRecordSize(v int8, clusterSize uint32) uint32 {
	if v > 0 {
		return uint32(v) * clusterSize
	}
	if v < -31 {
		return 0
	}
	return 1 << uint(-v)
}
