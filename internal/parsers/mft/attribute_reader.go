package mft

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

const (
	attrHeaderMinSize     = 16
	residentHeaderSize    = 24
	nonResidentHeaderSize = 64
)

// ParseAttributes decodes the attribute list of a fixed-up FILE record
// starting at offset. Parsing stops at the end marker, at a zero length
// attribute or at the first attribute that would run past the record.
func ParseAttributes(record []byte, offset int) ([]types.Attribute, error) {
	attrs := make([]types.Attribute, 0, 8)

	for offset+4 <= len(record) {
		attrType := binary.LittleEndian.Uint32(record[offset:])
		if attrType == types.AttrTypeEnd {
			break
		}
		if offset+attrHeaderMinSize > len(record) {
			return attrs, fmt.Errorf("attribute header at %d truncated", offset)
		}

		length := int(binary.LittleEndian.Uint32(record[offset+4:]))
		if length < attrHeaderMinSize || offset+length > len(record) {
			return attrs, fmt.Errorf("attribute at %d has invalid length %d", offset, length)
		}

		attr, err := parseAttribute(record[offset : offset+length])
		if err != nil {
			return attrs, fmt.Errorf("attribute at %d: %w", offset, err)
		}
		attrs = append(attrs, *attr)
		offset += length
	}

	return attrs, nil
}

func parseAttribute(data []byte) (*types.Attribute, error) {
	attr := &types.Attribute{
		Type:        binary.LittleEndian.Uint32(data[0:4]),
		NonResident: data[8] != 0,
		Flags:       binary.LittleEndian.Uint16(data[12:14]),
		ID:          binary.LittleEndian.Uint16(data[14:16]),
	}

	nameLen := int(data[9])
	nameOff := int(binary.LittleEndian.Uint16(data[10:12]))
	if nameLen > 0 {
		if nameOff+2*nameLen > len(data) {
			return nil, fmt.Errorf("attribute name exceeds attribute length")
		}
		attr.Name = DecodeName(data[nameOff : nameOff+2*nameLen])
	}

	if !attr.NonResident {
		if len(data) < residentHeaderSize {
			return nil, fmt.Errorf("resident attribute header truncated")
		}
		contentLen := int(binary.LittleEndian.Uint32(data[16:20]))
		contentOff := int(binary.LittleEndian.Uint16(data[20:22]))
		if contentOff+contentLen > len(data) {
			return nil, fmt.Errorf("resident content (%d bytes at %d) exceeds attribute length %d",
				contentLen, contentOff, len(data))
		}
		attr.Resident = make([]byte, contentLen)
		copy(attr.Resident, data[contentOff : contentOff+contentLen])
		return attr, nil
	}

	if len(data) < nonResidentHeaderSize {
		return nil, fmt.Errorf("non-resident attribute header truncated")
	}
	attr.StartVCN = binary.LittleEndian.Uint64(data[16:24])
	attr.LastVCN = binary.LittleEndian.Uint64(data[24:32])
	runOff := int(binary.LittleEndian.Uint16(data[32:34]))
	attr.AllocatedSize = binary.LittleEndian.Uint64(data[40:48])
	attr.RealSize = binary.LittleEndian.Uint64(data[48:56])
	attr.InitSize = binary.LittleEndian.Uint64(data[56:64])

	if runOff > len(data) {
		return nil, fmt.Errorf("data run offset %d exceeds attribute length", runOff)
	}
	runs, err := ParseDataRuns(data[runOff:])
	if err != nil {
		return nil, err
	}
	attr.Runs = runs

	return attr, nil
}
