package mft

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/fixup"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// ParseFileRecordHeader decodes the fixed FILE record header.
func ParseFileRecordHeader(data []byte) (*types.FileRecordHeader, error) {
	if len(data) < types.FileRecordHeaderSize {
		return nil, fmt.Errorf("insufficient data for FILE record header: %d bytes", len(data))
	}

	hdr := &types.FileRecordHeader{
		Magic:           binary.LittleEndian.Uint32(data[0:4]),
		UpdateSeqOffset: binary.LittleEndian.Uint16(data[4:6]),
		UpdateSeqCount:  binary.LittleEndian.Uint16(data[6:8]),
		LogSequence:     binary.LittleEndian.Uint64(data[8:16]),
		SequenceNumber:  binary.LittleEndian.Uint16(data[16:18]),
		LinkCount:       binary.LittleEndian.Uint16(data[18:20]),
		AttributeOffset: binary.LittleEndian.Uint16(data[20:22]),
		Flags:           binary.LittleEndian.Uint16(data[22:24]),
		UsedSize:        binary.LittleEndian.Uint32(data[24:28]),
		AllocatedSize:   binary.LittleEndian.Uint32(data[28:32]),
		BaseRecord:      binary.LittleEndian.Uint64(data[32:40]),
		NextAttributeID: binary.LittleEndian.Uint16(data[40:42]),
		RecordNumber:    binary.LittleEndian.Uint32(data[44:48]),
	}

	if hdr.Magic != types.FileRecordMagic {
		return nil, fmt.Errorf("invalid FILE record magic 0x%08x", hdr.Magic)
	}
	return hdr, nil
}

// ParseFileRecord fixes up and decodes one raw FILE record into a
// FileObject. data is modified in place by the update sequence fixup.
// Names are taken from the $FILE_NAME attributes, skipping the DOS 8.3
// variants.
func ParseFileRecord(id uint64, data []byte, sectorSize int) (*types.FileObject, error) {
	hdr, err := ParseFileRecordHeader(data)
	if err != nil {
		return nil, err
	}

	if err := fixup.Apply(data, len(data), sectorSize); err != nil {
		return nil, fmt.Errorf("FILE record %d: %w", id, err)
	}

	used := int(hdr.UsedSize)
	if used == 0 || used > len(data) {
		used = len(data)
	}
	if int(hdr.AttributeOffset) >= used {
		return nil, fmt.Errorf("FILE record %d: attribute offset %d beyond used size %d", id, hdr.AttributeOffset, used)
	}

	attrs, err := ParseAttributes(data[:used], int(hdr.AttributeOffset))
	if err != nil && len(attrs) == 0 {
		return nil, fmt.Errorf("FILE record %d: %w", id, err)
	}

	obj := &types.FileObject{
		ID:         id,
		Seq:        hdr.SequenceNumber,
		Allocated:  hdr.InUse(),
		Header:     *hdr,
		Attributes: attrs,
		Type:       types.MetaTypeRegular,
	}
	if hdr.IsDirectory() {
		obj.Type = types.MetaTypeDirectory
	}

	for i := range attrs {
		if attrs[i].Type != types.AttrTypeFileName || attrs[i].NonResident {
			continue
		}
		fn, err := ParseFileName(attrs[i].Resident)
		if err != nil {
			continue
		}
		if fn.NameSpace == types.NameSpaceDOS {
			continue
		}
		obj.Names = append(obj.Names, types.NameLink{
			ParentID:  fn.ParentRef,
			ParentSeq: fn.ParentSeq,
			Name:      fn.Name,
			NameSpace: fn.NameSpace,
		})
	}

	return obj, nil
}
