// Package helpers builds raw NTFS structures for tests and fixtures.
package helpers

import (
	"encoding/binary"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/fixup"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/mft"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// ValidTimestamp is an NTFS timestamp inside the deleted-entry plausibility window (2005-06-01)
const ValidTimestamp uint64 = 127620000000000000

// FileNameSpec describes a $FILE_NAME structure to build.
type FileNameSpec struct {
	ParentRef uint64
	ParentSeq uint16
	Name      string
	NameSpace uint8
	Directory bool
	Created   uint64
	Modified  uint64
	Accessed  uint64
	Allocated uint64
	Real      uint64
}

// BuildFileName encodes a $FILE_NAME structure. Zero timestamps default to
// ValidTimestamp.
func BuildFileName(spec FileNameSpec) []byte {
	name := mft.EncodeName(spec.Name)
	buf := make([]byte, types.FileNameHeaderSize+len(name))

	ts := func(v uint64) uint64 {
		if v == 0 {
			return ValidTimestamp
		}
		return v
	}

	binary.LittleEndian.PutUint64(buf[0:], spec.ParentRef&0x0000FFFFFFFFFFFF|uint64(spec.ParentSeq)<<48)
	binary.LittleEndian.PutUint64(buf[8:], ts(spec.Created))
	binary.LittleEndian.PutUint64(buf[16:], ts(spec.Modified))
	binary.LittleEndian.PutUint64(buf[24:], ts(spec.Modified))
	binary.LittleEndian.PutUint64(buf[32:], ts(spec.Accessed))
	binary.LittleEndian.PutUint64(buf[40:], spec.Allocated)
	binary.LittleEndian.PutUint64(buf[48:], spec.Real)
	if spec.Directory {
		binary.LittleEndian.PutUint64(buf[56:], types.FileNameFlagDirectory)
	}
	buf[64] = byte(len(name) / 2)
	buf[65] = spec.NameSpace
	copy(buf[types.FileNameHeaderSize:], name)

	return buf
}

// IndexEntrySpec describes one index entry to build.
type IndexEntrySpec struct {
	FileRef  uint64
	Seq      uint16
	FileName FileNameSpec
	// ZeroStreamLength clears the stream length as a deleting driver would
	ZeroStreamLength bool
	Last             bool
}

// BuildIndexEntry encodes an index entry carrying a $FILE_NAME key. The entry
// length is rounded up to 8 bytes.
func BuildIndexEntry(spec IndexEntrySpec) []byte {
	fn := BuildFileName(spec.FileName)
	length := roundUp(types.IndexEntryHeaderSize+len(fn), 8)
	buf := make([]byte, length)

	binary.LittleEndian.PutUint64(buf[0:], spec.FileRef&0x0000FFFFFFFFFFFF|uint64(spec.Seq)<<48)
	binary.LittleEndian.PutUint16(buf[8:], uint16(length))
	if !spec.ZeroStreamLength {
		binary.LittleEndian.PutUint16(buf[10:], uint16(len(fn)))
	}
	if spec.Last {
		binary.LittleEndian.PutUint32(buf[12:], types.IndexEntryFlagLast)
	}
	copy(buf[types.IndexEntryHeaderSize:], fn)

	return buf
}

// BuildLastEntry encodes the terminating entry of an index node.
func BuildLastEntry() []byte {
	buf := make([]byte, types.IndexEntryHeaderSize)
	binary.LittleEndian.PutUint16(buf[8:], types.IndexEntryHeaderSize)
	binary.LittleEndian.PutUint32(buf[12:], types.IndexEntryFlagLast)
	return buf
}

// BuildIndexRoot encodes a resident $INDEX_ROOT value with the given entries
// and trailing slack past the used area.
func BuildIndexRoot(attrType uint32, blockSize uint32, flags uint32, entries []byte, slack []byte) []byte {
	listLen := types.IndexListHeaderSize + len(entries)
	buf := make([]byte, types.IndexRootHeaderSize+listLen+len(slack))

	binary.LittleEndian.PutUint32(buf[0:], attrType)
	binary.LittleEndian.PutUint32(buf[4:], 1)
	binary.LittleEndian.PutUint32(buf[8:], blockSize)
	buf[12] = 1

	list := buf[types.IndexRootHeaderSize:]
	binary.LittleEndian.PutUint32(list[0:], types.IndexListHeaderSize)
	binary.LittleEndian.PutUint32(list[4:], uint32(listLen))
	binary.LittleEndian.PutUint32(list[8:], uint32(listLen+len(slack)))
	binary.LittleEndian.PutUint32(list[12:], flags)
	copy(list[types.IndexListHeaderSize:], entries)
	copy(list[listLen:], slack)

	return buf
}

// indxEntryStart is where entries begin in a built INDX block: after the
// record header, the list header and the update sequence array
const indxEntryStart = 0x40

// BuildIndexBlock encodes an INDX block of blockSize bytes holding entries
// in its used area and slack after it, then applies update sequence
// protection.
func BuildIndexBlock(vcn uint64, blockSize, sectorSize int, entries, slack []byte) []byte {
	buf := make([]byte, blockSize)
	sectors := blockSize / sectorSize

	binary.LittleEndian.PutUint32(buf[0:], types.IndexRecordMagic)
	binary.LittleEndian.PutUint16(buf[4:], 0x28)
	binary.LittleEndian.PutUint16(buf[6:], uint16(sectors+1))
	binary.LittleEndian.PutUint64(buf[16:], vcn)

	list := buf[types.IndexRecordHeaderSize:]
	begin := indxEntryStart - types.IndexRecordHeaderSize
	used := begin + len(entries)
	binary.LittleEndian.PutUint32(list[0:], uint32(begin))
	binary.LittleEndian.PutUint32(list[4:], uint32(used))
	binary.LittleEndian.PutUint32(list[8:], uint32(blockSize-types.IndexRecordHeaderSize))

	copy(buf[indxEntryStart:], entries)
	copy(buf[indxEntryStart+len(entries):], slack)

	if err := fixup.Protect(buf, sectorSize, 0x0001); err != nil {
		panic(err)
	}
	return buf
}

// AttributeSpec describes one attribute to place in a FILE record.
type AttributeSpec struct {
	Type     uint32
	ID       uint16
	Name     string
	Resident []byte
	// Runs is an encoded run list; when set the attribute is non-resident
	Runs     []byte
	RealSize uint64
	LastVCN  uint64

	// AllocatedSize and InitSize default to RealSize when zero
	AllocatedSize uint64
	InitSize      uint64
}

// FileRecordSpec describes a FILE record to build.
type FileRecordSpec struct {
	Seq        uint16
	InUse      bool
	Directory  bool
	Attributes []AttributeSpec
}

// BuildFileRecord encodes a FILE record of recordSize bytes with update
// sequence protection applied.
func BuildFileRecord(spec FileRecordSpec, recordSize, sectorSize int) []byte {
	buf := make([]byte, recordSize)
	sectors := recordSize / sectorSize

	binary.LittleEndian.PutUint32(buf[0:], types.FileRecordMagic)
	binary.LittleEndian.PutUint16(buf[4:], 0x30)
	binary.LittleEndian.PutUint16(buf[6:], uint16(sectors+1))
	binary.LittleEndian.PutUint16(buf[16:], spec.Seq)
	binary.LittleEndian.PutUint16(buf[18:], 1)

	attrOff := roundUp(0x30+2*(sectors+1), 8)
	binary.LittleEndian.PutUint16(buf[20:], uint16(attrOff))

	var flags uint16
	if spec.InUse {
		flags |= types.FileRecordFlagInUse
	}
	if spec.Directory {
		flags |= types.FileRecordFlagDirectory
	}
	binary.LittleEndian.PutUint16(buf[22:], flags)

	off := attrOff
	for _, a := range spec.Attributes {
		encoded := encodeAttribute(a)
		if off+len(encoded)+8 > recordSize {
			break
		}
		copy(buf[off:], encoded)
		off += len(encoded)
	}
	binary.LittleEndian.PutUint32(buf[off:], types.AttrTypeEnd)
	off += 8

	binary.LittleEndian.PutUint32(buf[24:], uint32(off))
	binary.LittleEndian.PutUint32(buf[28:], uint32(recordSize))

	if err := fixup.Protect(buf, sectorSize, 0x0001); err != nil {
		panic(err)
	}
	return buf
}

func encodeAttribute(a AttributeSpec) []byte {
	name := mft.EncodeName(a.Name)

	if a.Runs == nil {
		nameOff := 24
		contentOff := roundUp(nameOff+len(name), 8)
		length := roundUp(contentOff+len(a.Resident), 8)
		buf := make([]byte, length)
		binary.LittleEndian.PutUint32(buf[0:], a.Type)
		binary.LittleEndian.PutUint32(buf[4:], uint32(length))
		buf[9] = byte(len(name) / 2)
		binary.LittleEndian.PutUint16(buf[10:], uint16(nameOff))
		binary.LittleEndian.PutUint16(buf[14:], a.ID)
		binary.LittleEndian.PutUint32(buf[16:], uint32(len(a.Resident)))
		binary.LittleEndian.PutUint16(buf[20:], uint16(contentOff))
		copy(buf[nameOff:], name)
		copy(buf[contentOff:], a.Resident)
		return buf
	}

	nameOff := 64
	runOff := roundUp(nameOff+len(name), 8)
	length := roundUp(runOff+len(a.Runs)+1, 8)
	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0:], a.Type)
	binary.LittleEndian.PutUint32(buf[4:], uint32(length))
	buf[8] = 1
	buf[9] = byte(len(name) / 2)
	binary.LittleEndian.PutUint16(buf[10:], uint16(nameOff))
	binary.LittleEndian.PutUint16(buf[14:], a.ID)
	binary.LittleEndian.PutUint64(buf[24:], a.LastVCN)
	binary.LittleEndian.PutUint16(buf[32:], uint16(runOff))
	allocated, initialized := a.AllocatedSize, a.InitSize
	if allocated == 0 {
		allocated = a.RealSize
	}
	if initialized == 0 {
		initialized = a.RealSize
	}
	binary.LittleEndian.PutUint64(buf[40:], allocated)
	binary.LittleEndian.PutUint64(buf[48:], a.RealSize)
	binary.LittleEndian.PutUint64(buf[56:], initialized)
	copy(buf[nameOff:], name)
	copy(buf[runOff:], a.Runs)
	return buf
}

// EncodeRun encodes a single data run with 4-byte length and offset fields.
func EncodeRun(clusters uint32, lcnDelta int32) []byte {
	buf := make([]byte, 9)
	buf[0] = 0x44
	binary.LittleEndian.PutUint32(buf[1:], clusters)
	binary.LittleEndian.PutUint32(buf[5:], uint32(lcnDelta))
	return buf
}

func roundUp(v, n int) int {
	return (v + n - 1) / n * n
}
