// Package types implements on-disk data structures and in-memory records for
// the NTFS file system as seen by the directory reconstruction code.
package types

// Attribute type codes
const (
	AttrTypeStandardInformation uint32 = 0x10
	AttrTypeAttributeList       uint32 = 0x20
	AttrTypeFileName            uint32 = 0x30
	AttrTypeObjectID            uint32 = 0x40
	AttrTypeSecurityDescriptor  uint32 = 0x50
	AttrTypeVolumeName          uint32 = 0x60
	AttrTypeVolumeInformation   uint32 = 0x70
	AttrTypeData                uint32 = 0x80
	AttrTypeIndexRoot           uint32 = 0x90
	AttrTypeIndexAllocation     uint32 = 0xA0
	AttrTypeBitmap              uint32 = 0xB0
	AttrTypeReparsePoint        uint32 = 0xC0
	AttrTypeEnd                 uint32 = 0xFFFFFFFF
)

// Well-known MFT entries
const (
	MftEntryMFT     uint64 = 0
	MftEntryMFTMirr uint64 = 1
	MftEntryLogFile uint64 = 2
	MftEntryVolume  uint64 = 3
	MftEntryAttrDef uint64 = 4
	MftEntryRoot    uint64 = 5
	MftEntryBitmap  uint64 = 6
	MftEntryBoot    uint64 = 7
)

// FirstMftEntry is the lowest valid object identifier.
const FirstMftEntry uint64 = 0

// FILE record header
const (
	// FileRecordMagic is "FILE" read as a little-endian uint32
	FileRecordMagic uint32 = 0x454c4946

	// FileRecordFlagInUse marks an allocated MFT entry
	FileRecordFlagInUse uint16 = 0x0001

	// FileRecordFlagDirectory marks an entry carrying a $I30 index
	FileRecordFlagDirectory uint16 = 0x0002

	// FileRecordHeaderSize is the fixed part of the FILE record header
	FileRecordHeaderSize = 48
)

// Index block ("INDX") layout
const (
	// IndexRecordMagic is "INDX" read as a little-endian uint32
	IndexRecordMagic uint32 = 0x58444e49

	// IndexRecordHeaderSize is the offset of the entry list header within an index block
	IndexRecordHeaderSize = 24

	// IndexRootHeaderSize is the offset of the entry list header within $INDEX_ROOT
	IndexRootHeaderSize = 16

	// IndexListHeaderSize is the size of the entry list header
	IndexListHeaderSize = 16

	// IndexListFlagHasChildren is set when the root has sub-nodes in $INDEX_ALLOCATION
	IndexListFlagHasChildren uint32 = 0x01
)

// Index entry layout
const (
	// IndexEntryHeaderSize is the size of an index entry before its $FILE_NAME stream
	IndexEntryHeaderSize = 16

	// FileNameHeaderSize is the size of $FILE_NAME before the UTF-16 name
	FileNameHeaderSize = 66

	// FileNameStructSize is the declared size of the $FILE_NAME structure,
	// including its first name character
	FileNameStructSize = 68

	// IndexEntryFlagHasChild marks an entry with a sub-node VCN
	IndexEntryFlagHasChild uint32 = 0x01

	// IndexEntryFlagLast marks the terminating entry of a node
	IndexEntryFlagLast uint32 = 0x02
)

// $FILE_NAME name spaces
const (
	NameSpacePOSIX  uint8 = 0
	NameSpaceWin32  uint8 = 1
	NameSpaceDOS    uint8 = 2
	NameSpaceWinDOS uint8 = 3
)

// FileNameFlagDirectory is the $FILE_NAME flag bit for directories
const FileNameFlagDirectory uint64 = 0x10000000

// Naming limits
const (
	// MaxNameLenUTF8 is the maximum size in bytes of a decoded name
	MaxNameLenUTF8 = 255 * 4

	// ControlCharReplacement replaces control characters in decoded names
	ControlCharReplacement = '^'
)

// Orphan handling names
const (
	// OrphanDirName is the name of the virtual directory that holds orphan files
	OrphanDirName = "$OrphanFiles"

	// OrphanPathSegment terminates a path whose ancestry cannot be verified
	OrphanPathSegment = "ORPHAN"
)

// Path reconstruction limits
const (
	// MaxPathDepth caps directory nesting during path reconstruction
	MaxPathDepth = 128

	// PathBufferSize is the size of the shared path buffer
	PathBufferSize = 4096
)

// Default geometry
const (
	DefaultSectorSize  = 512
	DefaultClusterSize = 4096
)
