package types

// BootSector holds the NTFS geometry read from the volume boot record.
type BootSector struct {
	// OEMID is "NTFS    " on a valid volume
	OEMID string
	// BytesPerSector is the logical sector size
	BytesPerSector uint16
	// SectorsPerCluster is the number of sectors in an allocation unit
	SectorsPerCluster uint8
	// TotalSectors is the number of sectors in the volume
	TotalSectors uint64
	// MftCluster is the logical cluster number of $MFT
	MftCluster uint64
	// MftMirrCluster is the logical cluster number of $MFTMirr
	MftMirrCluster uint64
	// FileRecordSize is the size of one FILE record in bytes
	FileRecordSize uint32
	// IndexBlockSize is the size of one INDX block in bytes
	IndexBlockSize uint32
	// SerialNumber is the volume serial number
	SerialNumber uint64
}

// ClusterSize returns the allocation unit size in bytes.
func (b *BootSector) ClusterSize() int {
	return int(b.BytesPerSector) * int(b.SectorsPerCluster)
}

// FileRecordHeader is the fixed header of an MFT FILE record.
type FileRecordHeader struct {
	Magic           uint32
	UpdateSeqOffset uint16
	UpdateSeqCount  uint16
	LogSequence     uint64
	SequenceNumber  uint16
	LinkCount       uint16
	AttributeOffset uint16
	Flags           uint16
	UsedSize        uint32
	AllocatedSize   uint32
	BaseRecord      uint64
	NextAttributeID uint16
	RecordNumber    uint32
}

// InUse reports whether the record is allocated.
func (h *FileRecordHeader) InUse() bool {
	return h.Flags&FileRecordFlagInUse != 0
}

// IsDirectory reports whether the record carries a directory index.
func (h *FileRecordHeader) IsDirectory() bool {
	return h.Flags&FileRecordFlagDirectory != 0
}

// BaseRecordNumber returns the 48-bit MFT entry of the base record, 0 for base records.
func (h *FileRecordHeader) BaseRecordNumber() uint64 {
	return h.BaseRecord & 0x0000FFFFFFFFFFFF
}

// DataRun is one extent of a non-resident attribute.
type DataRun struct {
	// StartCluster is the absolute logical cluster number (ignored when Sparse)
	StartCluster uint64
	// ClusterCount is the run length in clusters
	ClusterCount uint64
	// Sparse is set for runs with no on-disk allocation
	Sparse bool
}

// Attribute is one parsed attribute of a FILE record.
type Attribute struct {
	Type        uint32
	ID          uint16
	Name        string
	Flags       uint16
	NonResident bool

	// Resident holds the attribute content when NonResident is false
	Resident []byte

	// Non-resident fields
	StartVCN      uint64
	LastVCN       uint64
	AllocatedSize uint64
	RealSize      uint64
	InitSize      uint64
	Runs          []DataRun
}

// FileName is a decoded $FILE_NAME structure.
type FileName struct {
	ParentRef     uint64
	ParentSeq     uint16
	Created       uint64
	Modified      uint64
	MftModified   uint64
	Accessed      uint64
	AllocatedSize uint64
	RealSize      uint64
	Flags         uint64
	NameLength    uint8
	NameSpace     uint8
	Name          string
}

// IsDirectory reports whether the $FILE_NAME flags mark a directory.
func (f *FileName) IsDirectory() bool {
	return f.Flags&FileNameFlagDirectory != 0
}

// NameLink is one stored name of an object: the name and the parent it is filed under.
type NameLink struct {
	ParentID  uint64
	ParentSeq uint16
	Name      string
	NameSpace uint8
}

// MetaType classifies an MFT entry.
type MetaType int

const (
	MetaTypeUndefined MetaType = iota
	MetaTypeRegular
	MetaTypeDirectory
)

// FileObject is a parsed MFT entry: the generic inode view the directory code consumes.
type FileObject struct {
	ID         uint64
	Seq        uint16
	Allocated  bool
	Type       MetaType
	Header     FileRecordHeader
	Names      []NameLink
	Attributes []Attribute
}

// Attribute returns the first attribute of the given type, or nil.
func (f *FileObject) Attribute(attrType uint32) *Attribute {
	for i := range f.Attributes {
		if f.Attributes[i].Type == attrType {
			return &f.Attributes[i]
		}
	}
	return nil
}

// AttributeByID returns the attribute with the given type and id, or nil.
func (f *FileObject) AttributeByID(attrType uint32, id uint16) *Attribute {
	for i := range f.Attributes {
		if f.Attributes[i].Type == attrType && f.Attributes[i].ID == id {
			return &f.Attributes[i]
		}
	}
	return nil
}

// IsDirectory reports whether the object is a directory.
func (f *FileObject) IsDirectory() bool {
	return f.Type == MetaTypeDirectory
}
