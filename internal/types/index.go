package types

// IndexListHeader is the entry list header shared by $INDEX_ROOT and INDX
// blocks. Offsets are relative to the start of the header itself.
type IndexListHeader struct {
	// BeginOffset is the offset of the first index entry
	BeginOffset uint32
	// UsedOffset is the end of the entries that are part of the tree
	UsedOffset uint32
	// AllocatedOffset is the end of the space reserved for entries
	AllocatedOffset uint32
	// Flags holds IndexListFlagHasChildren
	Flags uint32
}

// HasChildren reports whether the node references sub-nodes.
func (h *IndexListHeader) HasChildren() bool {
	return h.Flags&IndexListFlagHasChildren != 0
}

// IndexRoot is the resident $INDEX_ROOT header.
type IndexRoot struct {
	// AttrType is the attribute the index is sorted by ($FILE_NAME for directories)
	AttrType uint32
	// CollationRule is the sort rule
	CollationRule uint32
	// IndexBlockSize is the size of each INDX block in $INDEX_ALLOCATION
	IndexBlockSize uint32
	// ClustersPerBlock is the INDX block size in clusters
	ClustersPerBlock uint8
	// List is the entry list header
	List IndexListHeader
}

// IndexRecordHeader is the header of one INDX block.
type IndexRecordHeader struct {
	Magic           uint32
	UpdateSeqOffset uint16
	UpdateSeqCount  uint16
	LogSequence     uint64
	VCN             uint64
	List            IndexListHeader
}

// IndexEntryHeader is the fixed header of one index entry.
type IndexEntryHeader struct {
	// FileRef is the 48-bit MFT entry the name refers to
	FileRef uint64
	// SeqNum is the sequence number of the referenced entry
	SeqNum uint16
	// EntryLength is the total length of this entry
	EntryLength uint16
	// StreamLength is the length of the embedded $FILE_NAME
	StreamLength uint16
	// Flags holds IndexEntryFlagHasChild and IndexEntryFlagLast
	Flags uint32
}
