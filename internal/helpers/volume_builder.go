package helpers

import (
	"encoding/binary"
	"sort"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/mft"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// Geometry of every image built by BuildVolumeImage
const (
	ImageSectorSize  = 512
	ImageClusterSize = 4096
	ImageRecordSize  = 1024
	ImageMftCluster  = 4
)

// BuildBootSector encodes an NTFS boot sector.
func BuildBootSector(bytesPerSector uint16, sectorsPerCluster uint8, mftCluster uint64, recordSize, indexSize int8) []byte {
	data := make([]byte, mft.BootSectorSize)
	data[0] = 0xEB
	data[1] = 0x52
	data[2] = 0x90
	copy(data[3:11], mft.NTFSOEMID)
	binary.LittleEndian.PutUint16(data[0x0B:], bytesPerSector)
	data[0x0D] = sectorsPerCluster
	binary.LittleEndian.PutUint64(data[0x28:], 2048)
	binary.LittleEndian.PutUint64(data[0x30:], mftCluster)
	binary.LittleEndian.PutUint64(data[0x38:], 2)
	data[0x40] = byte(recordSize)
	data[0x44] = byte(indexSize)
	binary.LittleEndian.PutUint64(data[0x48:], 0x5EED5EED)
	data[510] = 0x55
	data[511] = 0xAA
	return data
}

// VolumeSpec describes a synthetic volume. Record 0 ($MFT) is generated.
type VolumeSpec struct {
	// RecordCount is the number of FILE records in the $MFT
	RecordCount int
	// Records maps MFT entries to their content; missing entries stay zeroed
	Records map[uint64]FileRecordSpec
	// Clusters maps cluster numbers to raw content placed there
	Clusters map[uint64][]byte
}

// BuildVolumeImage lays out a volume with 4096-byte clusters, 1024-byte
// records and the $MFT starting at cluster 4.
func BuildVolumeImage(spec VolumeSpec) []byte {
	mftBytes := spec.RecordCount * ImageRecordSize
	mftClusters := (mftBytes + ImageClusterSize - 1) / ImageClusterSize

	size := (ImageMftCluster + mftClusters) * ImageClusterSize
	for c, data := range spec.Clusters {
		end := int(c)*ImageClusterSize + len(data)
		if end > size {
			size = end
		}
	}
	size = roundUp(size, ImageClusterSize)
	image := make([]byte, size)

	copy(image, BuildBootSector(ImageSectorSize, ImageClusterSize/ImageSectorSize, ImageMftCluster, -10, 1))

	records := map[uint64]FileRecordSpec{
		types.MftEntryMFT: {
			Seq:   1,
			InUse: true,
			Attributes: []AttributeSpec{
				{Type: types.AttrTypeFileName, Resident: BuildFileName(FileNameSpec{ParentRef: types.MftEntryRoot, ParentSeq: 5, Name: "$MFT", NameSpace: types.NameSpaceWinDOS})},
				{Type: types.AttrTypeData, Runs: EncodeRun(uint32(mftClusters), ImageMftCluster), RealSize: uint64(mftBytes), LastVCN: uint64(mftClusters - 1)},
			},
		},
	}
	for id, rec := range spec.Records {
		records[id] = rec
	}

	ids := make([]uint64, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	base := ImageMftCluster * ImageClusterSize
	for _, id := range ids {
		if int(id) >= spec.RecordCount {
			continue
		}
		raw := BuildFileRecord(records[id], ImageRecordSize, ImageSectorSize)
		copy(image[base+int(id)*ImageRecordSize:], raw)
	}

	for c, data := range spec.Clusters {
		copy(image[int(c)*ImageClusterSize:], data)
	}

	return image
}

// Entries of the sample volume built by BuildSampleVolume
const (
	SampleHelloID  uint64 = 10
	SampleDocsID   uint64 = 11
	SampleReportID uint64 = 12
	SampleOldDocID uint64 = 13
	SampleLostID   uint64 = 14
	SampleStrayID  uint64 = 15

	sampleIndexCluster = 10
)

// BuildSampleVolume builds a small volume:
//
//	/hello.txt                (10)
//	/docs                     (11, index in one INDX block at cluster 10)
//	/docs/report.doc          (12)
//	/docs/old.doc             (13, deleted, only in the INDX slack)
//	lost.txt                  (14, unallocated, parent /docs)
//	stray.bin                 (15, unallocated, parent 9 which is unused)
func BuildSampleVolume() []byte {
	win32 := types.NameSpaceWin32

	fileName := func(parent uint64, parentSeq uint16, name string, dir bool) []byte {
		return BuildFileName(FileNameSpec{ParentRef: parent, ParentSeq: parentSeq, Name: name, NameSpace: win32, Directory: dir})
	}
	entry := func(ref uint64, seq uint16, parent uint64, name string, dir, deleted bool) []byte {
		return BuildIndexEntry(IndexEntrySpec{
			FileRef:          ref,
			Seq:              seq,
			ZeroStreamLength: deleted,
			FileName:         FileNameSpec{ParentRef: parent, ParentSeq: 1, Name: name, NameSpace: win32, Directory: dir},
		})
	}
	join := func(parts ...[]byte) []byte {
		var out []byte
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}

	rootEntries := join(
		entry(SampleHelloID, 1, types.MftEntryRoot, "hello.txt", false, false),
		entry(SampleDocsID, 1, types.MftEntryRoot, "docs", true, false),
		BuildLastEntry(),
	)

	docsBlock := BuildIndexBlock(0, ImageClusterSize, ImageSectorSize,
		join(entry(SampleReportID, 1, SampleDocsID, "report.doc", false, false), BuildLastEntry()),
		entry(SampleOldDocID, 3, SampleDocsID, "old.doc", false, true))

	return BuildVolumeImage(VolumeSpec{
		RecordCount: 16,
		Records: map[uint64]FileRecordSpec{
			types.MftEntryRoot: {
				Seq:       5,
				InUse:     true,
				Directory: true,
				Attributes: []AttributeSpec{
					{Type: types.AttrTypeFileName, Resident: fileName(types.MftEntryRoot, 5, ".", true)},
					{Type: types.AttrTypeIndexRoot, Name: "$I30", Resident: BuildIndexRoot(types.AttrTypeFileName, ImageClusterSize, 0, rootEntries, nil)},
				},
			},
			SampleHelloID: {
				Seq:   1,
				InUse: true,
				Attributes: []AttributeSpec{
					{Type: types.AttrTypeFileName, Resident: fileName(types.MftEntryRoot, 5, "hello.txt", false)},
					{Type: types.AttrTypeData, Resident: []byte("hello, world\n")},
				},
			},
			SampleDocsID: {
				Seq:       1,
				InUse:     true,
				Directory: true,
				Attributes: []AttributeSpec{
					{Type: types.AttrTypeFileName, Resident: fileName(types.MftEntryRoot, 5, "docs", true)},
					{Type: types.AttrTypeIndexRoot, Name: "$I30", Resident: BuildIndexRoot(types.AttrTypeFileName, ImageClusterSize, types.IndexListFlagHasChildren, BuildLastEntry(), nil)},
					{Type: types.AttrTypeIndexAllocation, Name: "$I30", Runs: EncodeRun(1, sampleIndexCluster), RealSize: ImageClusterSize},
				},
			},
			SampleReportID: {
				Seq:   1,
				InUse: true,
				Attributes: []AttributeSpec{
					{Type: types.AttrTypeFileName, Resident: fileName(SampleDocsID, 1, "report.doc", false)},
					{Type: types.AttrTypeData, Resident: []byte("quarterly")},
					{Type: types.AttrTypeData, ID: 3, Name: "Zone.Identifier", Resident: []byte("[ZoneTransfer]")},
				},
			},
			SampleLostID: {
				Seq: 2,
				Attributes: []AttributeSpec{
					{Type: types.AttrTypeFileName, Resident: fileName(SampleDocsID, 1, "lost.txt", false)},
				},
			},
			SampleStrayID: {
				Seq: 4,
				Attributes: []AttributeSpec{
					{Type: types.AttrTypeFileName, Resident: fileName(9, 1, "stray.bin", false)},
				},
			},
		},
		Clusters: map[uint64][]byte{
			sampleIndexCluster: docsBlock,
		},
	})
}
