package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/mft"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// VolumeConfig holds the settings of a volume session
type VolumeConfig struct {
	// CacheRecords is the capacity of the parsed record cache
	CacheRecords int
	// Logger receives diagnostics; nil uses the standard logrus logger
	Logger logrus.FieldLogger
}

// Volume is one open NTFS volume. It implements interfaces.MetadataReader
// over an image, resolving MFT entries through the $MFT data runs.
type Volume struct {
	image  io.ReaderAt
	offset int64

	boot        *types.BootSector
	mftRuns     []types.DataRun
	recordCount uint64

	cache     *RecordCache
	sessionID uuid.UUID
	log       logrus.FieldLogger
}

// OpenVolume reads the boot sector and $MFT record of the NTFS volume that
// starts offset bytes into image.
func OpenVolume(ctx context.Context, image io.ReaderAt, offset int64, config VolumeConfig) (*Volume, error) {
	if image == nil {
		return nil, fmt.Errorf("image cannot be nil")
	}

	sessionID := uuid.New()
	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"session": sessionID.String(), "offset": offset})

	bootData := make([]byte, mft.BootSectorSize)
	if _, err := image.ReadAt(bootData, offset); err != nil {
		return nil, fmt.Errorf("failed to read boot sector: %w", err)
	}
	boot, err := mft.ParseBootSector(bootData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boot sector: %w", err)
	}

	cache, err := NewRecordCache(config.CacheRecords)
	if err != nil {
		return nil, err
	}

	v := &Volume{
		image:     image,
		offset:    offset,
		boot:      boot,
		cache:     cache,
		sessionID: sessionID,
		log:       log,
	}

	if err := v.loadMFT(ctx); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"cluster_size": boot.ClusterSize(),
		"record_size":  boot.FileRecordSize,
		"records":      v.recordCount,
	}).Debug("volume opened")

	return v, nil
}

// loadMFT reads $MFT's own FILE record from the boot sector location and
// keeps its data runs for resolving every other entry.
func (v *Volume) loadMFT(ctx context.Context) error {
	recSize := int(v.boot.FileRecordSize)
	raw := make([]byte, recSize)
	pos := v.offset + int64(v.boot.MftCluster)*int64(v.boot.ClusterSize())
	if _, err := v.image.ReadAt(raw, pos); err != nil {
		return fmt.Errorf("failed to read $MFT record at %d: %w", pos, err)
	}

	obj, err := mft.ParseFileRecord(types.MftEntryMFT, raw, v.SectorSize())
	if err != nil {
		return fmt.Errorf("failed to parse $MFT record: %w", err)
	}

	data := obj.Attribute(types.AttrTypeData)
	if data == nil || !data.NonResident || len(data.Runs) == 0 {
		return fmt.Errorf("$MFT has no non-resident $DATA attribute")
	}

	v.mftRuns = data.Runs
	v.recordCount = data.RealSize / uint64(recSize)
	if v.recordCount <= types.MftEntryRoot {
		return fmt.Errorf("$MFT holds only %d records", v.recordCount)
	}
	return nil
}

// SessionID identifies this volume session in logs
func (v *Volume) SessionID() uuid.UUID { return v.sessionID }

// BootSector returns the parsed volume geometry
func (v *Volume) BootSector() *types.BootSector { return v.boot }

// CacheStats returns record cache statistics
func (v *Volume) CacheStats() RecordCacheStats { return v.cache.Stats() }

// Logger returns the session logger
func (v *Volume) Logger() logrus.FieldLogger { return v.log }

func (v *Volume) FirstID() uint64     { return types.FirstMftEntry }
func (v *Volume) LastID() uint64      { return v.recordCount - 1 }
func (v *Volume) RootID() uint64      { return types.MftEntryRoot }
func (v *Volume) OrphanDirID() uint64 { return v.recordCount }
func (v *Volume) ClusterSize() int    { return v.boot.ClusterSize() }
func (v *Volume) SectorSize() int     { return int(v.boot.BytesPerSector) }

// ReadObject loads MFT entry id, consulting the record cache first
func (v *Volume) ReadObject(ctx context.Context, id uint64) (*types.FileObject, error) {
	if id > v.LastID() {
		return nil, fmt.Errorf("%w: %d (last is %d)", types.ErrInvalidID, id, v.LastID())
	}
	if obj, ok := v.cache.Get(id); ok {
		return obj, nil
	}

	raw, err := v.readRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	obj, err := mft.ParseFileRecord(id, raw, v.SectorSize())
	if err != nil {
		return nil, types.NewCorruptionError(id, "file_record", "unreadable FILE record", err)
	}

	v.cache.Put(obj)
	return obj, nil
}

func (v *Volume) readRecord(ctx context.Context, id uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recSize := uint64(v.boot.FileRecordSize)
	raw, err := v.readRuns(v.mftRuns, id*recSize, recSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read FILE record %d: %w", id, err)
	}
	return raw, nil
}

// Materialize returns the content of attr up to its data size. Bytes past
// the initialized size read as zeros.
func (v *Volume) Materialize(ctx context.Context, attr *types.Attribute) ([]byte, error) {
	if err := v.checkMaterialize(ctx, attr); err != nil {
		return nil, err
	}
	if !attr.NonResident {
		return residentCopy(attr), nil
	}

	out, err := v.readRuns(attr.Runs, 0, attr.RealSize)
	if err != nil {
		return nil, err
	}
	if attr.InitSize < attr.RealSize {
		clear(out[attr.InitSize:])
	}
	return out, nil
}

// MaterializeSlack returns the clusters of attr through its allocated size.
// Nothing is zeroed, so remnants past the data size are preserved.
func (v *Volume) MaterializeSlack(ctx context.Context, attr *types.Attribute) ([]byte, error) {
	if err := v.checkMaterialize(ctx, attr); err != nil {
		return nil, err
	}
	if !attr.NonResident {
		return residentCopy(attr), nil
	}

	length := attr.AllocatedSize
	if length < attr.RealSize {
		length = attr.RealSize
	}
	return v.readRuns(attr.Runs, 0, length)
}

func (v *Volume) checkMaterialize(ctx context.Context, attr *types.Attribute) error {
	if attr == nil {
		return fmt.Errorf("attribute cannot be nil")
	}
	if !attr.NonResident {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if attr.StartVCN != 0 {
		return fmt.Errorf("attribute 0x%x is an extension fragment starting at VCN %d", attr.Type, attr.StartVCN)
	}
	return nil
}

func residentCopy(attr *types.Attribute) []byte {
	out := make([]byte, len(attr.Resident))
	copy(out, attr.Resident)
	return out
}

// readRuns reads length bytes starting at byte offset off of the stream
// described by runs. Sparse runs read as zeros.
func (v *Volume) readRuns(runs []types.DataRun, off, length uint64) ([]byte, error) {
	cluster := uint64(v.ClusterSize())
	out := make([]byte, length)

	var streamPos uint64
	filled := uint64(0)
	for _, run := range runs {
		if filled == length {
			break
		}
		runLen := run.ClusterCount * cluster
		runEnd := streamPos + runLen
		want := off + filled
		if want >= runEnd {
			streamPos = runEnd
			continue
		}

		inRun := want - streamPos
		n := runEnd - want
		if n > length-filled {
			n = length - filled
		}

		if !run.Sparse {
			pos := v.offset + int64(run.StartCluster*cluster+inRun)
			if _, err := v.image.ReadAt(out[filled : filled+n], pos); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return nil, fmt.Errorf("%w: short read at image offset %d", types.ErrCorrupted, pos)
				}
				return nil, fmt.Errorf("failed to read image at %d: %w", pos, err)
			}
		}

		filled += n
		streamPos = runEnd
	}

	if filled < length {
		return nil, fmt.Errorf("%w: data runs cover %d of %d bytes", types.ErrCorrupted, filled, length)
	}
	return out, nil
}

// EnumerateUnallocated calls fn for every FILE record not marked in use.
// Extension records and records that fail to parse are skipped.
func (v *Volume) EnumerateUnallocated(ctx context.Context, fn func(*types.FileObject) error) error {
	for id := v.FirstID(); id <= v.LastID(); id++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := v.readRecord(ctx, id)
		if err != nil {
			v.log.WithField("inode", id).WithError(err).Debug("skipping unreadable record")
			continue
		}

		hdr, err := mft.ParseFileRecordHeader(raw)
		if err != nil || hdr.InUse() || hdr.BaseRecordNumber() != 0 {
			continue
		}

		obj, err := mft.ParseFileRecord(id, raw, v.SectorSize())
		if err != nil {
			v.log.WithField("inode", id).WithError(err).Debug("skipping unparsable record")
			continue
		}

		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}
