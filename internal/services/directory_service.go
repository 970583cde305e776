package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/interfaces"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/fixup"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/index"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// Directory assembly stages, used as the "stage" log field and in corruption errors
const (
	stageIndexRoot  = "index_root"
	stageIndexAlloc = "index_allocation"
	stageOrphans    = "orphans"
	stageOrphanDir  = "orphan_dir"
)

// DirectoryConfig holds the tunables of directory assembly
type DirectoryConfig struct {
	// Window bounds the timestamps of recovered deleted entries
	Window index.TimeWindow
	// Logger receives diagnostics; nil uses the standard logrus logger
	Logger logrus.FieldLogger
}

// DirectoryService assembles directory listings from the MFT, including
// deleted entries recovered from index slack and orphans found by walking
// the unallocated objects. It caches the orphan map for the lifetime of the
// service.
type DirectoryService struct {
	reader interfaces.MetadataReader
	window index.TimeWindow
	log    logrus.FieldLogger

	orphanMu sync.Mutex
	orphans  *OrphanMap
}

// NewDirectoryService creates a DirectoryService reading from reader
func NewDirectoryService(reader interfaces.MetadataReader, config DirectoryConfig) (*DirectoryService, error) {
	if reader == nil {
		return nil, fmt.Errorf("metadata reader cannot be nil")
	}

	log := config.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &DirectoryService{
		reader: reader,
		window: config.Window,
		log:    log,
	}, nil
}

// OrphanMap returns the session orphan map, building it on first use. A
// failed build is not cached.
func (s *DirectoryService) OrphanMap(ctx context.Context) (*OrphanMap, error) {
	s.orphanMu.Lock()
	defer s.orphanMu.Unlock()

	if s.orphans != nil {
		return s.orphans, nil
	}

	m, err := BuildOrphanMap(ctx, s.reader)
	if err != nil {
		return nil, err
	}
	s.log.WithField("parents", m.Len()).Debug("orphan map built")
	s.orphans = m
	return m, nil
}

// dirBuild carries the state of one directory open
type dirBuild struct {
	dir      *types.Directory
	log      logrus.FieldLogger
	findings []error
}

func (b *dirBuild) corrupt(stage, reason string, err error) {
	cerr := types.NewCorruptionError(b.dir.Addr, stage, reason, err)
	b.log.WithField("stage", stage).Warn(cerr.Error())
	b.findings = append(b.findings, cerr)
	b.dir.Status = types.StatusCorrupted
}

func (b *dirBuild) result() (*types.Directory, error) {
	if len(b.findings) == 0 {
		return b.dir, nil
	}
	return b.dir, errors.Join(b.findings...)
}

// OpenDirectory builds the listing of directory id. A fatal error returns
// a nil directory. Corruption returns the partial directory with its
// Status set to StatusCorrupted and an error matching types.ErrCorrupted.
func (s *DirectoryService) OpenDirectory(ctx context.Context, id uint64) (*types.Directory, error) {
	r := s.reader

	if id == r.OrphanDirID() {
		return s.openOrphanDirectory(ctx)
	}
	if id < r.FirstID() || id > r.LastID() {
		return nil, types.WrapFatal(fmt.Errorf("%w: %d", types.ErrInvalidID, id), "open directory")
	}

	obj, err := r.ReadObject(ctx, id)
	if err != nil {
		return nil, types.WrapFatal(err, fmt.Sprintf("loading directory %d", id))
	}

	b := &dirBuild{
		dir: types.NewDirectory(id),
		log: s.log.WithField("inode", id),
	}

	rootAttr := obj.Attribute(types.AttrTypeIndexRoot)
	if rootAttr == nil {
		b.corrupt(stageIndexRoot, "$INDEX_ROOT not found", nil)
		return b.result()
	}
	if rootAttr.NonResident {
		b.corrupt(stageIndexRoot, "$INDEX_ROOT is not resident", nil)
		return b.result()
	}
	root, err := index.ParseIndexRoot(rootAttr.Resident)
	if err != nil {
		b.corrupt(stageIndexRoot, "unreadable $INDEX_ROOT", err)
		return b.result()
	}
	if root.AttrType != types.AttrTypeFileName {
		b.corrupt(stageIndexRoot, fmt.Sprintf("index type 0x%x is not $FILE_NAME", root.AttrType), nil)
		return b.result()
	}

	if id != r.RootID() {
		if err := s.addDotEntries(b.dir, obj); err != nil {
			return nil, err
		}
	}

	if err := index.CheckRootList(root.List, len(rootAttr.Resident)-types.IndexRootHeaderSize); err != nil {
		b.corrupt(stageIndexRoot, "invalid index root list offsets", err)
		return b.result()
	}

	listStart := types.IndexRootHeaderSize
	entries := rootAttr.Resident[listStart+int(root.List.BeginOffset) : listStart+int(root.List.AllocatedOffset)]
	used := int(root.List.UsedOffset - root.List.BeginOffset)

	b.log.WithField("stage", stageIndexRoot).Debugf("decoding %d root entry bytes (%d in use)", len(entries), used)
	if err := index.DecodeEntries(entries, used, s.decodeOptions(obj, b.log), b.dir); err != nil {
		return nil, err
	}

	if err := s.readIndexAllocation(ctx, obj, root, b); err != nil {
		return nil, err
	}

	if err := s.addOrphans(ctx, id, b); err != nil {
		return nil, err
	}

	if id == r.RootID() {
		if err := b.dir.Add(types.NameRecord{
			MetaAddr: r.OrphanDirID(),
			Name:     types.OrphanDirName,
			Type:     types.NameTypeDirectory,
			Flags:    types.NameFlagAllocated,
		}); err != nil {
			return nil, types.WrapFatal(err, "adding orphan directory entry")
		}
	}

	return b.result()
}

// addDotEntries synthesizes "." and one ".." per name of the directory
func (s *DirectoryService) addDotEntries(dir *types.Directory, obj *types.FileObject) error {
	if err := dir.Add(types.NameRecord{
		MetaAddr: obj.ID,
		MetaSeq:  obj.Seq,
		Name:     ".",
		Type:     types.NameTypeDirectory,
		Flags:    types.NameFlagAllocated,
	}); err != nil {
		return types.WrapFatal(err, "adding . entry")
	}

	for _, link := range obj.Names {
		if err := dir.Add(types.NameRecord{
			MetaAddr: link.ParentID,
			MetaSeq:  link.ParentSeq,
			Name:     "..",
			Type:     types.NameTypeDirectory,
			Flags:    types.NameFlagAllocated,
		}); err != nil {
			return types.WrapFatal(err, "adding .. entry")
		}
	}
	return nil
}

func (s *DirectoryService) decodeOptions(obj *types.FileObject, log logrus.FieldLogger) index.DecodeOptions {
	return index.DecodeOptions{
		FirstID:    s.reader.FirstID(),
		LastID:     s.reader.LastID(),
		DirDeleted: !obj.Allocated,
		Window:     s.window,
		Logger:     log,
	}
}

// readIndexAllocation locates every INDX block in $INDEX_ALLOCATION by
// scanning for the block magic, then decodes each block's entries and slack.
// Problems with a single block are recorded and the scan moves on.
func (s *DirectoryService) readIndexAllocation(ctx context.Context, obj *types.FileObject, root *types.IndexRoot, b *dirBuild) error {
	log := b.log.WithField("stage", stageIndexAlloc)

	attr := obj.Attribute(types.AttrTypeIndexAllocation)
	if attr == nil {
		if root.List.HasChildren() {
			b.corrupt(stageIndexAlloc, "$INDEX_ROOT has children but $INDEX_ALLOCATION is missing", nil)
		}
		return nil
	}
	if !attr.NonResident {
		b.corrupt(stageIndexAlloc, "$INDEX_ALLOCATION is resident", nil)
		return nil
	}

	data, err := s.reader.MaterializeSlack(ctx, attr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.WrapFatal(ctxErr, "reading $INDEX_ALLOCATION")
		}
		if errors.Is(err, types.ErrFatal) {
			return err
		}
		b.corrupt(stageIndexAlloc, "cannot read $INDEX_ALLOCATION", err)
		return nil
	}

	stride := s.reader.ClusterSize()
	if bs := int(root.IndexBlockSize); bs > 0 && (stride <= 0 || bs < stride) {
		stride = bs
	}

	offsets := index.ScanIndexBlocks(data, stride)
	log.Debugf("found %d index blocks in %d bytes (stride %d)", len(offsets), len(data), stride)

	opts := s.decodeOptions(obj, log)
	for i, start := range offsets {
		if err := ctx.Err(); err != nil {
			return types.WrapFatal(err, "reading index blocks")
		}

		end := len(data)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}

		if err := s.decodeIndexBlock(data[start:end], start, opts, b); err != nil {
			return err
		}
	}

	return nil
}

// decodeIndexBlock fixes up and decodes one INDX block. block runs to the
// next block magic, so slack past the node's allocated size is included.
func (s *DirectoryService) decodeIndexBlock(block []byte, offset int, opts index.DecodeOptions, b *dirBuild) error {
	if len(block) < types.IndexRecordHeaderSize+types.IndexListHeaderSize {
		b.corrupt(stageIndexAlloc, fmt.Sprintf("index block at offset %d is truncated", offset), nil)
		return nil
	}

	if err := fixup.Apply(block, len(block), s.reader.SectorSize()); err != nil {
		b.corrupt(stageIndexAlloc, fmt.Sprintf("index block at offset %d failed fixup", offset), err)
		return nil
	}

	list := index.ParseListHeader(block[types.IndexRecordHeaderSize:])
	if err := index.CheckBlockList(list, types.IndexRecordHeaderSize, len(block)); err != nil {
		b.corrupt(stageIndexAlloc, fmt.Sprintf("index block at offset %d has invalid list offsets", offset), err)
		return nil
	}

	entryStart := types.IndexRecordHeaderSize + int(list.BeginOffset)
	used := int(list.UsedOffset - list.BeginOffset)

	return index.DecodeEntries(block[entryStart:], used, opts, b.dir)
}

// addOrphans adds the unallocated objects whose names still point at the
// directory but are no longer reachable through its index
func (s *DirectoryService) addOrphans(ctx context.Context, id uint64, b *dirBuild) error {
	m, err := s.OrphanMap(ctx)
	if err != nil {
		if errors.Is(err, types.ErrFatal) || ctx.Err() != nil {
			return types.WrapFatal(err, "loading orphan map")
		}
		b.corrupt(stageOrphans, "cannot build orphan map", err)
		return nil
	}

	children, ok := m.Lookup(id)
	if !ok {
		return nil
	}

	log := b.log.WithField("stage", stageOrphans)
	for _, child := range children {
		obj, err := s.reader.ReadObject(ctx, child)
		if err != nil {
			log.WithError(err).Debugf("skipping unreadable orphan %d", child)
			continue
		}

		for _, link := range obj.Names {
			if link.ParentID != id {
				continue
			}
			if err := b.dir.Add(types.NameRecord{
				MetaAddr: obj.ID,
				MetaSeq:  obj.Seq,
				Name:     link.Name,
				Type:     types.NameTypeUndefined,
				Flags:    types.NameFlagUnallocated,
			}); err != nil {
				return types.WrapFatal(err, "adding orphan entry")
			}
		}
	}

	return nil
}

// openOrphanDirectory lists the unallocated objects none of whose names can
// be traced to a live parent directory
func (s *DirectoryService) openOrphanDirectory(ctx context.Context) (*types.Directory, error) {
	r := s.reader
	b := &dirBuild{
		dir: types.NewDirectory(r.OrphanDirID()),
		log: s.log.WithFields(logrus.Fields{"inode": r.OrphanDirID(), "stage": stageOrphanDir}),
	}

	verifier := newParentVerifier(r)

	err := r.EnumerateUnallocated(ctx, func(obj *types.FileObject) error {
		for _, link := range obj.Names {
			if verifier.verified(ctx, link) {
				return nil
			}
		}

		nameType := types.NameTypeRegular
		if obj.IsDirectory() {
			nameType = types.NameTypeDirectory
		}

		if len(obj.Names) == 0 {
			return b.dir.Add(types.NameRecord{
				MetaAddr: obj.ID,
				MetaSeq:  obj.Seq,
				Name:     fmt.Sprintf("OrphanFile-%d", obj.ID),
				Type:     nameType,
				Flags:    types.NameFlagUnallocated,
			})
		}

		for _, link := range obj.Names {
			if err := b.dir.Add(types.NameRecord{
				MetaAddr: obj.ID,
				MetaSeq:  obj.Seq,
				Name:     link.Name,
				Type:     nameType,
				Flags:    types.NameFlagUnallocated,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, types.WrapFatal(err, "listing orphan directory")
	}

	b.log.Debugf("found %d orphan names", len(b.dir.Entries))
	return b.result()
}

// parentVerifier checks whether a name's parent is a live directory with a
// matching sequence number, caching parent lookups
type parentVerifier struct {
	reader  interfaces.MetadataReader
	parents map[uint64]*types.FileObject
}

func newParentVerifier(reader interfaces.MetadataReader) *parentVerifier {
	return &parentVerifier{
		reader:  reader,
		parents: make(map[uint64]*types.FileObject),
	}
}

func (v *parentVerifier) verified(ctx context.Context, link types.NameLink) bool {
	if link.ParentID < v.reader.FirstID() || link.ParentID > v.reader.LastID() {
		return false
	}

	parent, seen := v.parents[link.ParentID]
	if !seen {
		obj, err := v.reader.ReadObject(ctx, link.ParentID)
		if err != nil {
			obj = nil
		}
		v.parents[link.ParentID] = obj
		parent = obj
	}

	return parent != nil && parent.Allocated && parent.IsDirectory() && parent.Seq == link.ParentSeq
}
