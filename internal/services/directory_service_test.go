package services

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/helpers"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

func newTestDirectoryService(t *testing.T, r *fakeReader) *DirectoryService {
	t.Helper()
	svc, err := NewDirectoryService(r, DirectoryConfig{})
	require.NoError(t, err)
	return svc
}

// newVolumeRoot adds the root directory with the given index entries
func newVolumeRoot(r *fakeReader, entries ...[]byte) {
	all := append(entries, helpers.BuildLastEntry())
	r.addDir(types.MftEntryRoot, 5, joinBytes(all...), link(types.MftEntryRoot, 5, "."))
}

func TestNewDirectoryServiceNilReader(t *testing.T) {
	_, err := NewDirectoryService(nil, DirectoryConfig{})
	assert.Error(t, err)
}

func TestOpenDirectoryRootEntriesWithSlack(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	live := joinBytes(
		indexEntry(70, 1, 64, "a.txt", false),
		indexEntry(71, 1, 64, "b.txt", false),
		indexEntry(72, 3, 64, "c", true),
		helpers.BuildLastEntry(),
	)
	slack := deletedEntry(73, 2, 64, "d.txt")
	r.add(&types.FileObject{
		ID:        64,
		Seq:       1,
		Allocated: true,
		Type:      types.MetaTypeDirectory,
		Names:     []types.NameLink{link(types.MftEntryRoot, 5, "docs")},
		Attributes: []types.Attribute{{
			Type:     types.AttrTypeIndexRoot,
			Resident: helpers.BuildIndexRoot(types.AttrTypeFileName, 4096, 0, live, slack),
		}},
	})

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
	require.NoError(t, err)
	require.NotNil(t, dir)

	assert.Equal(t, types.StatusOK, dir.Status)
	assert.Equal(t, []string{".", "..", "a.txt", "b.txt", "c", "d.txt"}, names(dir))

	assert.Equal(t, types.NameRecord{MetaAddr: 64, MetaSeq: 1, Name: ".", Type: types.NameTypeDirectory, Flags: types.NameFlagAllocated}, dir.Entries[0])
	assert.Equal(t, types.NameRecord{MetaAddr: 5, MetaSeq: 5, Name: "..", Type: types.NameTypeDirectory, Flags: types.NameFlagAllocated}, dir.Entries[1])

	// three allocated entries from the index plus the synthesized ones
	assert.Len(t, dir.Allocated(), 5)
	unalloc := dir.Unallocated()
	require.Len(t, unalloc, 1)
	assert.Equal(t, types.NameRecord{MetaAddr: 73, MetaSeq: 2, Name: "d.txt", Type: types.NameTypeRegular, Flags: types.NameFlagUnallocated}, unalloc[0])
	assert.Equal(t, types.NameTypeDirectory, mustFind(dir, "c").Type)
}

func TestOpenDirectoryZeroedEntryAmongLiveEntries(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	live := joinBytes(
		indexEntry(70, 1, 64, "a.txt", false),
		deletedEntry(71, 2, 64, "b.txt"),
		indexEntry(72, 1, 64, "c.txt", false),
		indexEntry(73, 1, 64, "d.txt", false),
		helpers.BuildLastEntry(),
	)
	r.add(&types.FileObject{
		ID:        64,
		Seq:       1,
		Allocated: true,
		Type:      types.MetaTypeDirectory,
		Names:     []types.NameLink{link(types.MftEntryRoot, 5, "docs")},
		Attributes: []types.Attribute{{
			Type:     types.AttrTypeIndexRoot,
			Resident: helpers.BuildIndexRoot(types.AttrTypeFileName, 4096, 0, live, nil),
		}},
	})

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
	require.NoError(t, err)
	require.NotNil(t, dir)

	assert.Equal(t, types.StatusOK, dir.Status)
	assert.Equal(t, []string{".", "..", "a.txt", "b.txt", "c.txt", "d.txt"}, names(dir))

	// three allocated entries from the index plus "." and ".."
	assert.Len(t, dir.Allocated(), 5)
	unalloc := dir.Unallocated()
	require.Len(t, unalloc, 1)
	assert.Equal(t, types.NameRecord{MetaAddr: 71, MetaSeq: 2, Name: "b.txt", Type: types.NameTypeRegular, Flags: types.NameFlagUnallocated}, unalloc[0])
}

func TestOpenDirectoryRootIndexCorruption(t *testing.T) {
	tests := []struct {
		name  string
		attrs []types.Attribute
	}{
		{
			name: "index type is not $FILE_NAME",
			attrs: []types.Attribute{{
				Type:     types.AttrTypeIndexRoot,
				Resident: helpers.BuildIndexRoot(types.AttrTypeData, 4096, 0, joinBytes(indexEntry(70, 1, 64, "a.txt", false), helpers.BuildLastEntry()), nil),
			}},
		},
		{
			name:  "no index root",
			attrs: nil,
		},
		{
			name:  "non-resident index root",
			attrs: []types.Attribute{{Type: types.AttrTypeIndexRoot, NonResident: true}},
		},
		{
			name:  "truncated index root",
			attrs: []types.Attribute{{Type: types.AttrTypeIndexRoot, Resident: make([]byte, 10)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeReader(100)
			newVolumeRoot(r)
			r.add(&types.FileObject{
				ID: 64, Seq: 1, Allocated: true, Type: types.MetaTypeDirectory,
				Names:      []types.NameLink{link(5, 5, "docs")},
				Attributes: tt.attrs,
			})

			dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
			require.Error(t, err)
			require.NotNil(t, dir)

			assert.True(t, errors.Is(err, types.ErrCorrupted))
			assert.False(t, errors.Is(err, types.ErrFatal))
			assert.Equal(t, types.StatusCorrupted, dir.Status)
			assert.Empty(t, dir.Entries)
		})
	}
}

func TestOpenDirectoryInvalidRootListOffsets(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)
	root := helpers.BuildIndexRoot(types.AttrTypeFileName, 4096, 0, joinBytes(indexEntry(70, 1, 64, "a.txt", false), helpers.BuildLastEntry()), nil)
	// allocated offset beyond the attribute
	binary.LittleEndian.PutUint32(root[types.IndexRootHeaderSize+8:], 0x4000)
	r.add(&types.FileObject{
		ID: 64, Seq: 1, Allocated: true, Type: types.MetaTypeDirectory,
		Names:      []types.NameLink{link(5, 5, "docs")},
		Attributes: []types.Attribute{{Type: types.AttrTypeIndexRoot, Resident: root}},
	})

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
	require.Error(t, err)
	assert.True(t, types.IsCorruption(err))
	assert.Equal(t, types.StatusCorrupted, dir.Status)
	assert.Equal(t, []string{".", ".."}, names(dir))
}

func TestOpenDirectoryInvalidID(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 500)
	require.Error(t, err)
	assert.Nil(t, dir)
	assert.True(t, errors.Is(err, types.ErrFatal))
	assert.True(t, errors.Is(err, types.ErrInvalidID))
}

func TestOpenDirectoryUnreadableObjectIsFatal(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 42)
	require.Error(t, err)
	assert.Nil(t, dir)
	assert.True(t, errors.Is(err, types.ErrFatal))
}

// addDirWithAllocation adds directory 64 whose index lives in the given INDX blocks
func addDirWithAllocation(r *fakeReader, allocated bool, blocks ...[]byte) {
	r.add(&types.FileObject{
		ID:        64,
		Seq:       1,
		Allocated: allocated,
		Type:      types.MetaTypeDirectory,
		Names:     []types.NameLink{link(5, 5, "docs")},
		Attributes: []types.Attribute{
			{
				Type:     types.AttrTypeIndexRoot,
				Name:     "$I30",
				Resident: helpers.BuildIndexRoot(types.AttrTypeFileName, 4096, types.IndexListFlagHasChildren, helpers.BuildLastEntry(), nil),
			},
			{
				Type:        types.AttrTypeIndexAllocation,
				Name:        "$I30",
				NonResident: true,
				Resident:    joinBytes(blocks...),
			},
		},
	})
}

func TestOpenDirectoryIndexAllocation(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	block0 := helpers.BuildIndexBlock(0, 4096, 512,
		joinBytes(indexEntry(70, 1, 64, "alpha.txt", false), helpers.BuildLastEntry()),
		deletedEntry(75, 4, 64, "removed.txt"))
	block1 := helpers.BuildIndexBlock(1, 4096, 512,
		joinBytes(indexEntry(71, 1, 64, "beta.txt", false), indexEntry(72, 1, 64, "gamma", true), helpers.BuildLastEntry()),
		nil)
	addDirWithAllocation(r, true, block0, block1)

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
	require.NoError(t, err)

	assert.Equal(t, types.StatusOK, dir.Status)
	assert.Equal(t, []string{".", "..", "alpha.txt", "removed.txt", "beta.txt", "gamma"}, names(dir))
	assert.False(t, mustFind(dir, "removed.txt").IsAllocated())
	assert.True(t, mustFind(dir, "beta.txt").IsAllocated())
}

func TestOpenDirectoryFindsUnreferencedBlocks(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	// a zeroed gap between blocks does not stop the scan
	block0 := helpers.BuildIndexBlock(0, 4096, 512, joinBytes(indexEntry(70, 1, 64, "first", false), helpers.BuildLastEntry()), nil)
	block2 := helpers.BuildIndexBlock(2, 4096, 512, joinBytes(indexEntry(71, 1, 64, "stale", false), helpers.BuildLastEntry()), nil)
	addDirWithAllocation(r, true, block0, make([]byte, 4096), block2)

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "first", "stale"}, names(dir))
}

func TestOpenDirectoryTornBlockIsSkipped(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	torn := helpers.BuildIndexBlock(0, 4096, 512, joinBytes(indexEntry(70, 1, 64, "lost.txt", false), helpers.BuildLastEntry()), nil)
	binary.LittleEndian.PutUint16(torn[3*512-2:], 0xDEAD)
	good := helpers.BuildIndexBlock(1, 4096, 512, joinBytes(indexEntry(71, 1, 64, "kept.txt", false), helpers.BuildLastEntry()), nil)
	addDirWithAllocation(r, true, torn, good)

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
	require.Error(t, err)
	require.NotNil(t, dir)

	assert.True(t, types.IsCorruption(err))
	assert.True(t, errors.Is(err, types.ErrSequenceMismatch))
	assert.Equal(t, types.StatusCorrupted, dir.Status)
	assert.Equal(t, []string{".", "..", "kept.txt"}, names(dir))
}

func TestOpenDirectoryBadBlockOffsets(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	bad := helpers.BuildIndexBlock(0, 4096, 512, joinBytes(indexEntry(70, 1, 64, "x", false), helpers.BuildLastEntry()), nil)
	// used offset before begin offset
	binary.LittleEndian.PutUint32(bad[types.IndexRecordHeaderSize+4:], 8)
	good := helpers.BuildIndexBlock(1, 4096, 512, joinBytes(indexEntry(71, 1, 64, "y", false), helpers.BuildLastEntry()), nil)
	addDirWithAllocation(r, true, bad, good)

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
	require.Error(t, err)
	assert.True(t, types.IsCorruption(err))
	assert.Equal(t, []string{".", "..", "y"}, names(dir))
}

func TestOpenDirectoryAllocationProblems(t *testing.T) {
	t.Run("children flagged but no allocation", func(t *testing.T) {
		r := newFakeReader(100)
		newVolumeRoot(r)
		r.add(&types.FileObject{
			ID: 64, Seq: 1, Allocated: true, Type: types.MetaTypeDirectory,
			Names: []types.NameLink{link(5, 5, "docs")},
			Attributes: []types.Attribute{{
				Type:     types.AttrTypeIndexRoot,
				Resident: helpers.BuildIndexRoot(types.AttrTypeFileName, 4096, types.IndexListFlagHasChildren, joinBytes(indexEntry(70, 1, 64, "root-entry", false), helpers.BuildLastEntry()), nil),
			}},
		})

		dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
		require.Error(t, err)
		assert.True(t, types.IsCorruption(err))
		assert.Equal(t, types.StatusCorrupted, dir.Status)
		assert.Contains(t, names(dir), "root-entry")
	})

	t.Run("resident allocation", func(t *testing.T) {
		r := newFakeReader(100)
		newVolumeRoot(r)
		addDirWithAllocation(r, true)
		r.objects[64].Attributes[1].NonResident = false

		dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
		require.Error(t, err)
		assert.True(t, types.IsCorruption(err))
		assert.Equal(t, types.StatusCorrupted, dir.Status)
	})

	t.Run("short read", func(t *testing.T) {
		r := newFakeReader(100)
		newVolumeRoot(r)
		addDirWithAllocation(r, true, helpers.BuildIndexBlock(0, 4096, 512, helpers.BuildLastEntry(), nil))
		r.materializeErr = types.NewCorruptionError(64, "read", "short read", nil)

		dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
		require.Error(t, err)
		assert.True(t, types.IsCorruption(err))
		assert.Equal(t, []string{".", ".."}, names(dir))
	})
}

func TestOpenDirectoryDeletedDirectory(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	block := helpers.BuildIndexBlock(0, 4096, 512, joinBytes(indexEntry(70, 1, 64, "inside.txt", false), helpers.BuildLastEntry()), nil)
	addDirWithAllocation(r, false, block)

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), 64)
	require.NoError(t, err)
	assert.False(t, mustFind(dir, "inside.txt").IsAllocated())
}

func TestOpenDirectoryOrphanStage(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)

	block := helpers.BuildIndexBlock(0, 4096, 512,
		joinBytes(indexEntry(70, 1, 64, "live.txt", false), helpers.BuildLastEntry()),
		deletedEntry(75, 4, 64, "removed.txt"))
	addDirWithAllocation(r, true, block)

	// names the directory but is no longer in its index
	r.add(&types.FileObject{ID: 80, Seq: 2, Type: types.MetaTypeRegular, Names: []types.NameLink{link(64, 1, "lost.txt")}})
	// also recovered from slack: not listed twice
	r.add(&types.FileObject{ID: 75, Seq: 4, Type: types.MetaTypeRegular, Names: []types.NameLink{link(64, 1, "removed.txt")}})
	// belongs elsewhere
	r.add(&types.FileObject{ID: 81, Seq: 1, Type: types.MetaTypeRegular, Names: []types.NameLink{link(65, 1, "other.txt")}})

	svc := newTestDirectoryService(t, r)
	dir, err := svc.OpenDirectory(context.Background(), 64)
	require.NoError(t, err)

	assert.Equal(t, []string{".", "..", "live.txt", "removed.txt", "lost.txt"}, names(dir))
	assert.Equal(t, types.NameRecord{MetaAddr: 80, MetaSeq: 2, Name: "lost.txt", Type: types.NameTypeUndefined, Flags: types.NameFlagUnallocated}, mustFind(dir, "lost.txt"))
	assert.Equal(t, types.NameTypeRegular, mustFind(dir, "removed.txt").Type)

	// the orphan map is built once per service
	_, err = svc.OpenDirectory(context.Background(), 64)
	require.NoError(t, err)
	assert.Equal(t, 1, r.enumerations)
}

func TestOpenDirectoryRootListsOrphanDirectory(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r,
		indexEntry(64, 1, 5, "docs", true),
		indexEntry(70, 1, 5, "readme.txt", false),
	)

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), types.MftEntryRoot)
	require.NoError(t, err)

	assert.Equal(t, []string{"docs", "readme.txt", types.OrphanDirName}, names(dir))
	orphanDir := mustFind(dir, types.OrphanDirName)
	assert.Equal(t, r.OrphanDirID(), orphanDir.MetaAddr)
	assert.Equal(t, types.NameTypeDirectory, orphanDir.Type)
	assert.True(t, orphanDir.IsAllocated())
}

func TestOpenOrphanDirectory(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)
	r.addDir(64, 1, helpers.BuildLastEntry(), link(5, 5, "docs"))

	// parent is a live directory: reachable, not an orphan
	r.add(&types.FileObject{ID: 80, Seq: 1, Type: types.MetaTypeRegular, Names: []types.NameLink{link(64, 1, "deleted-in-docs.txt")}})
	// parent was reused
	r.add(&types.FileObject{ID: 81, Seq: 1, Type: types.MetaTypeRegular, Names: []types.NameLink{link(64, 9, "stale.txt")}})
	// parent does not exist
	r.add(&types.FileObject{ID: 82, Seq: 1, Type: types.MetaTypeDirectory, Names: []types.NameLink{link(99, 1, "old-dir")}})
	// no names at all
	r.add(&types.FileObject{ID: 83, Seq: 6, Type: types.MetaTypeRegular})

	dir, err := newTestDirectoryService(t, r).OpenDirectory(context.Background(), r.OrphanDirID())
	require.NoError(t, err)

	assert.Equal(t, r.OrphanDirID(), dir.Addr)
	assert.Equal(t, []string{"stale.txt", "old-dir", "OrphanFile-83"}, names(dir))
	assert.Equal(t, types.NameTypeDirectory, mustFind(dir, "old-dir").Type)
	for _, e := range dir.Entries {
		assert.False(t, e.IsAllocated(), e.Name)
	}
}

func TestOpenDirectoryCanceledContext(t *testing.T) {
	r := newFakeReader(100)
	newVolumeRoot(r)
	addDirWithAllocation(r, true, helpers.BuildIndexBlock(0, 4096, 512, joinBytes(indexEntry(70, 1, 64, "a", false), helpers.BuildLastEntry()), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir, err := newTestDirectoryService(t, r).OpenDirectory(ctx, 64)
	require.Error(t, err)
	assert.Nil(t, dir)
	assert.True(t, errors.Is(err, types.ErrFatal))
	assert.True(t, errors.Is(err, context.Canceled))
}
