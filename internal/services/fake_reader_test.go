package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/helpers"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// fakeReader is an in-memory MetadataReader. Non-resident attributes keep
// their materialized content in Resident.
type fakeReader struct {
	last           uint64
	objects        map[uint64]*types.FileObject
	materializeErr error
	enumerations   int
}

func newFakeReader(last uint64) *fakeReader {
	return &fakeReader{
		last:    last,
		objects: make(map[uint64]*types.FileObject),
	}
}

func (f *fakeReader) FirstID() uint64     { return 0 }
func (f *fakeReader) LastID() uint64      { return f.last }
func (f *fakeReader) RootID() uint64      { return types.MftEntryRoot }
func (f *fakeReader) OrphanDirID() uint64 { return f.last + 1 }
func (f *fakeReader) ClusterSize() int    { return 4096 }
func (f *fakeReader) SectorSize() int     { return 512 }

func (f *fakeReader) ReadObject(ctx context.Context, id uint64) (*types.FileObject, error) {
	obj, ok := f.objects[id]
	if !ok {
		return nil, types.NewCorruptionError(id, "file_record", "no such record", nil)
	}
	return obj, nil
}

func (f *fakeReader) Materialize(ctx context.Context, attr *types.Attribute) ([]byte, error) {
	if f.materializeErr != nil {
		return nil, f.materializeErr
	}
	out := make([]byte, len(attr.Resident))
	copy(out, attr.Resident)
	return out, nil
}

func (f *fakeReader) MaterializeSlack(ctx context.Context, attr *types.Attribute) ([]byte, error) {
	return f.Materialize(ctx, attr)
}

func (f *fakeReader) EnumerateUnallocated(ctx context.Context, fn func(*types.FileObject) error) error {
	f.enumerations++
	ids := make([]uint64, 0, len(f.objects))
	for id := range f.objects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		obj := f.objects[id]
		if obj.Allocated {
			continue
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeReader) add(obj *types.FileObject) *types.FileObject {
	f.objects[obj.ID] = obj
	return obj
}

// addFile adds an allocated regular file with one name per parent given
func (f *fakeReader) addFile(id uint64, seq uint16, links ...types.NameLink) *types.FileObject {
	return f.add(&types.FileObject{
		ID:        id,
		Seq:       seq,
		Allocated: true,
		Type:      types.MetaTypeRegular,
		Names:     links,
	})
}

// addDir adds an allocated directory whose $INDEX_ROOT holds rootEntries
func (f *fakeReader) addDir(id uint64, seq uint16, rootEntries []byte, links ...types.NameLink) *types.FileObject {
	return f.add(&types.FileObject{
		ID:        id,
		Seq:       seq,
		Allocated: true,
		Type:      types.MetaTypeDirectory,
		Names:     links,
		Attributes: []types.Attribute{
			{
				Type:     types.AttrTypeIndexRoot,
				Name:     "$I30",
				Resident: helpers.BuildIndexRoot(types.AttrTypeFileName, 4096, 0, rootEntries, nil),
			},
		},
	})
}

func link(parent uint64, parentSeq uint16, name string) types.NameLink {
	return types.NameLink{ParentID: parent, ParentSeq: parentSeq, Name: name, NameSpace: types.NameSpaceWin32}
}

// indexEntry builds an index entry for a child of parent
func indexEntry(ref uint64, seq uint16, parent uint64, name string, dir bool) []byte {
	return helpers.BuildIndexEntry(helpers.IndexEntrySpec{
		FileRef: ref,
		Seq:     seq,
		FileName: helpers.FileNameSpec{
			ParentRef: parent,
			ParentSeq: 1,
			Name:      name,
			NameSpace: types.NameSpaceWin32,
			Directory: dir,
		},
	})
}

// deletedEntry builds an index entry with its stream length cleared
func deletedEntry(ref uint64, seq uint16, parent uint64, name string) []byte {
	return helpers.BuildIndexEntry(helpers.IndexEntrySpec{
		FileRef:          ref,
		Seq:              seq,
		ZeroStreamLength: true,
		FileName: helpers.FileNameSpec{
			ParentRef: parent,
			ParentSeq: 1,
			Name:      name,
			NameSpace: types.NameSpaceWin32,
		},
	})
}

func joinBytes(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// names returns the record names in order
func names(dir *types.Directory) []string {
	out := make([]string, 0, len(dir.Entries))
	for _, e := range dir.Entries {
		out = append(out, e.Name)
	}
	return out
}

func mustFind(dir *types.Directory, name string) types.NameRecord {
	rec, ok := dir.Find(name)
	if !ok {
		panic(fmt.Sprintf("record %q not found", name))
	}
	return rec
}
