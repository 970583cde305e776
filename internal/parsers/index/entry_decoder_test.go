package index

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/helpers"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// recordingEmitter collects emitted records
type recordingEmitter struct {
	records []types.NameRecord
	failAt  int
}

func (r *recordingEmitter) Add(rec types.NameRecord) error {
	if r.failAt > 0 && len(r.records)+1 == r.failAt {
		return errors.New("emitter full")
	}
	r.records = append(r.records, rec)
	return nil
}

func testOptions() DecodeOptions {
	return DecodeOptions{FirstID: 0, LastID: 1000}
}

func entryFor(ref uint64, seq uint16, name string, ns uint8, dir bool) helpers.IndexEntrySpec {
	return helpers.IndexEntrySpec{
		FileRef: ref,
		Seq:     seq,
		FileName: helpers.FileNameSpec{
			ParentRef: 5,
			ParentSeq: 5,
			Name:      name,
			NameSpace: ns,
			Directory: dir,
		},
	}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestDecodeEntriesLiveNode(t *testing.T) {
	live := concat(
		helpers.BuildIndexEntry(entryFor(64, 1, "a.txt", types.NameSpaceWin32, false)),
		helpers.BuildIndexEntry(entryFor(65, 1, "b.txt", types.NameSpaceWin32, false)),
		helpers.BuildIndexEntry(entryFor(66, 2, "sub", types.NameSpacePOSIX, true)),
		helpers.BuildLastEntry(),
	)
	buf := append(live, make([]byte, 256)...)

	em := &recordingEmitter{}
	err := DecodeEntries(buf, len(live), testOptions(), em)
	require.NoError(t, err)

	require.Len(t, em.records, 3)
	assert.Equal(t, types.NameRecord{MetaAddr: 64, MetaSeq: 1, Name: "a.txt", Type: types.NameTypeRegular, Flags: types.NameFlagAllocated}, em.records[0])
	assert.Equal(t, "b.txt", em.records[1].Name)
	assert.Equal(t, types.NameRecord{MetaAddr: 66, MetaSeq: 2, Name: "sub", Type: types.NameTypeDirectory, Flags: types.NameFlagAllocated}, em.records[2])
}

func TestDecodeEntriesRecoversSlackEntry(t *testing.T) {
	live := concat(
		helpers.BuildIndexEntry(entryFor(64, 1, "kept.txt", types.NameSpaceWin32, false)),
		helpers.BuildLastEntry(),
	)
	deleted := entryFor(70, 4, "gone.txt", types.NameSpaceWin32, false)
	deleted.ZeroStreamLength = true
	buf := concat(live, helpers.BuildIndexEntry(deleted), make([]byte, 128))

	em := &recordingEmitter{}
	err := DecodeEntries(buf, len(live), testOptions(), em)
	require.NoError(t, err)

	require.Len(t, em.records, 2)
	assert.Equal(t, "kept.txt", em.records[0].Name)
	assert.True(t, em.records[0].IsAllocated())
	assert.Equal(t, types.NameRecord{MetaAddr: 70, MetaSeq: 4, Name: "gone.txt", Type: types.NameTypeRegular, Flags: types.NameFlagUnallocated}, em.records[1])
}

func TestDecodeEntriesZeroedEntryInsideUsedArea(t *testing.T) {
	tests := []struct {
		name    string
		deleted string
	}{
		// 16+66+2*5 rounds to 92, four bytes short of the 96-byte entry
		{name: "advance lands short of next entry", deleted: "b.txt"},
		// 16+66+2*6 is 94, which rounds to the 96-byte entry length
		{name: "advance lands on next entry", deleted: "bb.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zeroed := entryFor(65, 3, tt.deleted, types.NameSpaceWin32, false)
			zeroed.ZeroStreamLength = true

			live := concat(
				helpers.BuildIndexEntry(entryFor(64, 1, "a.txt", types.NameSpaceWin32, false)),
				helpers.BuildIndexEntry(zeroed),
				helpers.BuildIndexEntry(entryFor(66, 1, "c.txt", types.NameSpaceWin32, false)),
				helpers.BuildIndexEntry(entryFor(67, 1, "d.txt", types.NameSpaceWin32, false)),
				helpers.BuildLastEntry(),
			)
			buf := concat(live, make([]byte, 128))

			em := &recordingEmitter{}
			err := DecodeEntries(buf, len(live), testOptions(), em)
			require.NoError(t, err)

			require.Len(t, em.records, 4)
			assert.Equal(t, types.NameRecord{MetaAddr: 64, MetaSeq: 1, Name: "a.txt", Type: types.NameTypeRegular, Flags: types.NameFlagAllocated}, em.records[0])
			assert.Equal(t, types.NameRecord{MetaAddr: 65, MetaSeq: 3, Name: tt.deleted, Type: types.NameTypeRegular, Flags: types.NameFlagUnallocated}, em.records[1])
			assert.Equal(t, types.NameRecord{MetaAddr: 66, MetaSeq: 1, Name: "c.txt", Type: types.NameTypeRegular, Flags: types.NameFlagAllocated}, em.records[2])
			assert.Equal(t, types.NameRecord{MetaAddr: 67, MetaSeq: 1, Name: "d.txt", Type: types.NameTypeRegular, Flags: types.NameFlagAllocated}, em.records[3])
		})
	}
}

func TestDecodeEntriesPastUsedIsUnallocated(t *testing.T) {
	first := helpers.BuildIndexEntry(entryFor(64, 1, "one", types.NameSpaceWin32, false))
	second := helpers.BuildIndexEntry(entryFor(65, 1, "two", types.NameSpaceWin32, false))
	buf := concat(first, second, make([]byte, 128))

	em := &recordingEmitter{}
	err := DecodeEntries(buf, len(first), testOptions(), em)
	require.NoError(t, err)

	require.Len(t, em.records, 2)
	assert.True(t, em.records[0].IsAllocated())
	assert.False(t, em.records[1].IsAllocated())
}

func TestDecodeEntriesSkipsDOSNames(t *testing.T) {
	live := concat(
		helpers.BuildIndexEntry(entryFor(64, 1, "LONGFI~1.TXT", types.NameSpaceDOS, false)),
		helpers.BuildIndexEntry(entryFor(64, 1, "long file name.txt", types.NameSpaceWin32, false)),
		helpers.BuildLastEntry(),
	)
	buf := append(live, make([]byte, 128)...)

	em := &recordingEmitter{}
	require.NoError(t, DecodeEntries(buf, len(live), testOptions(), em))

	require.Len(t, em.records, 1)
	assert.Equal(t, "long file name.txt", em.records[0].Name)
}

func TestDecodeEntriesDeletedDirectory(t *testing.T) {
	live := concat(
		helpers.BuildIndexEntry(entryFor(64, 1, "a", types.NameSpaceWin32, false)),
		helpers.BuildLastEntry(),
	)
	buf := append(live, make([]byte, 128)...)

	opts := testOptions()
	opts.DirDeleted = true
	em := &recordingEmitter{}
	require.NoError(t, DecodeEntries(buf, len(live), opts, em))

	require.Len(t, em.records, 1)
	assert.Equal(t, types.NameFlagUnallocated, em.records[0].Flags)
}

func TestDecodeEntriesRejectsImplausibleSlack(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*helpers.IndexEntrySpec)
	}{
		{
			name:   "timestamp outside window",
			mutate: func(s *helpers.IndexEntrySpec) { s.FileName.Created = index2020() },
		},
		{
			name:   "real size larger than allocated",
			mutate: func(s *helpers.IndexEntrySpec) { s.FileName.Real = 4096 },
		},
		{
			name:   "invalid name space",
			mutate: func(s *helpers.IndexEntrySpec) { s.FileName.NameSpace = 7 },
		},
		{
			name:   "reference out of range",
			mutate: func(s *helpers.IndexEntrySpec) { s.FileRef = 5000 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := entryFor(70, 1, "ghost.txt", types.NameSpaceWin32, false)
			spec.ZeroStreamLength = true
			tt.mutate(&spec)
			buf := concat(helpers.BuildIndexEntry(spec), make([]byte, 128))

			em := &recordingEmitter{}
			require.NoError(t, DecodeEntries(buf, 0, testOptions(), em))
			assert.Empty(t, em.records)
		})
	}
}

func TestDecodeEntriesResynchronizesAfterDamage(t *testing.T) {
	good := helpers.BuildIndexEntry(entryFor(64, 1, "after.txt", types.NameSpaceWin32, false))
	damaged := helpers.BuildIndexEntry(entryFor(65, 1, "broken.txt", types.NameSpaceWin32, false))
	damaged[8] = 0x03 // entry length not a multiple of four
	damaged[9] = 0x00

	buf := concat(damaged, good, make([]byte, 128))

	em := &recordingEmitter{}
	require.NoError(t, DecodeEntries(buf, len(buf), testOptions(), em))

	require.Len(t, em.records, 1)
	assert.Equal(t, "after.txt", em.records[0].Name)
}

func TestDecodeEntriesHardErrors(t *testing.T) {
	t.Run("used length beyond buffer", func(t *testing.T) {
		err := DecodeEntries(make([]byte, 64), 65, testOptions(), &recordingEmitter{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrFatal))
	})

	t.Run("emitter failure", func(t *testing.T) {
		live := concat(
			helpers.BuildIndexEntry(entryFor(64, 1, "a", types.NameSpaceWin32, false)),
			helpers.BuildIndexEntry(entryFor(65, 1, "b", types.NameSpaceWin32, false)),
			helpers.BuildLastEntry(),
		)
		buf := append(live, make([]byte, 128)...)

		em := &recordingEmitter{failAt: 2}
		err := DecodeEntries(buf, len(live), testOptions(), em)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrFatal))
		assert.Len(t, em.records, 1)
	})
}

func TestDecodeEntriesShortBuffer(t *testing.T) {
	em := &recordingEmitter{}
	require.NoError(t, DecodeEntries(make([]byte, 40), 0, testOptions(), em))
	assert.Empty(t, em.records)
}

func TestTimeWindow(t *testing.T) {
	w := YearWindow(DefaultMinYear, DefaultMaxYear)

	assert.True(t, w.Contains(helpers.ValidTimestamp))
	assert.False(t, w.Contains(0))
	assert.False(t, w.Contains(ToTicks(time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC))))
	assert.False(t, w.Contains(index2020()))
	assert.Equal(t, uint64(116444736000000000), ToTicks(time.Unix(0, 0)))
}

func index2020() uint64 {
	return ToTicks(time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC))
}
