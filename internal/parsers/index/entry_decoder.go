// Package index decodes NTFS $I30 directory index entries, including the
// remnants of deleted entries left in node slack.
package index

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/interfaces"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/mft"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// ntfsEpochOffset is the number of seconds between 1601-01-01 and 1970-01-01
const ntfsEpochOffset = 11644473600

// minTimestampUnit is the smallest timestamp treated as set
const minTimestampUnit = 1000000000

// Default deleted-entry plausibility window
const (
	DefaultMinYear = 1970
	DefaultMaxYear = 2010
)

// TimeWindow bounds the timestamps a deleted entry may carry, in NTFS
// 100ns ticks since 1601.
type TimeWindow struct {
	Min uint64
	Max uint64
}

// YearWindow returns the window from January 1 of minYear to January 1 of maxYear.
func YearWindow(minYear, maxYear int) TimeWindow {
	return TimeWindow{
		Min: ToTicks(time.Date(minYear, 1, 1, 0, 0, 0, 0, time.UTC)),
		Max: ToTicks(time.Date(maxYear, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

// Contains reports whether t is a plausible timestamp.
func (w TimeWindow) Contains(t uint64) bool {
	if t < minTimestampUnit {
		return false
	}
	return t >= w.Min && t <= w.Max
}

// ToTicks converts a time to NTFS 100ns ticks, clamping at the NTFS epoch.
func ToTicks(t time.Time) uint64 {
	secs := t.Unix() + ntfsEpochOffset
	if secs < 0 {
		return 0
	}
	return uint64(secs)*10000000 + uint64(t.Nanosecond()/100)
}

// DecodeOptions controls how an entry buffer is decoded.
type DecodeOptions struct {
	// FirstID and LastID bound the object identifiers an entry may reference
	FirstID uint64
	LastID  uint64

	// DirDeleted tags every emitted record as unallocated
	DirDeleted bool

	// Window bounds the timestamps of deleted entries; zero means the default
	Window TimeWindow

	// Logger receives per-entry diagnostics at debug level
	Logger logrus.FieldLogger
}

// entry is the subset of an index entry the decoder inspects
type entry struct {
	ref    uint64
	seq    uint16
	idxLen int
	strLen int
	fn     *types.FileName
	fnOff  int
}

// DecodeEntries walks buf, a run of index entries followed by slack, and
// emits a name record for every live entry and every plausible deleted
// entry. usedLen is the length of the live portion; entries ending past it
// are deleted. Damaged or implausible candidates are skipped by advancing
// four bytes, so decoding resynchronizes on the next aligned entry.
func DecodeEntries(buf []byte, usedLen int, opts DecodeOptions, emit interfaces.NameEmitter) error {
	if usedLen > len(buf) {
		return types.FatalError("index entry used length %d exceeds buffer length %d", usedLen, len(buf))
	}

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	window := opts.Window
	if window == (TimeWindow{}) {
		window = YearWindow(DefaultMinYear, DefaultMaxYear)
	}

	pos := 0
	for pos+types.IndexEntryHeaderSize+types.FileNameStructSize < len(buf) {
		e := readEntry(buf, pos)

		if e.ref < opts.FirstID || e.ref > opts.LastID {
			log.WithField("offset", pos).Debugf("index entry references invalid object %d", e.ref)
			pos += 4
			continue
		}
		if e.idxLen <= e.strLen || e.idxLen%4 != 0 || pos+e.idxLen > len(buf) {
			log.WithField("offset", pos).Debugf("index entry has invalid lengths (idxlen %d, strlen %d)", e.idxLen, e.strLen)
			pos += 4
			continue
		}

		deleted := e.strLen == 0 || pos+e.idxLen > usedLen
		if deleted && !plausibleDeleted(buf, e, window) {
			log.WithField("offset", pos).Debug("deleted index entry failed plausibility checks")
			pos += 4
			continue
		}

		nameOff := e.fnOff + types.FileNameHeaderSize
		nameEnd := nameOff + 2*int(e.fn.NameLength)
		if nameEnd > len(buf) {
			log.WithField("offset", pos).Debug("index entry name runs past buffer end")
			pos += 4
			continue
		}

		if e.fn.NameSpace != types.NameSpaceDOS {
			rec := types.NameRecord{
				MetaAddr: e.ref,
				MetaSeq:  e.seq,
				Name:     mft.DecodeName(buf[nameOff:nameEnd]),
				Type:     types.NameTypeRegular,
				Flags:    types.NameFlagAllocated,
			}
			if e.fn.IsDirectory() {
				rec.Type = types.NameTypeDirectory
			}
			if opts.DirDeleted || deleted {
				rec.Flags = types.NameFlagUnallocated
			}

			if err := emit.Add(rec); err != nil {
				return types.WrapFatal(err, fmt.Sprintf("adding index entry at offset %d", pos))
			}
		}

		// A zeroed stream length means the entry length may be stale too, so
		// step over the $FILE_NAME actually present.
		if e.strLen == 0 {
			pos = (nameEnd + 3) &^ 3
		} else {
			pos += e.idxLen
		}
	}

	return nil
}

func readEntry(buf []byte, pos int) entry {
	fnOff := pos + types.IndexEntryHeaderSize
	return entry{
		ref:    binary.LittleEndian.Uint64(buf[pos : pos+8]) & 0x0000FFFFFFFFFFFF,
		seq:    binary.LittleEndian.Uint16(buf[pos+6 : pos+8]),
		idxLen: int(binary.LittleEndian.Uint16(buf[pos+8 : pos+10])),
		strLen: int(binary.LittleEndian.Uint16(buf[pos+10 : pos+12])),
		fn:     mft.ParseFileNameHeader(buf[fnOff:]),
		fnOff:  fnOff,
	}
}

// plausibleDeleted applies the sanity checks that separate a deleted entry
// from random slack bytes.
func plausibleDeleted(buf []byte, e entry, window TimeWindow) bool {
	fn := e.fn
	if fn.NameSpace > types.NameSpaceWinDOS {
		return false
	}
	if fn.AllocatedSize < fn.RealSize {
		return false
	}
	if fn.NameLength == 0 {
		return false
	}
	nameOff := e.fnOff + types.FileNameHeaderSize
	if binary.LittleEndian.Uint16(buf[nameOff : nameOff+2]) == 0 {
		return false
	}
	return window.Contains(fn.Created) && window.Contains(fn.Accessed) && window.Contains(fn.Modified)
}
