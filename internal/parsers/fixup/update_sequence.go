package fixup

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// Header offsets shared by FILE records and INDX blocks
const (
	updateSeqOffsetField = 4
	updateSeqCountField  = 6
	headerMinSize        = 8
)

// FixupError reports an update sequence failure in one block.
type FixupError struct {
	Sector   int
	Expected uint16
	Actual   uint16
	Replace  uint16
	Reason   string
	Err      error
}

func (e *FixupError) Error() string {
	if e.Reason != "" {
		return "fixup: " + e.Reason
	}
	return fmt.Sprintf("fixup: incorrect update sequence value in sector %d: update value 0x%04x, actual value 0x%04x, replacement value 0x%04x",
		e.Sector, e.Expected, e.Actual, e.Replace)
}

func (e *FixupError) Unwrap() error { return e.Err }

// Apply removes the update sequence values stored in the last two bytes of
// every sector of block, restoring them from the update sequence array.
// length is the size the caller believes the block spans; it is clamped to
// len(block). The block is modified in place.
func Apply(block []byte, length int, sectorSize int) error {
	if sectorSize <= 2 {
		return &FixupError{Reason: fmt.Sprintf("invalid sector size %d", sectorSize), Err: types.ErrCorrupted}
	}
	if length > len(block) {
		length = len(block)
	}
	if length < headerMinSize {
		return &FixupError{Reason: fmt.Sprintf("block too small: %d bytes", length), Err: types.ErrCorrupted}
	}

	updOff := int(binary.LittleEndian.Uint16(block[updateSeqOffsetField:]))
	updCnt := int(binary.LittleEndian.Uint16(block[updateSeqCountField:]))

	if updCnt == 0 {
		return &FixupError{Reason: "empty update sequence array", Err: types.ErrCorrupted}
	}

	// sanity check so we don't run over in the loop
	if (updCnt-1)*sectorSize > length {
		return &FixupError{
			Reason: fmt.Sprintf("more update sequence entries (%d) than block size %d allows", updCnt, length),
			Err:    types.ErrCorrupted,
		}
	}
	if updOff+2*updCnt > length {
		return &FixupError{
			Reason: fmt.Sprintf("update sequence array at %d (%d entries) exceeds block size %d", updOff, updCnt, length),
			Err:    types.ErrCorrupted,
		}
	}

	marker := binary.LittleEndian.Uint16(block[updOff:])

	for i := 1; i < updCnt; i++ {
		offset := i*sectorSize - 2
		current := binary.LittleEndian.Uint16(block[offset:])
		replOff := updOff + 2*i

		if current != marker {
			return &FixupError{
				Sector:   i,
				Expected: marker,
				Actual:   current,
				Replace:  binary.LittleEndian.Uint16(block[replOff:]),
				Err:      types.ErrSequenceMismatch,
			}
		}

		block[offset] = block[replOff]
		block[offset+1] = block[replOff+1]
	}

	return nil
}

// Protect is the write-side inverse of Apply: it saves the trailing two bytes
// of each sector into the update sequence array described by the block
// header and stamps marker over them. The header fields at offsets 4 and 6
// must already be set.
func Protect(block []byte, sectorSize int, marker uint16) error {
	if len(block) < headerMinSize {
		return fmt.Errorf("block too small: %d bytes", len(block))
	}
	updOff := int(binary.LittleEndian.Uint16(block[updateSeqOffsetField:]))
	updCnt := int(binary.LittleEndian.Uint16(block[updateSeqCountField:]))
	if updCnt == 0 || (updCnt-1)*sectorSize > len(block) || updOff+2*updCnt > len(block) {
		return fmt.Errorf("update sequence array does not fit block of %d bytes", len(block))
	}

	binary.LittleEndian.PutUint16(block[updOff:], marker)
	for i := 1; i < updCnt; i++ {
		offset := i*sectorSize - 2
		replOff := updOff + 2*i
		block[replOff] = block[offset]
		block[replOff+1] = block[offset+1]
		binary.LittleEndian.PutUint16(block[offset:], marker)
	}
	return nil
}
