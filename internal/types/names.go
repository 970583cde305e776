package types

import "fmt"

// NameType is the type tag of a directory entry.
type NameType int

const (
	NameTypeUndefined NameType = iota
	NameTypeDirectory
	NameTypeRegular
)

// String returns the short type label used in listings.
func (t NameType) String() string {
	switch t {
	case NameTypeDirectory:
		return "d"
	case NameTypeRegular:
		return "r"
	default:
		return "-"
	}
}

// NameFlags is the allocation state of a directory entry.
type NameFlags int

const (
	NameFlagAllocated NameFlags = iota + 1
	NameFlagUnallocated
)

// String returns a human-readable allocation state.
func (f NameFlags) String() string {
	switch f {
	case NameFlagAllocated:
		return "allocated"
	case NameFlagUnallocated:
		return "unallocated"
	default:
		return "unknown"
	}
}

// NameRecord is one directory entry candidate.
type NameRecord struct {
	MetaAddr uint64    `json:"meta_addr" yaml:"meta_addr"`
	MetaSeq  uint16    `json:"meta_seq" yaml:"meta_seq"`
	Name     string    `json:"name" yaml:"name"`
	Type     NameType  `json:"type" yaml:"type"`
	Flags    NameFlags `json:"flags" yaml:"flags"`
}

// IsAllocated reports whether the record is tagged allocated.
func (n NameRecord) IsAllocated() bool {
	return n.Flags == NameFlagAllocated
}

// String formats the record the way listings print it.
func (n NameRecord) String() string {
	del := ""
	if !n.IsAllocated() {
		del = " *"
	}
	return fmt.Sprintf("%s/%s%s %d-%d:\t%s", n.Type, n.Type, del, n.MetaAddr, n.MetaSeq, n.Name)
}

// Status is the outcome of a directory open.
type Status int

const (
	StatusOK Status = iota
	StatusCorrupted
)

// String returns the status label.
func (s Status) String() string {
	if s == StatusCorrupted {
		return "corrupted-partial"
	}
	return "ok"
}

// Directory accumulates the name records discovered for one directory.
type Directory struct {
	Addr    uint64       `json:"addr" yaml:"addr"`
	Status  Status       `json:"status" yaml:"status"`
	Entries []NameRecord `json:"entries" yaml:"entries"`

	// index maps a record's address and name to its position in Entries
	index map[recordKey]int
}

type recordKey struct {
	addr uint64
	name string
}

// NewDirectory creates an empty container for the directory at addr.
func NewDirectory(addr uint64) *Directory {
	return &Directory{
		Addr:    addr,
		Entries: make([]NameRecord, 0, 128),
		index:   make(map[recordKey]int, 128),
	}
}

// Add appends a record. A record with the same name and address as an
// existing one replaces it only when it upgrades unallocated to allocated;
// otherwise it is dropped.
func (d *Directory) Add(rec NameRecord) error {
	if len(d.index) != len(d.Entries) {
		d.reindex()
	}

	key := recordKey{addr: rec.MetaAddr, name: rec.Name}
	if i, ok := d.index[key]; ok {
		cur := &d.Entries[i]
		if !cur.IsAllocated() && rec.IsAllocated() {
			*cur = rec
		}
		return nil
	}

	d.index[key] = len(d.Entries)
	d.Entries = append(d.Entries, rec)
	return nil
}

// reindex rebuilds the lookup index from Entries, which callers may have
// populated directly
func (d *Directory) reindex() {
	d.index = make(map[recordKey]int, len(d.Entries))
	for i, e := range d.Entries {
		key := recordKey{addr: e.MetaAddr, name: e.Name}
		if _, ok := d.index[key]; !ok {
			d.index[key] = i
		}
	}
}

// Reset clears the container for reuse.
func (d *Directory) Reset(addr uint64) {
	d.Addr = addr
	d.Status = StatusOK
	d.Entries = d.Entries[:0]
	clear(d.index)
}

// Allocated returns the allocated records.
func (d *Directory) Allocated() []NameRecord {
	return d.filter(true)
}

// Unallocated returns the unallocated records.
func (d *Directory) Unallocated() []NameRecord {
	return d.filter(false)
}

func (d *Directory) filter(alloc bool) []NameRecord {
	out := make([]NameRecord, 0, len(d.Entries))
	for _, e := range d.Entries {
		if e.IsAllocated() == alloc {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first record with the given name.
func (d *Directory) Find(name string) (NameRecord, bool) {
	for _, e := range d.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return NameRecord{}, false
}
