// File: internal/interfaces/metadata.go
package interfaces

import (
	"context"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// MetadataReader provides access to the MFT of one mounted volume
type MetadataReader interface {
	// FirstID returns the lowest valid object identifier
	FirstID() uint64

	// LastID returns the highest valid object identifier
	LastID() uint64

	// RootID returns the identifier of the root directory
	RootID() uint64

	// OrphanDirID returns the identifier of the virtual orphan directory
	OrphanDirID() uint64

	// ReadObject loads and parses the object with the given identifier
	ReadObject(ctx context.Context, id uint64) (*types.FileObject, error)

	// Materialize returns the full content of an attribute, reading
	// non-resident data from the image
	Materialize(ctx context.Context, attr *types.Attribute) ([]byte, error)

	// MaterializeSlack returns an attribute's clusters through its allocated
	// size, including the stale bytes past the data size
	MaterializeSlack(ctx context.Context, attr *types.Attribute) ([]byte, error)

	// EnumerateUnallocated calls fn for every unallocated object on the volume
	EnumerateUnallocated(ctx context.Context, fn func(*types.FileObject) error) error

	// ClusterSize returns the allocation unit size in bytes
	ClusterSize() int

	// SectorSize returns the sector size used by update sequence fixups
	SectorSize() int
}

// NameEmitter receives the name records produced while reading a directory
type NameEmitter interface {
	// Add appends one name record
	Add(types.NameRecord) error
}
