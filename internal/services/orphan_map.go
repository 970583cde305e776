package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/interfaces"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// orphanBucketGrowth is the number of child slots added when a bucket fills
const orphanBucketGrowth = 8

// ErrOrphanMapSealed is returned when recording into a finished map
var ErrOrphanMapSealed = errors.New("orphan map is sealed")

// orphanBucket holds the unallocated children that name one parent
type orphanBucket struct {
	parent   uint64
	children []uint64
}

// OrphanMap indexes unallocated objects by the parent directory their names
// point to. Parents are kept sorted so lookups are a binary search.
type OrphanMap struct {
	buckets []orphanBucket
	sealed  bool
}

// NewOrphanMap creates an empty map.
func NewOrphanMap() *OrphanMap {
	return &OrphanMap{}
}

// Record registers child under parent. A child may be recorded under several
// parents, once per name.
func (m *OrphanMap) Record(parent, child uint64) error {
	if m.sealed {
		return ErrOrphanMapSealed
	}

	i := m.search(parent)
	if i == len(m.buckets) || m.buckets[i].parent != parent {
		m.buckets = append(m.buckets, orphanBucket{})
		copy(m.buckets[i+1:], m.buckets[i:])
		m.buckets[i] = orphanBucket{
			parent:   parent,
			children: make([]uint64, 0, orphanBucketGrowth),
		}
	}

	b := &m.buckets[i]
	if len(b.children) == cap(b.children) {
		grown := make([]uint64, len(b.children), cap(b.children)+orphanBucketGrowth)
		copy(grown, b.children)
		b.children = grown
	}
	b.children = append(b.children, child)

	return nil
}

// Lookup returns a copy of the children recorded under parent in insertion
// order.
func (m *OrphanMap) Lookup(parent uint64) ([]uint64, bool) {
	i := m.search(parent)
	if i == len(m.buckets) || m.buckets[i].parent != parent {
		return nil, false
	}
	return slices.Clone(m.buckets[i].children), true
}

// Len returns the number of distinct parents.
func (m *OrphanMap) Len() int {
	return len(m.buckets)
}

// Seal makes the map read-only.
func (m *OrphanMap) Seal() {
	m.sealed = true
}

func (m *OrphanMap) search(parent uint64) int {
	return sort.Search(len(m.buckets), func(i int) bool {
		return m.buckets[i].parent >= parent
	})
}

// BuildOrphanMap walks every unallocated object of the volume and records
// each of its names under the parent the name refers to. The returned map
// is sealed. On error no map is returned.
func BuildOrphanMap(ctx context.Context, reader interfaces.MetadataReader) (*OrphanMap, error) {
	m := NewOrphanMap()

	err := reader.EnumerateUnallocated(ctx, func(obj *types.FileObject) error {
		for _, link := range obj.Names {
			if err := m.Record(link.ParentID, obj.ID); err != nil {
				return fmt.Errorf("recording orphan %d under %d: %w", obj.ID, link.ParentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("building orphan map: %w", err)
	}

	m.Seal()
	return m, nil
}
