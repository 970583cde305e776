package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/interfaces"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// ErrAttributeNotFound is returned when a path search names an attribute the object lacks
var ErrAttributeNotFound = errors.New("attribute not found")

// AllocFilter restricts path searches by the allocation state of the target
type AllocFilter int

const (
	// FilterAny matches allocated and unallocated objects
	FilterAny AllocFilter = iota
	// FilterAllocated matches only allocated objects
	FilterAllocated
	// FilterUnallocated matches only unallocated objects
	FilterUnallocated
)

// FindOptions controls a path search
type FindOptions struct {
	// AttrType selects an attribute whose stream name is appended to each
	// path as ":name"; zero disables the attribute filter
	AttrType uint32
	// AttrID narrows AttrType to one attribute instance when HasAttrID is set
	AttrID    uint16
	HasAttrID bool
	// Alloc restricts the search by allocation state
	Alloc AllocFilter
	// MaxDepth caps directory nesting; zero or a value above
	// types.MaxPathDepth uses types.MaxPathDepth
	MaxDepth int
}

// PathResult is one reconstructed path of an object
type PathResult struct {
	ID        uint64 `json:"id" yaml:"id"`
	Path      string `json:"path" yaml:"path"`
	Allocated bool   `json:"allocated" yaml:"allocated"`
	// Orphaned is set when an ancestor could not be verified and the path
	// was anchored at the ORPHAN segment
	Orphaned bool `json:"orphaned" yaml:"orphaned"`
	// Truncated is set when the path hit the depth or buffer limit
	Truncated bool `json:"truncated" yaml:"truncated"`
}

// PathService reconstructs full paths from the parent references stored in
// each object's names
type PathService struct {
	reader interfaces.MetadataReader
	log    logrus.FieldLogger
}

// NewPathService creates a PathService reading from reader
func NewPathService(reader interfaces.MetadataReader, logger logrus.FieldLogger) (*PathService, error) {
	if reader == nil {
		return nil, fmt.Errorf("metadata reader cannot be nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PathService{reader: reader, log: logger}, nil
}

// pathWalk is the state of one search. Segments are written back to front
// into buf; cursor is the start of the path built so far and begins records
// the cursor at each depth so a branch can be unwound.
type pathWalk struct {
	ctx      context.Context
	target   *types.FileObject
	fn       func(PathResult) error
	maxDepth int

	buf    [types.PathBufferSize]byte
	cursor int
	begins []int
}

// prepend writes "/"+seg before the current path. It reports false when the
// buffer cannot hold the segment.
func (w *pathWalk) prepend(seg string) bool {
	n := len(seg) + 1
	if w.cursor-n < 0 {
		return false
	}
	w.cursor -= n
	w.buf[w.cursor] = '/'
	copy(w.buf[w.cursor+1:], seg)
	return true
}

func (w *pathWalk) emit(orphaned, truncated bool) error {
	path := string(w.buf[w.cursor:])
	if path == "" {
		path = "/"
	}
	return w.fn(PathResult{
		ID:        w.target.ID,
		Path:      path,
		Allocated: w.target.Allocated,
		Orphaned:  orphaned,
		Truncated: truncated,
	})
}

// FindPaths calls fn once for every path of object id: one per name and
// per ancestry branch. fn may return types.ErrStopWalk to end the search.
func (s *PathService) FindPaths(ctx context.Context, id uint64, opts FindOptions, fn func(PathResult) error) error {
	r := s.reader

	if id == r.OrphanDirID() {
		return ignoreStop(fn(PathResult{ID: id, Path: "/" + types.OrphanDirName, Allocated: true}))
	}
	if id < r.FirstID() || id > r.LastID() {
		return types.WrapFatal(fmt.Errorf("%w: %d", types.ErrInvalidID, id), "find paths")
	}

	obj, err := r.ReadObject(ctx, id)
	if err != nil {
		return types.WrapFatal(err, fmt.Sprintf("loading object %d", id))
	}

	switch opts.Alloc {
	case FilterAllocated:
		if !obj.Allocated {
			return nil
		}
	case FilterUnallocated:
		if obj.Allocated {
			return nil
		}
	}

	suffix := ""
	if opts.AttrType != 0 {
		var attr *types.Attribute
		if opts.HasAttrID {
			attr = obj.AttributeByID(opts.AttrType, opts.AttrID)
		} else {
			attr = obj.Attribute(opts.AttrType)
		}
		if attr == nil {
			return fmt.Errorf("object %d: type 0x%x: %w", id, opts.AttrType, ErrAttributeNotFound)
		}
		if attr.Name != "" {
			suffix = ":" + attr.Name
		}
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 || maxDepth > types.MaxPathDepth {
		maxDepth = types.MaxPathDepth
	}

	w := &pathWalk{
		ctx:      ctx,
		target:   obj,
		fn:       fn,
		maxDepth: maxDepth,
		cursor:   types.PathBufferSize,
		begins:   make([]int, 0, maxDepth),
	}

	if id == r.RootID() {
		return ignoreStop(w.emit(false, false))
	}

	for _, link := range obj.Names {
		w.cursor = types.PathBufferSize
		if !w.prepend(link.Name + suffix) {
			if err := w.emit(false, true); err != nil {
				return ignoreStop(err)
			}
			continue
		}
		if err := s.walkParent(w, link, 0); err != nil {
			return ignoreStop(err)
		}
	}

	return nil
}

// Paths collects every path of object id.
func (s *PathService) Paths(ctx context.Context, id uint64, opts FindOptions) ([]PathResult, error) {
	var results []PathResult
	err := s.FindPaths(ctx, id, opts, func(p PathResult) error {
		results = append(results, p)
		return nil
	})
	return results, err
}

// walkParent continues the path from the parent named by link
func (s *PathService) walkParent(w *pathWalk, link types.NameLink, depth int) error {
	r := s.reader

	if link.ParentID == r.RootID() {
		return w.emit(false, false)
	}
	if depth >= w.maxDepth {
		s.log.WithField("inode", w.target.ID).Debugf("path depth limit %d reached", w.maxDepth)
		return w.emit(false, true)
	}
	if err := w.ctx.Err(); err != nil {
		return types.WrapFatal(err, "finding paths")
	}

	if link.ParentID < r.FirstID() || link.ParentID > r.LastID() {
		return types.WrapFatal(fmt.Errorf("%w: parent %d", types.ErrInvalidID, link.ParentID), "finding paths")
	}

	parent, err := r.ReadObject(w.ctx, link.ParentID)
	if err != nil {
		return types.WrapFatal(err, fmt.Sprintf("loading parent %d", link.ParentID))
	}

	if !parent.IsDirectory() || parent.Seq != link.ParentSeq || len(parent.Names) == 0 {
		return s.emitOrphan(w)
	}

	w.begins = append(w.begins, w.cursor)
	defer func() { w.begins = w.begins[:len(w.begins)-1] }()

	for _, plink := range parent.Names {
		w.cursor = w.begins[len(w.begins)-1]
		if !w.prepend(plink.Name) {
			if err := w.emit(false, true); err != nil {
				return err
			}
			continue
		}
		if err := s.walkParent(w, plink, depth+1); err != nil {
			return err
		}
	}

	return nil
}

// emitOrphan anchors the current path at the ORPHAN segment
func (s *PathService) emitOrphan(w *pathWalk) error {
	if !w.prepend(types.OrphanPathSegment) {
		return w.emit(true, true)
	}
	return w.emit(true, false)
}

func ignoreStop(err error) error {
	if errors.Is(err, types.ErrStopWalk) {
		return nil
	}
	return err
}
