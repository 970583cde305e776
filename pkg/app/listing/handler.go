package listing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app"
)

// Handle processes a listing request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx.Log(fmt.Sprintf("Listing directory in: %s", req.Target.String()))
	ctx.Progress("Opening image...", 5)

	// 2. Open the volume
	session, err := app.OpenSession(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	dirID := session.Volume.RootID()
	switch {
	case req.Orphans:
		dirID = session.Volume.OrphanDirID()
	case req.HasInode:
		dirID = req.Inode
	}

	maxDepth := 1
	if req.Recursive {
		maxDepth = req.MaxDepth
		if maxDepth == 0 {
			maxDepth = DefaultMaxDepth
		}
	}

	response := &Response{
		Image:     session.Info(),
		Directory: dirID,
		Status:    types.StatusOK.String(),
		Entries:   []Entry{},
	}

	// 3. Walk the directory tree
	ctx.Progress("Reading directories...", 25)
	l := &lister{
		ctx:      ctx,
		session:  session,
		req:      req,
		resp:     response,
		maxDepth: maxDepth,
		visited:  map[uint64]bool{dirID: true},
	}
	if err := l.list(dirID, "", 0); err != nil {
		return nil, err
	}

	response.Total = len(response.Entries)
	response.ScanTime = time.Since(startTime)

	ctx.Progress("Complete", 100)
	ctx.Log(fmt.Sprintf("Listing completed: %d entries (%d deleted) from %d directories in %v",
		response.Total, response.Deleted, response.Directories, response.ScanTime))

	return response, nil
}

// lister is the state of one listing walk
type lister struct {
	ctx      *app.Context
	session  *app.Session
	req      *Request
	resp     *Response
	maxDepth int
	visited  map[uint64]bool
}

// list adds the entries of directory id, whose path relative to the listed
// directory is prefix, and descends into subdirectories
func (l *lister) list(id uint64, prefix string, depth int) error {
	dir, err := l.session.Directories.OpenDirectory(l.ctx, id)
	l.resp.Directories++

	if dir == nil {
		if depth == 0 {
			code := app.ErrCodeFileSystem
			if errors.Is(err, types.ErrInvalidID) {
				code = app.ErrCodeNotFound
			}
			return app.NewError(code, fmt.Sprintf("failed to open directory %d", id), err)
		}
		l.warn(fmt.Sprintf("skipping %s (inode %d): %v", strings.TrimSuffix(prefix, "/"), id, err))
		return nil
	}

	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			l.warn(line)
		}
		if depth == 0 {
			l.resp.Status = dir.Status.String()
		}
	}

	for _, rec := range dir.Entries {
		path := prefix + rec.Name

		if l.include(rec) {
			l.resp.Entries = append(l.resp.Entries, Entry{
				Path:      path,
				Name:      rec.Name,
				Inode:     rec.MetaAddr,
				Seq:       rec.MetaSeq,
				Type:      rec.Type.String(),
				Allocated: rec.IsAllocated(),
				Depth:     depth,
			})
			if !rec.IsAllocated() {
				l.resp.Deleted++
			}
		}

		if !l.descend(rec, depth) {
			continue
		}
		l.visited[rec.MetaAddr] = true
		if err := l.list(rec.MetaAddr, path+"/", depth+1); err != nil {
			return err
		}
	}

	return nil
}

func (l *lister) include(rec types.NameRecord) bool {
	if l.req.DeletedOnly && rec.IsAllocated() {
		return false
	}
	if l.req.AllocatedOnly && !rec.IsAllocated() {
		return false
	}
	return true
}

func (l *lister) descend(rec types.NameRecord, depth int) bool {
	if depth+1 >= l.maxDepth {
		return false
	}
	if rec.Type != types.NameTypeDirectory || rec.Name == "." || rec.Name == ".." {
		return false
	}
	return !l.visited[rec.MetaAddr]
}

func (l *lister) warn(message string) {
	l.resp.Warnings = append(l.resp.Warnings, message)
	l.ctx.Log("warning: " + message)
}
