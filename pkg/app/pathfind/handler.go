package pathfind

import (
	"errors"
	"fmt"
	"time"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/services"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app"
)

// Handle processes a path reconstruction request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}
	alloc, _ := req.allocFilter()

	ctx.Log(fmt.Sprintf("Reconstructing paths of inode %d in: %s", req.Inode, req.Target.String()))
	ctx.Progress("Opening image...", 5)

	// 2. Open the volume
	session, err := app.OpenSession(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	response := &Response{
		Image: session.Info(),
		Inode: req.Inode,
		Paths: []services.PathResult{},
	}

	opts := services.FindOptions{
		AttrType:  req.AttrType,
		AttrID:    req.AttrID,
		HasAttrID: req.HasAttrID,
		Alloc:     alloc,
		MaxDepth:  session.Config.MaxPathDepth,
	}

	// 3. Walk the parent references
	ctx.Progress("Walking parent directories...", 25)
	err = session.Paths.FindPaths(ctx, req.Inode, opts, func(p services.PathResult) error {
		if req.MaxResults > 0 && len(response.Paths) == req.MaxResults {
			response.Truncated = true
			return types.ErrStopWalk
		}
		response.Paths = append(response.Paths, p)
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAttributeNotFound):
			return nil, app.NewError(app.ErrCodeNotFound, "attribute not found", err)
		case errors.Is(err, types.ErrInvalidID):
			return nil, app.NewError(app.ErrCodeNotFound, fmt.Sprintf("inode %d is outside the volume", req.Inode), err)
		default:
			return nil, app.NewError(app.ErrCodeFileSystem, "path reconstruction failed", err)
		}
	}

	response.Total = len(response.Paths)
	response.SearchTime = time.Since(startTime)

	ctx.Progress("Complete", 100)
	ctx.Log(fmt.Sprintf("Path reconstruction completed: %d paths in %v", response.Total, response.SearchTime))

	return response, nil
}
