package listing

import (
	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app"
)

// Validate validates a listing request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid image target", err)
	}

	if r.DeletedOnly && r.AllocatedOnly {
		return app.NewError(app.ErrCodeInvalidInput, "cannot combine deleted-only and allocated-only", nil)
	}

	if r.Orphans && r.HasInode {
		return app.NewError(app.ErrCodeInvalidInput, "cannot specify both an inode and the orphan directory", nil)
	}

	if r.MaxDepth < 0 || r.MaxDepth > 1024 {
		return app.NewError(app.ErrCodeInvalidInput, "max depth must be between 0 and 1024", nil)
	}
	if r.MaxDepth > 0 && !r.Recursive {
		return app.NewError(app.ErrCodeInvalidInput, "max depth requires a recursive listing", nil)
	}

	return nil
}
