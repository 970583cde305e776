package pathfind

import (
	"time"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/services"
	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app"
)

// Allocation filters accepted in Request.Alloc
const (
	AllocAny         = "any"
	AllocAllocated   = "alloc"
	AllocUnallocated = "unalloc"
)

// Request represents a path reconstruction request
type Request struct {
	Target app.ImageTarget

	Inode uint64

	// AttrType appends the name of that attribute to each path; zero disables
	AttrType  uint32
	AttrID    uint16
	HasAttrID bool

	// Alloc is one of AllocAny, AllocAllocated or AllocUnallocated
	Alloc string

	// MaxResults stops the search after that many paths; zero means no limit
	MaxResults int
}

// Response represents path reconstruction results
type Response struct {
	Image      app.ImageInfo         `json:"image" yaml:"image"`
	Inode      uint64                `json:"inode" yaml:"inode"`
	Paths      []services.PathResult `json:"paths" yaml:"paths"`
	Total      int                   `json:"total" yaml:"total"`
	Truncated  bool                  `json:"truncated" yaml:"truncated"`
	SearchTime time.Duration         `json:"search_time" yaml:"search_time"`
}
