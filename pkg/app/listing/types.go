package listing

import (
	"time"

	"github.com/deploymenttheory/go-ntfs-forensics/pkg/app"
)

// Request represents a directory listing request
type Request struct {
	Target app.ImageTarget

	// Inode is the directory to list; the root when HasInode is unset
	Inode    uint64
	HasInode bool
	// Orphans lists the virtual orphan directory instead of Inode
	Orphans bool

	// Filters
	DeletedOnly   bool
	AllocatedOnly bool

	// Recursive descends into subdirectories up to MaxDepth levels
	Recursive bool
	MaxDepth  int
}

// Response represents listing results
type Response struct {
	Image       app.ImageInfo `json:"image" yaml:"image"`
	Directory   uint64        `json:"directory" yaml:"directory"`
	Status      string        `json:"status" yaml:"status"`
	Entries     []Entry       `json:"entries" yaml:"entries"`
	Total       int           `json:"total" yaml:"total"`
	Deleted     int           `json:"deleted" yaml:"deleted"`
	Directories int           `json:"directories_opened" yaml:"directories_opened"`
	ScanTime    time.Duration `json:"scan_time" yaml:"scan_time"`

	// Warnings holds corruption findings and unreadable subdirectories
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Entry is one listed name
type Entry struct {
	Path      string `json:"path" yaml:"path"`
	Name      string `json:"name" yaml:"name"`
	Inode     uint64 `json:"inode" yaml:"inode"`
	Seq       uint16 `json:"seq" yaml:"seq"`
	Type      string `json:"type" yaml:"type"`
	Allocated bool   `json:"allocated" yaml:"allocated"`
	Depth     int    `json:"depth" yaml:"depth"`
}

// DefaultMaxDepth bounds recursive listings when the request sets no limit
const DefaultMaxDepth = 64
