package app

import (
	"errors"
	"fmt"
)

// ImageTarget represents image selection across commands
type ImageTarget struct {
	ImagePath string
	// Offset is the byte offset of the NTFS volume; used when HasOffset is set
	Offset    int64
	HasOffset bool
}

// Validate ensures the image target is valid
func (it *ImageTarget) Validate() error {
	if it.ImagePath == "" {
		return errors.New("image path is required")
	}
	if it.HasOffset && it.Offset < 0 {
		return fmt.Errorf("volume offset cannot be negative: %d", it.Offset)
	}
	return nil
}

// String returns a string representation of the image target
func (it *ImageTarget) String() string {
	if it.HasOffset {
		return fmt.Sprintf("Image: %s (offset %d)", it.ImagePath, it.Offset)
	}
	return "Image: " + it.ImagePath
}

// ImageInfo describes the opened volume in command responses
type ImageInfo struct {
	Path        string `json:"path" yaml:"path"`
	Offset      int64  `json:"offset" yaml:"offset"`
	Method      string `json:"offset_method" yaml:"offset_method"`
	ClusterSize int    `json:"cluster_size" yaml:"cluster_size"`
	RecordSize  uint32 `json:"record_size" yaml:"record_size"`
	Records     uint64 `json:"records" yaml:"records"`
	Session     string `json:"session" yaml:"session"`
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeImageAccess  = "IMAGE_ACCESS"
	ErrCodeConfig       = "CONFIG"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeFileSystem   = "FILE_SYSTEM"
	ErrCodeTimeout      = "TIMEOUT"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
