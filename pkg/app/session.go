package app

import (
	"context"
	"errors"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/disk"
	"github.com/deploymenttheory/go-ntfs-forensics/internal/services"
)

// Session is one opened image with the services commands run against
type Session struct {
	Config      *disk.Config
	Image       *disk.Image
	Volume      *services.Volume
	Directories *services.DirectoryService
	Paths       *services.PathService
}

// OpenSession loads configuration, opens the target image and its NTFS
// volume, and creates the directory and path services for it.
func OpenSession(ctx *Context, target ImageTarget) (*Session, error) {
	if err := target.Validate(); err != nil {
		return nil, NewError(ErrCodeInvalidInput, "invalid image target", err)
	}

	config, err := disk.LoadConfig(ctx.ConfigFile)
	if err != nil {
		return nil, NewError(ErrCodeConfig, "failed to load configuration", err)
	}
	if target.HasOffset {
		config.VolumeOffset = target.Offset
	}

	log := ctx.logger()

	img, err := disk.OpenImage(target.ImagePath, config, log)
	if err != nil {
		return nil, NewError(ErrCodeImageAccess, "failed to open image", err)
	}

	vol, err := services.OpenVolume(ctx, img, img.Offset(), services.VolumeConfig{
		CacheRecords: config.CacheRecords,
		Logger:       log,
	})
	if err != nil {
		img.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewError(ErrCodeTimeout, "timed out opening volume", err)
		}
		return nil, NewError(ErrCodeFileSystem, "failed to open NTFS volume", err)
	}

	dirs, err := services.NewDirectoryService(vol, services.DirectoryConfig{
		Window: config.TimeWindow(),
		Logger: vol.Logger(),
	})
	if err != nil {
		img.Close()
		return nil, err
	}

	paths, err := services.NewPathService(vol, vol.Logger())
	if err != nil {
		img.Close()
		return nil, err
	}

	return &Session{
		Config:      config,
		Image:       img,
		Volume:      vol,
		Directories: dirs,
		Paths:       paths,
	}, nil
}

// Info describes the session's image and volume
func (s *Session) Info() ImageInfo {
	boot := s.Volume.BootSector()
	return ImageInfo{
		Path:        s.Image.Path(),
		Offset:      s.Image.Offset(),
		Method:      s.Image.Method(),
		ClusterSize: boot.ClusterSize(),
		RecordSize:  boot.FileRecordSize,
		Records:     s.Volume.LastID() + 1,
		Session:     s.Volume.SessionID().String(),
	}
}

// Close releases the image
func (s *Session) Close() error {
	return s.Image.Close()
}
