package disk

import (
	"fmt"
	"io"
	"os"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/parsers/mft"
)

// Volume location methods reported by Image.Method
const (
	MethodConfigured     = "configured"
	MethodPartitionTable = "partition_table"
	MethodRaw            = "raw"
)

// Image is a read-only disk or volume image file
type Image struct {
	file   *os.File
	path   string
	size   int64
	offset int64
	method string
}

// OpenImage opens the image at path and locates the NTFS volume inside it:
// the configured offset when set, else the first partition holding an NTFS
// boot sector, else offset 0.
func OpenImage(path string, config *Config, log logrus.FieldLogger) (*Image, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	img := &Image{
		file: file,
		path: path,
		size: stat.Size(),
	}

	offset, method, err := img.locateVolume(config, log)
	if err != nil {
		file.Close()
		return nil, err
	}
	img.offset = offset
	img.method = method

	log.WithFields(logrus.Fields{
		"image":  path,
		"offset": offset,
		"method": method,
	}).Debug("located NTFS volume")

	return img, nil
}

func (i *Image) locateVolume(config *Config, log logrus.FieldLogger) (int64, string, error) {
	if config.VolumeOffset != AutoOffset {
		if config.VolumeOffset >= i.size {
			return 0, "", fmt.Errorf("volume offset %d is beyond the end of the image (%d bytes)", config.VolumeOffset, i.size)
		}
		return config.VolumeOffset, MethodConfigured, nil
	}

	if !config.AutoDetectPartition {
		return 0, MethodRaw, nil
	}

	starts, err := partitionStarts(i.path)
	if err != nil {
		log.WithError(err).Debug("no usable partition table")
	}
	for _, start := range starts {
		if hasNTFSBootSector(i.file, start) {
			return start, MethodPartitionTable, nil
		}
	}

	if hasNTFSBootSector(i.file, 0) {
		return 0, MethodRaw, nil
	}
	return 0, "", fmt.Errorf("no NTFS volume found in %s", i.path)
}

// partitionStarts returns the byte offsets of the partitions listed in the
// image's GPT or MBR partition table
func partitionStarts(path string) ([]int64, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to open image for partition scan: %w", err)
	}
	defer d.Close()

	table, err := d.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("failed to read partition table: %w", err)
	}

	var starts []int64
	for _, p := range table.GetPartitions() {
		if p == nil || p.GetSize() == 0 {
			continue
		}
		starts = append(starts, p.GetStart())
	}
	return starts, nil
}

func hasNTFSBootSector(r io.ReaderAt, offset int64) bool {
	buf := make([]byte, mft.BootSectorSize)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return false
	}
	return mft.IsNTFSBootSector(buf)
}

// ReadAt implements io.ReaderAt over the whole image
func (i *Image) ReadAt(p []byte, off int64) (int, error) {
	return i.file.ReadAt(p, off)
}

// Offset returns the byte offset of the NTFS volume within the image
func (i *Image) Offset() int64 { return i.offset }

// Method returns how the volume offset was determined
func (i *Image) Method() string { return i.method }

// Size returns the image size in bytes
func (i *Image) Size() int64 { return i.size }

// Path returns the image file path
func (i *Image) Path() string { return i.path }

// Close closes the image file
func (i *Image) Close() error {
	if i.file != nil {
		return i.file.Close()
	}
	return nil
}
