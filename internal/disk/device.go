package disk

import (
	"errors"
	"fmt"
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// ErrOutOfRange is returned for a block past the end of the device
var ErrOutOfRange = errors.New("block beyond end of metadata device")

// Options control how a metadata device is opened
type Options struct {
	// Exclusive opens the device with O_EXCL so an active pool cannot hold it
	Exclusive bool

	// CacheBlocks bounds the block cache. Zero disables caching.
	CacheBlocks int
}

// MetadataDevice provides read-only block access to a thin pool metadata device
type MetadataDevice struct {
	file      *os.File
	path      string
	size      int64
	exclusive bool
	cache     *lru.Cache[types.BlockAddress, []byte]
	stats     Statistics
}

// Statistics tracks metadata device access
type Statistics struct {
	BlocksRead  int64
	CacheHits   int64
	CacheMisses int64
}

var (
	_ interfaces.BlockDeviceReader = (*MetadataDevice)(nil)
	_ interfaces.BlockDeviceInfo   = (*MetadataDevice)(nil)
)

// Open opens a metadata device or image file read-only
func Open(path string, opts Options) (*MetadataDevice, error) {
	if path == "" {
		return nil, fmt.Errorf("metadata device path cannot be empty")
	}

	file, err := openDevice(path, opts.Exclusive)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata device %s: %w", path, err)
	}

	size, err := deviceSize(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to size metadata device %s: %w", path, err)
	}

	if size < int64(types.MetadataBlockSize) {
		file.Close()
		return nil, fmt.Errorf("metadata device %s is too small: %d bytes", path, size)
	}

	device := &MetadataDevice{
		file:      file,
		path:      path,
		size:      size,
		exclusive: opts.Exclusive,
	}

	if opts.CacheBlocks > 0 {
		cache, err := lru.New[types.BlockAddress, []byte](opts.CacheBlocks)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create block cache: %w", err)
		}
		device.cache = cache
	}

	return device, nil
}

// ReadBlock reads one metadata block. The returned slice may be shared with
// the cache and must not be modified.
func (d *MetadataDevice) ReadBlock(address types.BlockAddress) ([]byte, error) {
	if !d.IsValidAddress(address) {
		return nil, fmt.Errorf("%w: block %d of %d", ErrOutOfRange, address, d.TotalBlocks())
	}

	if d.cache != nil {
		if cached, ok := d.cache.Get(address); ok {
			d.stats.CacheHits++
			return cached, nil
		}
		d.stats.CacheMisses++
	}

	block := make([]byte, types.MetadataBlockSize)
	n, err := d.file.ReadAt(block, int64(address)*int64(types.MetadataBlockSize))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read block %d: %w", address, err)
	}
	if n < len(block) {
		return nil, fmt.Errorf("incomplete read of block %d: got %d bytes, expected %d", address, n, len(block))
	}
	d.stats.BlocksRead++

	if d.cache != nil {
		d.cache.Add(address, block)
	}

	return block, nil
}

// BlockSize returns the metadata block size in bytes
func (d *MetadataDevice) BlockSize() uint32 {
	return types.MetadataBlockSize
}

// TotalBlocks returns the number of whole metadata blocks on the device
func (d *MetadataDevice) TotalBlocks() uint64 {
	return uint64(d.size) / uint64(types.MetadataBlockSize)
}

func (d *MetadataDevice) IsValidAddress(address types.BlockAddress) bool {
	return uint64(address) < d.TotalBlocks()
}

func (d *MetadataDevice) DevicePath() string {
	return d.path
}

func (d *MetadataDevice) IsExclusive() bool {
	return d.exclusive
}

// Stats returns current access statistics
func (d *MetadataDevice) Stats() Statistics {
	return d.stats
}

// Close closes the metadata device
func (d *MetadataDevice) Close() error {
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
