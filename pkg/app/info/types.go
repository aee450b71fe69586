package info

import (
	"github.com/deploymenttheory/go-thinpool/pkg/app"
)

// Request represents a superblock summary request
type Request struct {
	DevicePath      string
	UseMetadataSnap bool
	Exclusive       bool
	CacheBlocks     int
}

// Validate validates a summary request
func (r *Request) Validate() error {
	if r.DevicePath == "" {
		return app.NewError(app.ErrCodeInvalidInput, "metadata device path is required", nil)
	}
	if r.CacheBlocks < 0 {
		return app.NewError(app.ErrCodeInvalidInput, "cache size must not be negative", nil)
	}
	return nil
}

// Response summarizes the superblock a pool is read from
type Response struct {
	DevicePath        string `json:"device_path" yaml:"device_path"`
	Exclusive         bool   `json:"exclusive" yaml:"exclusive"`
	SuperblockAt      uint64 `json:"superblock_location" yaml:"superblock_location"`
	UUID              string `json:"uuid" yaml:"uuid"`
	Version           uint32 `json:"version" yaml:"version"`
	Time              uint32 `json:"time" yaml:"time"`
	TransactionID     uint64 `json:"transaction_id" yaml:"transaction_id"`
	DataBlockSize     uint32 `json:"data_block_size_sectors" yaml:"data_block_size_sectors"`
	DataBlockBytes    uint64 `json:"data_block_size_bytes" yaml:"data_block_size_bytes"`
	MetadataBlocks    uint64 `json:"metadata_blocks" yaml:"metadata_blocks"`
	MetadataSnap      uint64 `json:"metadata_snap,omitempty" yaml:"metadata_snap,omitempty"`
	DeviceCount       int    `json:"devices" yaml:"devices"`
	MappingRoot       uint64 `json:"data_mapping_root" yaml:"data_mapping_root"`
	DeviceDetailsRoot uint64 `json:"device_details_root" yaml:"device_details_root"`
}
