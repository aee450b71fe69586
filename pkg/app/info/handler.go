package info

import (
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-thinpool/internal/catalog"
	"github.com/deploymenttheory/go-thinpool/internal/metadata"
	"github.com/deploymenttheory/go-thinpool/internal/types"
	"github.com/deploymenttheory/go-thinpool/pkg/app"
)

// Handle processes a superblock summary request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pool, err := metadata.Open(req.DevicePath, metadata.OpenOptions{
		UseMetadataSnap: req.UseMetadataSnap,
		Exclusive:       req.Exclusive,
		CacheBlocks:     req.CacheBlocks,
	})
	if err != nil {
		return nil, app.AnalysisError("failed to open metadata", err)
	}
	defer pool.Close()

	devices, err := catalog.NewDeviceCatalog(pool).List()
	if err != nil {
		return nil, app.AnalysisError("failed to list devices", err)
	}

	sb := pool.Superblock()
	ctx.WithFields(logrus.Fields{
		"device":     req.DevicePath,
		"superblock": sb.Location(),
		"devices":    len(devices),
	}).Debug("read superblock")

	return &Response{
		DevicePath:        req.DevicePath,
		Exclusive:         pool.Device().IsExclusive(),
		SuperblockAt:      uint64(sb.Location()),
		UUID:              sb.UUID().String(),
		Version:           sb.Version(),
		Time:              sb.Time(),
		TransactionID:     sb.TransactionID(),
		DataBlockSize:     sb.DataBlockSize(),
		DataBlockBytes:    uint64(sb.DataBlockSize()) * types.SectorSize,
		MetadataBlocks:    sb.MetadataNrBlocks(),
		MetadataSnap:      uint64(sb.MetadataSnap()),
		DeviceCount:       len(devices),
		MappingRoot:       uint64(sb.DataMappingRoot()),
		DeviceDetailsRoot: uint64(sb.DeviceDetailsRoot()),
	}, nil
}
