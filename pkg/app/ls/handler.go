package ls

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-thinpool/internal/analyzer"
	"github.com/deploymenttheory/go-thinpool/internal/metadata"
	"github.com/deploymenttheory/go-thinpool/pkg/app"
)

// Handle processes a listing request
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := ctx.WithFields(logrus.Fields{"device": req.DevicePath, "metadata_snap": req.UseMetadataSnap})
	log.Debug("opening metadata")

	// 2. Open the metadata
	pool, err := metadata.Open(req.DevicePath, metadata.OpenOptions{
		UseMetadataSnap: req.UseMetadataSnap,
		Exclusive:       req.Exclusive,
		CacheBlocks:     req.CacheBlocks,
	})
	if err != nil {
		return nil, app.AnalysisError("failed to open metadata", err)
	}
	defer pool.Close()

	sb := pool.Superblock()
	log.WithFields(logrus.Fields{
		"superblock":      sb.Location(),
		"transaction":     sb.TransactionID(),
		"data_block_size": sb.DataBlockSize(),
	}).Debug("read superblock")

	// 3. Analyze
	needExclusive := NeedsExclusivity(req.Fields)
	result, err := analyzer.NewExclusivityAnalyzer(pool, analyzer.Options{
		VerifyCounts:  req.VerifyCounts,
		CacheMappings: req.CacheMappings,
		Logger:        ctx.Logger,
	}).Analyze(needExclusive)
	if err != nil {
		return nil, app.AnalysisError("failed to analyze metadata", err)
	}

	if device := pool.Device(); device != nil {
		stats := device.Stats()
		log.WithFields(logrus.Fields{
			"blocks_read":  stats.BlocksRead,
			"cache_hits":   stats.CacheHits,
			"cache_misses": stats.CacheMisses,
		}).Debug("analysis complete")
	}

	return BuildResponse(result, req.Fields, sb.DataBlockSize(), req.Headers), nil
}

// BuildResponse turns analyzer output into report rows
func BuildResponse(result *analyzer.Result, fields []Field, dataBlockSize uint32, headers bool) *Response {
	response := &Response{
		Fields:        fields,
		Headers:       headers,
		DataBlockSize: dataBlockSize,
		Devices:       make([]Row, 0, len(result.Devices)),
	}

	for _, stats := range result.Devices {
		row := Row{Fields: fields, Values: make([]uint64, len(fields))}
		for i, f := range fields {
			if f.NeedsExclusivity() && !stats.HasExclusivity {
				panic(fmt.Sprintf("ls: field %s requested without exclusivity data", f))
			}
			row.Values[i] = f.Value(stats, uint64(dataBlockSize))
		}
		response.Devices = append(response.Devices, row)
	}

	return response
}
