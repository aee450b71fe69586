package ls

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-thinpool/internal/testutil"
	"github.com/deploymenttheory/go-thinpool/internal/types"
	"github.com/deploymenttheory/go-thinpool/pkg/app"
)

func writePool(t *testing.T, corrupt func(img *testutil.Image, layout testutil.Pool)) string {
	t.Helper()
	img := testutil.NewImage()
	img.LeafCapacity = 2
	layout := img.WritePool([]testutil.ThinDevice{
		{ID: 0, TransactionID: 1, Physical: []types.BlockAddress{1, 2, 3}},
		{ID: 1, TransactionID: 2, CreationTime: 1, SnapshotTime: 1, Physical: []types.BlockAddress{3, 4}},
	})
	img.WriteSuperblock(testutil.NewSuperblock(layout))
	if corrupt != nil {
		corrupt(img, layout)
	}
	return img.WriteFile(t)
}

func newRequest(path string, fields ...Field) *Request {
	return &Request{
		DevicePath:   path,
		Fields:       fields,
		Headers:      true,
		CacheBlocks:  64,
		VerifyCounts: true,
	}
}

func TestHandle(t *testing.T) {
	path := writePool(t, nil)

	testCases := []struct {
		name          string
		fields        []Field
		cacheMappings bool
		want          [][]uint64
	}{
		{
			name:   "Default Fields",
			fields: DefaultFields,
			want:   [][]uint64{{0, 196608, 0, 0}, {1, 131072, 1, 1}},
		},
		{
			name:   "Exclusivity Fields",
			fields: []Field{FieldDev, FieldMappedBlocks, FieldExclusiveBlocks, FieldSharedBlocks, FieldTransaction},
			want:   [][]uint64{{0, 3, 2, 1, 1}, {1, 2, 1, 1, 2}},
		},
		{
			name:          "Cached Mappings",
			fields:        []Field{FieldExclusiveSectors, FieldSharedSectors},
			cacheMappings: true,
			want:          [][]uint64{{256, 128}, {128, 128}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := newRequest(path, tc.fields...)
			req.CacheMappings = tc.cacheMappings

			response, err := Handle(app.NewContext(), req)
			require.NoError(t, err)

			assert.Equal(t, tc.fields, response.Fields)
			assert.Equal(t, uint32(128), response.DataBlockSize)
			require.Len(t, response.Devices, len(tc.want))
			for i, row := range response.Devices {
				assert.Equal(t, tc.want[i], row.Values)

				first, ok := row.Get(tc.fields[0])
				assert.True(t, ok)
				assert.Equal(t, tc.want[i][0], first)
				_, ok = row.Get(Field("OWNER"))
				assert.False(t, ok)
			}
		})
	}
}

func TestHandleEndToEndTable(t *testing.T) {
	path := writePool(t, nil)

	response, err := Handle(app.NewContext(), newRequest(path, FieldDev, FieldMapped, FieldExclusive, FieldShared))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, response, "table"))
	assert.Equal(t,
		"DEV MAPPED EXCLUSIVE SHARED\n"+
			"0   192KiB 128KiB    64KiB\n"+
			"1   128KiB 64KiB     64KiB\n",
		buf.String())
}

func TestHandleErrors(t *testing.T) {
	testCases := []struct {
		name     string
		req      func(t *testing.T) *Request
		wantCode string
		wantText string
	}{
		{
			name:     "Missing Path",
			req:      func(t *testing.T) *Request { return newRequest("", DefaultFields...) },
			wantCode: app.ErrCodeInvalidInput,
		},
		{
			name:     "No Fields",
			req:      func(t *testing.T) *Request { return newRequest(writePool(t, nil)) },
			wantCode: app.ErrCodeInvalidInput,
		},
		{
			name: "Unknown Field",
			req: func(t *testing.T) *Request {
				return newRequest(writePool(t, nil), Field("SIZE"))
			},
			wantCode: app.ErrCodeInvalidInput,
		},
		{
			name: "Device Does Not Exist",
			req: func(t *testing.T) *Request {
				return newRequest(filepath.Join(t.TempDir(), "absent"), DefaultFields...)
			},
			wantCode: app.ErrCodeMetadataAccess,
		},
		{
			name: "No Metadata Snapshot",
			req: func(t *testing.T) *Request {
				req := newRequest(writePool(t, nil), DefaultFields...)
				req.UseMetadataSnap = true
				return req
			},
			wantCode: app.ErrCodeMetadataAccess,
			wantText: "no metadata snapshot is held",
		},
		{
			name: "Damaged Mapping Tree",
			req: func(t *testing.T) *Request {
				path := writePool(t, func(img *testutil.Image, layout testutil.Pool) {
					img.Block(layout.MappingNodes[0][1])[types.NodeHeaderSize] ^= 0xff
				})
				return newRequest(path, FieldDev, FieldShared)
			},
			wantCode: app.ErrCodeMetadataDamage,
			wantText: "run thin_check",
		},
		{
			name: "Missing Mapping Root",
			req: func(t *testing.T) *Request {
				path := writePool(t, func(img *testutil.Image, layout testutil.Pool) {
					// rewrite the top-level tree without device 1
					root := img.WriteTree([]testutil.Entry{
						{Key: 0, Value: testutil.U64(uint64(layout.DeviceRoots[0]))},
					}, types.BlockNumberValueSize)
					sb := testutil.NewSuperblock(layout)
					sb.DataMappingRoot = uint64(root)
					img.WriteSuperblock(sb)
				})
				return newRequest(path, FieldDev, FieldExclusiveBlocks)
			},
			wantCode: app.ErrCodeMetadataDamage,
			wantText: "missing mapping tree root for device 1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			response, err := Handle(app.NewContext(), tc.req(t))
			assert.Nil(t, response)
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, app.ErrorCode(err))
			if tc.wantText != "" {
				assert.Contains(t, err.Error(), tc.wantText)
			}
		})
	}
}

func TestHandleDamageIgnoredWithoutExclusivityFields(t *testing.T) {
	path := writePool(t, func(img *testutil.Image, layout testutil.Pool) {
		img.Block(layout.MappingNodes[0][1])[types.NodeHeaderSize] ^= 0xff
	})

	response, err := Handle(app.NewContext(), newRequest(path, DefaultFields...))
	require.NoError(t, err)
	assert.Len(t, response.Devices, 2)
}
