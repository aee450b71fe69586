package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-thinpool/internal/disk"
	"github.com/deploymenttheory/go-thinpool/internal/testutil"
	"github.com/deploymenttheory/go-thinpool/internal/types"
	"github.com/deploymenttheory/go-thinpool/pkg/app"
	"github.com/deploymenttheory/go-thinpool/pkg/app/ls"
)

func writeImage(t *testing.T) string {
	t.Helper()
	img := testutil.NewImage()
	layout := img.WritePool([]testutil.ThinDevice{
		{ID: 0, TransactionID: 1, Physical: []types.BlockAddress{1, 2}},
		{ID: 1, TransactionID: 2, CreationTime: 1, SnapshotTime: 1, Physical: []types.BlockAddress{2}},
	})
	img.WriteSuperblock(testutil.NewSuperblock(layout))
	return img.WriteFile(t)
}

// resetFlags restores every flag of cmd and its children to its default
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(t, child)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(t, rootCmd)
	t.Cleanup(func() { resetFlags(t, rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestLsDefaultFields(t *testing.T) {
	stdout, _, err := execute(t, "ls", writeImage(t), "-o", "json")
	require.NoError(t, err)

	var decoded struct {
		Fields  []string           `json:"fields"`
		Devices []map[string]int64 `json:"devices"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	assert.Equal(t, []string{"DEV", "MAPPED", "CREATE_TIME", "SNAP_TIME"}, decoded.Fields)
	require.Len(t, decoded.Devices, 2)
	assert.Equal(t, int64(131072), decoded.Devices[0]["MAPPED"])
	assert.Equal(t, int64(1), decoded.Devices[1]["CREATE_TIME"])
}

func TestLsFormatFlag(t *testing.T) {
	stdout, _, err := execute(t, "ls", writeImage(t), "--format", "dev,exclusive_blocks,shared_blocks", "--no-headers")
	require.NoError(t, err)
	assert.Equal(t, "0 1 1\n1 0 1\n", stdout)
}

func TestLsCacheMappings(t *testing.T) {
	stdout, _, err := execute(t, "ls", writeImage(t), "--format", "DEV,EXCLUSIVE_BLOCKS", "--cache-mappings")
	require.NoError(t, err)
	assert.Equal(t, "DEV EXCLUSIVE_BLOCKS\n0   1\n1   0\n", stdout)
}

func TestLsFieldsFromEnvironment(t *testing.T) {
	t.Setenv("THINPOOL_FIELDS", "DEV,TRANSACTION")
	t.Setenv("THINPOOL_HEADERS", "false")

	stdout, _, err := execute(t, "ls", writeImage(t))
	require.NoError(t, err)
	assert.Equal(t, "0 1\n1 2\n", stdout)
}

func TestLsFlagOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thinpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields: DEV,TRANSACTION\nheaders: false\n"), 0o600))

	stdout, _, err := execute(t, "ls", writeImage(t), "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "0 1\n1 2\n", stdout)

	stdout, _, err = execute(t, "ls", writeImage(t), "--config", path, "--format", "DEV,MAPPED_BLOCKS")
	require.NoError(t, err)
	assert.Equal(t, "0 2\n1 1\n", stdout)
}

func TestLsErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{
			name:     "Unknown Field",
			args:     []string{"ls", writeImage(t), "--format", "DEV,OWNER"},
			wantCode: app.ErrCodeInvalidInput,
		},
		{
			name:     "Missing Device",
			args:     []string{"ls", filepath.Join(t.TempDir(), "missing")},
			wantCode: app.ErrCodeMetadataAccess,
		},
		{
			name:     "No Metadata Snapshot",
			args:     []string{"ls", writeImage(t), "-m"},
			wantCode: app.ErrCodeMetadataAccess,
		},
		{
			name:     "Missing Config File",
			args:     []string{"ls", writeImage(t), "--config", filepath.Join(t.TempDir(), "none.yaml")},
			wantCode: app.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, app.ErrorCode(err))
			assert.Empty(t, stdout)
		})
	}
}

func TestUnsupportedOutputRejectedBeforeOpen(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	for _, command := range []string{"ls", "info"} {
		t.Run(command, func(t *testing.T) {
			stdout, _, err := execute(t, command, missing, "-o", "xml")
			require.Error(t, err)
			assert.Equal(t, app.ErrCodeInvalidInput, app.ErrorCode(err))
			assert.Contains(t, err.Error(), `unsupported output format "xml"`)
			assert.Empty(t, stdout)
		})
	}
}

func TestLsRequiresDevice(t *testing.T) {
	_, _, err := execute(t, "ls")
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	stdout, _, err := execute(t, "info", writeImage(t), "-o", "json")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	assert.Equal(t, float64(2), decoded["version"])
	assert.Equal(t, float64(2), decoded["devices"])
	assert.Equal(t, float64(128), decoded["data_block_size_sectors"])
}

func TestVerboseLogsToStderr(t *testing.T) {
	_, stderr, err := execute(t, "ls", writeImage(t), "-v", "--format", "DEV,SHARED_BLOCKS")
	require.NoError(t, err)
	assert.Contains(t, stderr, "level=debug")
}

func TestConfiguredDefaultFields(t *testing.T) {
	fields, err := ls.ParseFields(disk.DefaultFields)
	require.NoError(t, err)
	assert.Equal(t, ls.DefaultFields, fields)
}
