//go:build !linux

package disk

import (
	"fmt"
	"os"
)

// openDevice opens path read-only. Exclusive opens are only available on Linux.
func openDevice(path string, exclusive bool) (*os.File, error) {
	if exclusive {
		return nil, fmt.Errorf("exclusive open is not supported on this platform (use --metadata-snap)")
	}
	return os.Open(path)
}

func deviceSize(file *os.File) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat: %w", err)
	}
	return info.Size(), nil
}
