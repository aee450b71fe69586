//go:build linux

package disk

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// openDevice opens path read-only. O_EXCL without O_CREAT fails with EBUSY
// when a block device is already claimed, and is ignored for regular files.
func openDevice(path string, exclusive bool) (*os.File, error) {
	flags := unix.O_RDONLY | unix.O_CLOEXEC
	if exclusive {
		flags |= unix.O_EXCL
	}

	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		if exclusive && errors.Is(err, unix.EBUSY) {
			return nil, fmt.Errorf("device is in use (try --metadata-snap against a live pool): %w", err)
		}
		return nil, err
	}

	return os.NewFile(uintptr(fd), path), nil
}

// deviceSize returns the size of a regular file, or asks the kernel for the
// size of a block device
func deviceSize(file *os.File) (int64, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(int(file.Fd()), &stat); err != nil {
		return 0, fmt.Errorf("calling fstat: %w", err)
	}

	if stat.Mode&unix.S_IFMT != unix.S_IFBLK {
		return stat.Size, nil
	}

	var size uint64
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		file.Fd(),
		unix.BLKGETSIZE64,
		uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, fmt.Errorf("error calling ioctl BLKGETSIZE64: %w", errno)
	}

	return int64(size), nil
}
