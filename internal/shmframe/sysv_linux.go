package shmframe

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// sysvSHM is the real kernel backend.
type sysvSHM struct{}

func (sysvSHM) alloc(size int) (int, []byte, error) {
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|0o600)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "shmget %d bytes", size)
	}
	buf, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return 0, nil, errors.Wrap(err, "shmat")
	}
	return id, buf, nil
}

func (sysvSHM) detach(buf []byte) error {
	return unix.SysvShmDetach(buf)
}

func (sysvSHM) remove(id int) error {
	_, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil)
	return err
}
