/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 10 11:52:44 2019 mstenber
 * Last modified: Fri Feb 15 10:40:03 2019 mstenber
 * Edit time:     25 min
 *
 */

package file

import (
	"io"
	"os"

	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/pkg/errors"
)

// fileDevice is a flat disk image; block n lives at offset
// n*BlockSize. Images are fixed size, so codecs do not apply.
type fileDevice struct {
	f    *os.File
	size uint32
}

var _ storage.Device = &fileDevice{}

// NewFileDevice opens (or creates with config.Blocks size) image at
// config.Directory.
func NewFileDevice(config storage.BackendConfiguration) (storage.Device, error) {
	path := config.Directory
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := uint32(st.Size() / storage.BlockSize)
	if size == 0 {
		size = config.Blocks
		if err = f.Truncate(int64(size) * storage.BlockSize); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "truncate %s", path)
		}
		mlog.Printf2("storage/file/file", "created %s with %d blocks", path, size)
	}
	return &fileDevice{f: f, size: size}, nil
}

func (self *fileDevice) NumBlocks() uint32 {
	return self.size
}

func (self *fileDevice) ReadBlock(bno uint32, data []byte) error {
	if err := storage.CheckAccess(self, bno, data); err != nil {
		return err
	}
	_, err := self.f.ReadAt(data, int64(bno)*storage.BlockSize)
	if err == io.EOF {
		storage.Zero(data)
		err = nil
	}
	return err
}

func (self *fileDevice) WriteBlock(bno uint32, data []byte) error {
	if err := storage.CheckAccess(self, bno, data); err != nil {
		return err
	}
	_, err := self.f.WriteAt(data, int64(bno)*storage.BlockSize)
	return err
}

func (self *fileDevice) Sync() error {
	return self.f.Sync()
}

func (self *fileDevice) Close() error {
	return self.f.Close()
}
