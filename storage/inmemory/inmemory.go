/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 10 11:40:01 2019 mstenber
 * Last modified: Fri Feb 15 10:31:12 2019 mstenber
 * Edit time:     11 min
 *
 */

package inmemory

import (
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/util"
)

// inMemoryDevice keeps written blocks in a map; it is used mostly in
// tests.
type inMemoryDevice struct {
	lock   util.MutexLocked
	blocks map[uint32][]byte
	size   uint32
}

var _ storage.Device = &inMemoryDevice{}

func NewInMemoryDevice(config storage.BackendConfiguration) storage.Device {
	return &inMemoryDevice{blocks: make(map[uint32][]byte), size: config.Blocks}
}

func (self *inMemoryDevice) NumBlocks() uint32 {
	return self.size
}

func (self *inMemoryDevice) ReadBlock(bno uint32, data []byte) error {
	if err := storage.CheckAccess(self, bno, data); err != nil {
		return err
	}
	defer self.lock.Locked()()
	b, ok := self.blocks[bno]
	if !ok {
		storage.Zero(data)
		return nil
	}
	copy(data, b)
	return nil
}

func (self *inMemoryDevice) WriteBlock(bno uint32, data []byte) error {
	if err := storage.CheckAccess(self, bno, data); err != nil {
		return err
	}
	defer self.lock.Locked()()
	self.blocks[bno] = append([]byte(nil), data...)
	return nil
}

func (self *inMemoryDevice) Sync() error {
	return nil
}

func (self *inMemoryDevice) Close() error {
	return nil
}
