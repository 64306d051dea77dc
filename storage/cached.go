/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 10 12:30:05 2019 mstenber
 * Last modified: Fri Feb 15 10:20:44 2019 mstenber
 * Edit time:     22 min
 *
 */

package storage

import (
	"github.com/bluele/gcache"
	"github.com/fingon/go-xv6fs/mlog"
)

// CachedDevice keeps ARC cache of recently used blocks in front of
// slow (decoding) device. Writes go through to the device.
type CachedDevice struct {
	Device
	cache gcache.Cache
}

var _ Device = &CachedDevice{}

func NewCachedDevice(dev Device, blocks int) *CachedDevice {
	return &CachedDevice{Device: dev, cache: gcache.New(blocks).ARC().Build()}
}

func (self *CachedDevice) ReadBlock(bno uint32, data []byte) error {
	if v, err := self.cache.Get(bno); err == nil {
		copy(data, v.([]byte))
		return nil
	}
	if err := self.Device.ReadBlock(bno, data); err != nil {
		return err
	}
	mlog.Printf2("storage/cached", "miss %d", bno)
	self.cache.Set(bno, append([]byte(nil), data...))
	return nil
}

func (self *CachedDevice) WriteBlock(bno uint32, data []byte) error {
	if err := self.Device.WriteBlock(bno, data); err != nil {
		self.cache.Remove(bno)
		return err
	}
	self.cache.Set(bno, append([]byte(nil), data...))
	return nil
}

func (self *CachedDevice) Close() error {
	self.cache.Purge()
	return self.Device.Close()
}
