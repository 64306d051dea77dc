/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Mon Feb 11 08:31:27 2019 mstenber
 * Last modified: Sat Feb 16 12:03:44 2019 mstenber
 * Edit time:     71 min
 *
 */

// bcache is the buffer cache: fixed number of block sized buffers,
// each owned by at most one caller at a time.
//
// Fetch returns a buffer holding the block, waiting if someone else
// owns it; Release gives it back. Buffers that the log has marked
// dirty stay resident until Flush writes them to the device.
package bcache

import (
	"container/list"

	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/util"
)

const DefaultBuffers = 64

const (
	flagBusy = 1 << iota
	flagValid
	flagDirty
)

type blockKey struct {
	dev, bno uint32
}

type Buf struct {
	Dev, Blockno uint32
	Data         [storage.BlockSize]byte

	// flags are changed only with cache lock held
	flags int
	elem  *list.Element
}

type Cache struct {
	lock    util.SleepLock
	devices map[uint32]storage.Device

	// lru has most recently released buffer at front
	lru   *list.List
	index map[blockKey]*Buf
}

func New(buffers int) *Cache {
	if buffers <= 0 {
		buffers = DefaultBuffers
	}
	self := &Cache{devices: make(map[uint32]storage.Device),
		lru:   list.New(),
		index: make(map[blockKey]*Buf)}
	for i := 0; i < buffers; i++ {
		b := &Buf{}
		b.elem = self.lru.PushBack(b)
	}
	return self
}

// Attach makes device available as dev.
func (self *Cache) Attach(dev uint32, d storage.Device) {
	defer self.lock.Locked()()
	self.devices[dev] = d
}

func (self *Cache) Device(dev uint32) storage.Device {
	defer self.lock.Locked()()
	return self.devices[dev]
}

func (self *Cache) get(dev, bno uint32) *Buf {
	defer self.lock.Locked()()
	k := blockKey{dev, bno}
	for {
		b := self.index[k]
		if b == nil {
			break
		}
		if b.flags&flagBusy == 0 {
			b.flags |= flagBusy
			return b
		}
		self.lock.Sleep()
	}
	for e := self.lru.Back(); e != nil; e = e.Prev() {
		b := e.Value.(*Buf)
		if b.flags&(flagBusy|flagDirty) != 0 {
			continue
		}
		ok := blockKey{b.Dev, b.Blockno}
		if self.index[ok] == b {
			delete(self.index, ok)
		}
		b.Dev = dev
		b.Blockno = bno
		b.flags = flagBusy
		self.index[k] = b
		return b
	}
	mlog.Panicf("bcache", "no buffers")
	return nil
}

func (self *Cache) setFlag(b *Buf, flag int, value bool) {
	defer self.lock.Locked()()
	if value {
		b.flags |= flag
	} else {
		b.flags &^= flag
	}
}

func (self *Cache) hasFlag(b *Buf, flag int) bool {
	defer self.lock.Locked()()
	return b.flags&flag != 0
}

// Fetch returns the buffer for dev/bno with its contents, owned by
// the caller until Release.
func (self *Cache) Fetch(dev, bno uint32) *Buf {
	b := self.get(dev, bno)
	if !self.hasFlag(b, flagValid) {
		d := self.Device(dev)
		if d == nil {
			mlog.Panicf("bcache", "no device %d", dev)
		}
		if err := d.ReadBlock(bno, b.Data[:]); err != nil {
			mlog.Panicf("bcache", "read %d/%d: %v", dev, bno, err)
		}
		self.setFlag(b, flagValid, true)
	}
	return b
}

// Flush writes owned buffer to its device and clears dirty flag.
func (self *Cache) Flush(b *Buf) {
	if !self.hasFlag(b, flagBusy) {
		mlog.Panicf("bcache", "flush of unowned buffer %d/%d", b.Dev, b.Blockno)
	}
	d := self.Device(b.Dev)
	if err := d.WriteBlock(b.Blockno, b.Data[:]); err != nil {
		mlog.Panicf("bcache", "write %d/%d: %v", b.Dev, b.Blockno, err)
	}
	self.setFlag(b, flagDirty, false)
}

// MarkDirty pins the buffer in the cache until it is flushed.
func (self *Cache) MarkDirty(b *Buf) {
	self.setFlag(b, flagDirty, true)
}

func (self *Cache) IsDirty(b *Buf) bool {
	return self.hasFlag(b, flagDirty)
}

func (self *Cache) Release(b *Buf) {
	defer self.lock.Locked()()
	if b.flags&flagBusy == 0 {
		mlog.Panicf("bcache", "release of unowned buffer %d/%d", b.Dev, b.Blockno)
	}
	b.flags &^= flagBusy
	self.lru.MoveToFront(b.elem)
	self.lock.Wakeup()
}

// Sync syncs the device dev.
func (self *Cache) Sync(dev uint32) error {
	d := self.Device(dev)
	if d == nil {
		return nil
	}
	return d.Sync()
}
