/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 12 09:02:40 2019 mstenber
 * Last modified: Sat Feb 16 15:20:03 2019 mstenber
 * Edit time:     27 min
 *
 */

package fs

import (
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
)

func (self *Fs) bzero(dev, bno uint32) {
	b := self.cache.Fetch(dev, bno)
	storage.Zero(b.Data[:])
	self.log.Write(b)
	self.cache.Release(b)
}

// balloc allocates a zeroed disk block. Running out is fatal.
func (self *Fs) balloc(dev uint32) uint32 {
	sb := self.ReadSuper(dev)
	for base := uint32(0); base < sb.Size; base += BPB {
		b := self.cache.Fetch(dev, sb.BBlock(base))
		for bi := uint32(0); bi < BPB && base+bi < sb.Size; bi++ {
			m := byte(1 << (bi % 8))
			if b.Data[bi/8]&m == 0 {
				b.Data[bi/8] |= m
				self.log.Write(b)
				self.cache.Release(b)
				self.bzero(dev, base+bi)
				mlog.Printf2("fs/balloc", "balloc %d/%d", dev, base+bi)
				return base + bi
			}
		}
		self.cache.Release(b)
	}
	mlog.Panicf("fs/balloc", "out of blocks on %d", dev)
	return 0
}

// bfree frees a disk block. Freeing a free block is fatal.
func (self *Fs) bfree(dev, bno uint32) {
	sb := self.ReadSuper(dev)
	b := self.cache.Fetch(dev, sb.BBlock(bno))
	defer self.cache.Release(b)
	bi := bno % BPB
	m := byte(1 << (bi % 8))
	if b.Data[bi/8]&m == 0 {
		mlog.Panicf("fs/balloc", "freeing free block %d/%d", dev, bno)
	}
	b.Data[bi/8] &^= m
	self.log.Write(b)
	mlog.Printf2("fs/balloc", "bfree %d/%d", dev, bno)
}

func (self *Fs) blockInUse(dev, bno uint32) bool {
	sb := self.ReadSuper(dev)
	b := self.cache.Fetch(dev, sb.BBlock(bno))
	defer self.cache.Release(b)
	bi := bno % BPB
	return b.Data[bi/8]&(1<<(bi%8)) != 0
}

// FreeBlocks counts the free blocks of dev.
func (self *Fs) FreeBlocks(dev uint32) (n uint32) {
	sb := self.ReadSuper(dev)
	for base := uint32(0); base < sb.Size; base += BPB {
		b := self.cache.Fetch(dev, sb.BBlock(base))
		for bi := uint32(0); bi < BPB && base+bi < sb.Size; bi++ {
			if b.Data[bi/8]&(1<<(bi%8)) == 0 {
				n++
			}
		}
		self.cache.Release(b)
	}
	return
}
