/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 12 08:30:12 2019 mstenber
 * Last modified: Sat Feb 16 15:11:42 2019 mstenber
 * Edit time:     22 min
 *
 */

package fs

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const SuperMagic = 0x78763666 // "xv6f"

// SuperBlock is at block 1. Layout after it: inodes, bitmap, data,
// log.
type SuperBlock struct {
	Magic      uint32
	Size       uint32 // device size in blocks
	NBlocks    uint32 // data blocks
	NInodes    uint32
	NLog       uint32
	LogStart   uint32
	InodeStart uint32
	BmapStart  uint32
	UUID       uuid.UUID
}

const superBlockNo = 1

func (self *SuperBlock) encode(b []byte) {
	for i, v := range []uint32{self.Magic, self.Size, self.NBlocks,
		self.NInodes, self.NLog, self.LogStart, self.InodeStart,
		self.BmapStart} {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	copy(b[32:48], self.UUID[:])
}

func (self *SuperBlock) decode(b []byte) {
	for i, p := range []*uint32{&self.Magic, &self.Size, &self.NBlocks,
		&self.NInodes, &self.NLog, &self.LogStart, &self.InodeStart,
		&self.BmapStart} {
		*p = binary.LittleEndian.Uint32(b[4*i:])
	}
	copy(self.UUID[:], b[32:48])
}

func (self *SuperBlock) validate() error {
	if self.Magic != SuperMagic {
		return errors.Wrapf(ErrBadSuperblock, "magic %x", self.Magic)
	}
	if self.NInodes > NEXEMPT {
		return errors.Wrapf(ErrBadSuperblock, "%d inodes: %v", self.NInodes, ErrTooManyInodes)
	}
	if self.InodeStart <= superBlockNo || self.BmapStart < self.InodeStart ||
		self.LogStart+self.NLog > self.Size {
		return errors.Wrapf(ErrBadSuperblock, "layout %+v", *self)
	}
	return nil
}

// IBlock is the block holding inode inum.
func (self *SuperBlock) IBlock(inum uint32) uint32 {
	return self.InodeStart + inum/IPB
}

// BBlock is the bitmap block holding bit of block b.
func (self *SuperBlock) BBlock(b uint32) uint32 {
	return self.BmapStart + b/BPB
}

// ReadSuper reads the superblock of dev.
func (self *Fs) ReadSuper(dev uint32) (sb SuperBlock) {
	b := self.cache.Fetch(dev, superBlockNo)
	sb.decode(b.Data[:])
	self.cache.Release(b)
	return
}
