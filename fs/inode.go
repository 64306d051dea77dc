/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 12 09:40:05 2019 mstenber
 * Last modified: Mon Feb 18 10:20:40 2019 mstenber
 * Edit time:     48 min
 *
 */

package fs

import (
	"encoding/binary"

	"github.com/fingon/go-xv6fs/mlog"
)

// Inode is the in-memory copy of a dinode plus cache bookkeeping.
//
// A *Inode is a counted handle: IGet, IAlloc and Dup each hand out a
// reference that the holder gives back with Put. The dinode fields
// may be touched only between Lock and Unlock.
type Inode struct {
	fs   *Fs
	Dev  uint32
	Inum uint32

	// guarded by the inode cache lock
	ref   int
	busy  bool
	valid bool
	slot  int

	// dinode copy, guarded by busy
	Type      InodeType
	Major     int16
	Minor     int16
	Nlink     int16
	Size      uint32
	Addrs     [NDIRECT + 1]uint32
	Indirect2 uint32
	Password  [PASSLEN]byte
}

// Stat is the metadata snapshot of an inode.
type Stat struct {
	Dev   uint32    `json:"dev" yaml:"dev"`
	Inum  uint32    `json:"ino" yaml:"ino"`
	Type  InodeType `json:"type" yaml:"type"`
	Nlink int16     `json:"nlink" yaml:"nlink"`
	Size  uint32    `json:"size" yaml:"size"`
}

func (self *Inode) String() string {
	return fmtInode(self.Dev, self.Inum)
}

func (self *Inode) decode(b []byte) {
	le := binary.LittleEndian
	self.Type = InodeType(le.Uint16(b[0:]))
	self.Major = int16(le.Uint16(b[2:]))
	self.Minor = int16(le.Uint16(b[4:]))
	self.Nlink = int16(le.Uint16(b[6:]))
	self.Size = le.Uint32(b[8:])
	for i := range self.Addrs {
		self.Addrs[i] = le.Uint32(b[12+4*i:])
	}
	self.Indirect2 = le.Uint32(b[12+4*len(self.Addrs):])
	copy(self.Password[:], b[DinodeSize-PASSLEN:DinodeSize])
}

func (self *Inode) encode(b []byte) {
	le := binary.LittleEndian
	le.PutUint16(b[0:], uint16(self.Type))
	le.PutUint16(b[2:], uint16(self.Major))
	le.PutUint16(b[4:], uint16(self.Minor))
	le.PutUint16(b[6:], uint16(self.Nlink))
	le.PutUint32(b[8:], self.Size)
	for i, a := range self.Addrs {
		le.PutUint32(b[12+4*i:], a)
	}
	le.PutUint32(b[12+4*len(self.Addrs):], self.Indirect2)
	copy(b[DinodeSize-PASSLEN:DinodeSize], self.Password[:])
}

func dinodeOffset(inum uint32) uint32 {
	return (inum % IPB) * DinodeSize
}

// IAlloc allocates a fresh inode of type typ on dev and returns it
// referenced but unlocked. Running out of inodes is fatal. Must be
// called within a transaction.
func (self *Fs) IAlloc(dev uint32, typ InodeType) *Inode {
	sb := self.ReadSuper(dev)
	for inum := uint32(1); inum < sb.NInodes; inum++ {
		b := self.cache.Fetch(dev, sb.IBlock(inum))
		off := dinodeOffset(inum)
		d := b.Data[off : off+DinodeSize]
		if binary.LittleEndian.Uint16(d) == uint16(T_FREE) {
			for i := range d {
				d[i] = 0
			}
			binary.LittleEndian.PutUint16(d, uint16(typ))
			self.log.Write(b)
			self.cache.Release(b)
			mlog.Printf2("fs/inode", "ialloc %d/%d %v", dev, inum, typ)
			return self.IGet(dev, inum)
		}
		self.cache.Release(b)
	}
	mlog.Panicf("fs/inode", "ialloc: no inodes on %d", dev)
	return nil
}

// Update writes the (locked) inode to disk. Must be called within a
// transaction, after every change of a dinode field.
func (self *Inode) Update() {
	self.assertLocked("iupdate")
	sb := self.fs.ReadSuper(self.Dev)
	b := self.fs.cache.Fetch(self.Dev, sb.IBlock(self.Inum))
	off := dinodeOffset(self.Inum)
	self.encode(b.Data[off : off+DinodeSize])
	self.fs.log.Write(b)
	self.fs.cache.Release(b)
}

func (self *Inode) load() {
	sb := self.fs.ReadSuper(self.Dev)
	b := self.fs.cache.Fetch(self.Dev, sb.IBlock(self.Inum))
	off := dinodeOffset(self.Inum)
	self.decode(b.Data[off : off+DinodeSize])
	self.fs.cache.Release(b)
}

// Stat returns metadata of the locked inode.
func (self *Inode) Stat() Stat {
	self.assertLocked("stati")
	return Stat{Dev: self.Dev, Inum: self.Inum, Type: self.Type,
		Nlink: self.Nlink, Size: self.Size}
}
