/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 12 12:05:18 2019 mstenber
 * Last modified: Sun Feb 17 11:30:09 2019 mstenber
 * Edit time:     41 min
 *
 */

package fs

import (
	"encoding/binary"

	"github.com/fingon/go-xv6fs/mlog"
)

// Content block addressing:
//
// - bn < NDIRECT: Addrs[bn]
// - next NINDIRECT: entries of block Addrs[NDIRECT]
// - next NDINDIRECT: Indirect2 block holds NINDIRECT index blocks,
// each holding NINDIRECT entries; bn is split as
// (bn / NINDIRECT, bn % NINDIRECT)
//
// Zero entry means not allocated.

// indexEntry returns entry i of index block, allocating the target
// block if alloc is set and entry is empty.
func (self *Inode) indexEntry(block, i uint32, alloc bool) uint32 {
	fs := self.fs
	b := fs.cache.Fetch(self.Dev, block)
	defer fs.cache.Release(b)
	addr := binary.LittleEndian.Uint32(b.Data[4*i:])
	if addr == 0 && alloc {
		addr = fs.balloc(self.Dev)
		binary.LittleEndian.PutUint32(b.Data[4*i:], addr)
		fs.log.Write(b)
	}
	return addr
}

// bmap returns disk block of content block bn, allocating it (and
// the index blocks leading to it) on first touch. The inode must be
// locked, and allocation happens within the caller's transaction.
func (self *Inode) bmap(bn uint32) uint32 {
	fs := self.fs
	if bn < NDIRECT {
		if self.Addrs[bn] == 0 {
			self.Addrs[bn] = fs.balloc(self.Dev)
		}
		return self.Addrs[bn]
	}
	bn -= NDIRECT

	if bn < NINDIRECT {
		if self.Addrs[NDIRECT] == 0 {
			self.Addrs[NDIRECT] = fs.balloc(self.Dev)
		}
		return self.indexEntry(self.Addrs[NDIRECT], bn, true)
	}
	bn -= NINDIRECT

	if bn < NDINDIRECT {
		if self.Indirect2 == 0 {
			self.Indirect2 = fs.balloc(self.Dev)
		}
		mid := self.indexEntry(self.Indirect2, bn/NINDIRECT, true)
		return self.indexEntry(mid, bn%NINDIRECT, true)
	}
	mlog.Panicf("fs/bmap", "bmap: %d out of range", bn+NDIRECT+NINDIRECT)
	return 0
}

// freeIndex frees every block listed in index block and then the
// index block itself. If deep is set, the listed blocks are index
// blocks too.
func (self *Inode) freeIndex(block uint32, deep bool) {
	fs := self.fs
	b := fs.cache.Fetch(self.Dev, block)
	var addrs [NINDIRECT]uint32
	for i := range addrs {
		addrs[i] = binary.LittleEndian.Uint32(b.Data[4*i:])
	}
	fs.cache.Release(b)
	for _, addr := range addrs {
		if addr == 0 {
			continue
		}
		if deep {
			self.freeIndex(addr, false)
		} else {
			fs.bfree(self.Dev, addr)
		}
	}
	fs.bfree(self.Dev, block)
}

// trunc discards the inode's content. Every bitmap update lands in
// the caller's transaction. Only called for inodes with no links and
// no other references.
func (self *Inode) trunc() {
	fs := self.fs
	for i := 0; i < NDIRECT; i++ {
		if self.Addrs[i] != 0 {
			fs.bfree(self.Dev, self.Addrs[i])
			self.Addrs[i] = 0
		}
	}
	if self.Addrs[NDIRECT] != 0 {
		self.freeIndex(self.Addrs[NDIRECT], false)
		self.Addrs[NDIRECT] = 0
	}
	if self.Indirect2 != 0 {
		self.freeIndex(self.Indirect2, true)
		self.Indirect2 = 0
	}
	self.Size = 0
	self.Update()
}
