/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 12 10:31:52 2019 mstenber
 * Last modified: Mon Feb 18 10:41:17 2019 mstenber
 * Edit time:     66 min
 *
 */

package fs

import (
	"fmt"

	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/util"
)

func fmtInode(dev, inum uint32) string {
	return fmt.Sprintf("inode %d/%d", dev, inum)
}

type inodeKey struct {
	dev, inum uint32
}

// inodeCache is fixed size arena of in-memory inodes. The lock guards
// identity, reference counts and the busy/valid flags; it is never
// held across disk access. Inode contents are guarded by busy
// instead.
type inodeCache struct {
	lock  util.SleepLock
	slots []Inode
	free  []int
	index map[inodeKey]int
}

func (self *inodeCache) init(fs *Fs, capacity int) {
	self.slots = make([]Inode, capacity)
	self.free = make([]int, capacity)
	for i := range self.slots {
		self.slots[i].fs = fs
		self.slots[i].slot = i
		// lowest slots first
		self.free[i] = capacity - 1 - i
	}
	self.index = make(map[inodeKey]int)
}

// IGet returns a referenced handle for inode inum of dev without
// locking it or reading it from disk. Cache exhaustion is fatal.
func (self *Fs) IGet(dev, inum uint32) *Inode {
	ic := &self.icache
	defer ic.lock.Locked()()
	k := inodeKey{dev, inum}
	if i, ok := ic.index[k]; ok {
		ip := &ic.slots[i]
		ip.ref++
		return ip
	}
	if len(ic.free) == 0 {
		mlog.Panicf("fs/icache", "iget: no inodes")
	}
	i := ic.free[len(ic.free)-1]
	ic.free = ic.free[:len(ic.free)-1]
	ip := &ic.slots[i]
	ip.Dev = dev
	ip.Inum = inum
	ip.ref = 1
	ip.busy = false
	ip.valid = false
	ic.index[k] = i
	return ip
}

// Dup adds a reference to the handle.
func (self *Inode) Dup() *Inode {
	ic := &self.fs.icache
	defer ic.lock.Locked()()
	if self.ref < 1 {
		mlog.Panicf("fs/icache", "idup of free %v", self)
	}
	self.ref++
	return self
}

// Lock acquires the inode exclusively, sleeping while someone else
// has it, and reads it from disk if needed.
func (self *Inode) Lock() {
	ic := &self.fs.icache
	ic.lock.Lock()
	if self.ref < 1 {
		ic.lock.Unlock()
		mlog.Panicf("fs/icache", "ilock of unreferenced %v", self)
	}
	for self.busy {
		ic.lock.Sleep()
	}
	self.busy = true
	valid := self.valid
	ic.lock.Unlock()

	if valid {
		return
	}
	self.load()
	if self.Type == T_FREE {
		mlog.Panicf("fs/icache", "ilock: %v has no type", self)
	}
	defer ic.lock.Locked()()
	self.valid = true
}

// Unlock releases the exclusive access and wakes up waiters.
func (self *Inode) Unlock() {
	ic := &self.fs.icache
	defer ic.lock.Locked()()
	if !self.busy || self.ref < 1 {
		mlog.Panicf("fs/icache", "iunlock of unlocked %v", self)
	}
	self.busy = false
	ic.lock.Wakeup()
}

// Put drops a reference. Dropping the last reference of an inode with
// no links frees it and its content on disk, so Put must be called
// within a transaction.
func (self *Inode) Put() {
	ic := &self.fs.icache
	ic.lock.Lock()
	if self.ref < 1 {
		ic.lock.Unlock()
		mlog.Panicf("fs/icache", "iput of free %v", self)
	}
	if self.ref == 1 && self.valid && self.Nlink == 0 {
		if self.busy {
			ic.lock.Unlock()
			mlog.Panicf("fs/icache", "iput of busy %v", self)
		}
		self.busy = true
		ic.lock.Unlock()

		mlog.Printf2("fs/icache", "freeing %v", self)
		self.trunc()
		self.Type = T_FREE
		self.Major = 0
		self.Minor = 0
		self.Password = [PASSLEN]byte{}
		self.Update()
		if self.Dev == ROOTDEV {
			self.fs.exempt.clear(self.Inum)
		}

		ic.lock.Lock()
		self.busy = false
		self.valid = false
		ic.lock.Wakeup()
	}
	self.ref--
	if self.ref == 0 {
		delete(ic.index, inodeKey{self.Dev, self.Inum})
		self.valid = false
		ic.free = append(ic.free, self.slot)
	}
	ic.lock.Unlock()
}

// UnlockPut is Unlock followed by Put.
func (self *Inode) UnlockPut() {
	self.Unlock()
	self.Put()
}

func (self *Inode) assertLocked(op string) {
	ic := &self.fs.icache
	defer ic.lock.Locked()()
	if !self.busy || self.ref < 1 {
		mlog.Panicf("fs/icache", "%s: %v not locked", op, self)
	}
}

// Refs returns the current reference count.
func (self *Inode) Refs() int {
	ic := &self.fs.icache
	defer ic.lock.Locked()()
	return self.ref
}

// InodesInUse returns number of occupied inode cache slots.
func (self *Fs) InodesInUse() int {
	ic := &self.icache
	defer ic.lock.Locked()()
	return len(ic.slots) - len(ic.free)
}
