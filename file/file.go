/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Fri Feb 15 08:12:30 2019 mstenber
 * Last modified: Mon Feb 18 14:20:12 2019 mstenber
 * Edit time:     62 min
 *
 */

// file is the open file table shared by all processes. An open file
// is either an inode with an offset, or one end of a pipe; it is
// reference counted, and the last Close releases what it refers to.
package file

import (
	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/util"
	"github.com/pkg/errors"
)

const NFILE = 100

type Type int

const (
	FD_NONE Type = iota
	FD_PIPE
	FD_INODE
)

var (
	ErrNotReadable  = errors.New("file not open for reading")
	ErrNotWritable  = errors.New("file not open for writing")
	ErrTooManyFiles = errors.New("file table full")
	ErrBrokenPipe   = errors.New("broken pipe")
	ErrNotInode     = errors.New("not an inode")
)

type File struct {
	table *Table
	slot  int

	// guarded by table lock
	ref int

	Type     Type
	Readable bool
	Writable bool
	pipe     *Pipe
	Ip       *fs.Inode

	// guarded by Ip lock
	off uint32
}

// Table is fixed size arena of open files.
type Table struct {
	lock  util.MutexLocked
	fs    *fs.Fs
	files []File
	free  []int
}

func NewTable(f *fs.Fs, capacity int) *Table {
	if capacity == 0 {
		capacity = NFILE
	}
	self := &Table{fs: f, files: make([]File, capacity), free: make([]int, capacity)}
	for i := range self.files {
		self.files[i].table = self
		self.files[i].slot = i
		self.free[i] = capacity - 1 - i
	}
	return self
}

func (self *Table) Fs() *fs.Fs {
	return self.fs
}

// Alloc returns a fresh open file with one reference.
func (self *Table) Alloc() (*File, error) {
	defer self.lock.Locked()()
	if len(self.free) == 0 {
		return nil, ErrTooManyFiles
	}
	i := self.free[len(self.free)-1]
	self.free = self.free[:len(self.free)-1]
	f := &self.files[i]
	f.ref = 1
	return f, nil
}

// OpenInode wraps the (referenced) inode in an open file; the
// reference is owned by the file from now on.
func (self *Table) OpenInode(ip *fs.Inode, readable, writable bool) (*File, error) {
	f, err := self.Alloc()
	if err != nil {
		return nil, err
	}
	f.Type = FD_INODE
	f.Ip = ip
	f.off = 0
	f.Readable = readable
	f.Writable = writable
	return f, nil
}

// IsInodeOpen tells if any open file refers to ip.
func (self *Table) IsInodeOpen(ip *fs.Inode) bool {
	defer self.lock.Locked()()
	for i := range self.files {
		f := &self.files[i]
		if f.ref > 0 && f.Type == FD_INODE && f.Ip == ip {
			return true
		}
	}
	return false
}

// Open returns the number of open files.
func (self *Table) Open() int {
	defer self.lock.Locked()()
	return len(self.files) - len(self.free)
}

func (self *File) Dup() *File {
	defer self.table.lock.Locked()()
	if self.ref < 1 {
		mlog.Panicf("file/file", "filedup of closed file")
	}
	self.ref++
	return self
}

func (self *File) Close() {
	t := self.table
	t.lock.Lock()
	if self.ref < 1 {
		t.lock.Unlock()
		mlog.Panicf("file/file", "fileclose of closed file")
	}
	self.ref--
	if self.ref > 0 {
		t.lock.Unlock()
		return
	}
	typ, pipe, writable, ip := self.Type, self.pipe, self.Writable, self.Ip
	self.Type = FD_NONE
	self.pipe = nil
	self.Ip = nil
	t.free = append(t.free, self.slot)
	t.lock.Unlock()

	switch typ {
	case FD_PIPE:
		pipe.close(writable)
	case FD_INODE:
		t.fs.Transaction(ip.Put)
	}
}

func (self *File) Stat() (fs.Stat, error) {
	if self.Type != FD_INODE {
		return fs.Stat{}, ErrNotInode
	}
	self.Ip.Lock()
	defer self.Ip.Unlock()
	return self.Ip.Stat(), nil
}

func (self *File) Read(dst []byte) (int, error) {
	if !self.Readable {
		return -1, ErrNotReadable
	}
	switch self.Type {
	case FD_PIPE:
		return self.pipe.read(dst)
	case FD_INODE:
		self.Ip.Lock()
		defer self.Ip.Unlock()
		r, err := self.Ip.Read(dst, self.off)
		if r > 0 {
			self.off += uint32(r)
		}
		return r, err
	}
	mlog.Panicf("file/file", "fileread of type %d", self.Type)
	return -1, nil
}

// Write writes src in batches that each fit one log operation. Short
// batch is fatal.
func (self *File) Write(src []byte) (int, error) {
	if !self.Writable {
		return -1, ErrNotWritable
	}
	switch self.Type {
	case FD_PIPE:
		return self.pipe.write(src)
	case FD_INODE:
		f := self.table.fs
		max := f.MaxWriteBatch()
		i := 0
		for i < len(src) {
			n1 := util.IMin(len(src)-i, max)
			var r int
			var err error
			f.Transaction(func() {
				self.Ip.Lock()
				r, err = self.Ip.Write(src[i:i+n1], self.off)
				if r > 0 {
					self.off += uint32(r)
				}
				self.Ip.Unlock()
			})
			if err != nil {
				return i, err
			}
			if r != n1 {
				mlog.Panicf("file/file", "short filewrite (%d of %d)", r, n1)
			}
			i += r
		}
		return i, nil
	}
	mlog.Panicf("file/file", "filewrite of type %d", self.Type)
	return -1, nil
}

// Seek sets the offset of inode file.
func (self *File) Seek(off uint32) error {
	if self.Type != FD_INODE {
		return ErrNotInode
	}
	self.Ip.Lock()
	self.off = off
	self.Ip.Unlock()
	return nil
}
