/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 17 09:20:41 2019 mstenber
 * Last modified: Mon Feb 18 17:10:05 2019 mstenber
 * Edit time:     55 min
 *
 */

// proc is the process side of the file system: process table with
// current directories, per-process file descriptors, and the file
// system calls on top of them.
package proc

import (
	"github.com/fingon/go-xv6fs/file"
	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/util"
	"github.com/pkg/errors"
)

const (
	NPROC  = 64
	NOFILE = 16
)

var (
	ErrBadFd        = errors.New("bad file descriptor")
	ErrTooManyProcs = errors.New("process table full")
	ErrTooManyOpen  = errors.New("too many open files")
	ErrAccess       = errors.New("permission denied")
	ErrExited       = errors.New("process has exited")
)

type Table struct {
	lock    util.MutexLocked
	files   *file.Table
	procs   map[int]*Proc
	nextPid int
}

func NewTable(files *file.Table) *Table {
	return &Table{files: files, procs: make(map[int]*Proc), nextPid: 1}
}

func (self *Table) Fs() *fs.Fs {
	return self.files.Fs()
}

func (self *Table) Files() *file.Table {
	return self.files
}

// Count returns the number of live processes.
func (self *Table) Count() int {
	defer self.lock.Locked()()
	return len(self.procs)
}

func (self *Table) alloc() (*Proc, error) {
	defer self.lock.Locked()()
	if len(self.procs) >= NPROC {
		return nil, ErrTooManyProcs
	}
	p := &Proc{table: self, pid: self.nextPid}
	self.nextPid++
	self.procs[p.pid] = p
	return p, nil
}

func (self *Table) forget(pid int) {
	defer self.lock.Locked()()
	delete(self.procs, pid)
}

// Spawn creates a process with root as the current directory and no
// open files.
func (self *Table) Spawn() (*Proc, error) {
	p, err := self.alloc()
	if err != nil {
		return nil, err
	}
	p.cwd = self.Fs().IGet(fs.ROOTDEV, fs.ROOTINO)
	mlog.Printf2("proc/proc", "spawned %d", p.pid)
	return p, nil
}

type Proc struct {
	table *Table
	pid   int

	// guards the rest
	lock  util.MutexLocked
	cwd   *fs.Inode
	ofile [NOFILE]*file.File
}

var _ fs.Proc = &Proc{}

func (self *Proc) Pid() int {
	return self.pid
}

// Cwd returns new reference to the current directory. Chdir may
// release the old one as soon as the lock is dropped.
func (self *Proc) Cwd() *fs.Inode {
	defer self.lock.Locked()()
	if self.cwd == nil {
		return nil
	}
	return self.cwd.Dup()
}

// Fork creates a child sharing the open files and the current
// directory of self. The child inherits the password exemptions too.
func (self *Proc) Fork() (*Proc, error) {
	np, err := self.table.alloc()
	if err != nil {
		return nil, err
	}
	defer self.lock.Locked()()
	if self.cwd == nil {
		self.table.forget(np.pid)
		return nil, ErrExited
	}
	for i, f := range self.ofile {
		if f != nil {
			np.ofile[i] = f.Dup()
		}
	}
	np.cwd = self.cwd.Dup()
	self.table.Fs().ForkExemptions(self.pid, np.pid)
	mlog.Printf2("proc/proc", "forked %d -> %d", self.pid, np.pid)
	return np, nil
}

// Exit closes everything the process has open and forgets its
// exemptions.
func (self *Proc) Exit() {
	self.lock.Lock()
	ofile := self.ofile
	self.ofile = [NOFILE]*file.File{}
	cwd := self.cwd
	self.cwd = nil
	self.lock.Unlock()
	if cwd == nil {
		mlog.Panicf("proc/proc", "%d exiting twice", self.pid)
	}

	for _, f := range ofile {
		if f != nil {
			f.Close()
		}
	}
	f := self.table.Fs()
	f.Transaction(cwd.Put)
	f.PurgeExemptions(self.pid)

	self.table.forget(self.pid)
	mlog.Printf2("proc/proc", "exited %d", self.pid)
}

// fdalloc gives f the lowest free descriptor.
func (self *Proc) fdalloc(f *file.File) (int, error) {
	defer self.lock.Locked()()
	for fd, of := range self.ofile {
		if of == nil {
			self.ofile[fd] = f
			return fd, nil
		}
	}
	return -1, ErrTooManyOpen
}

func (self *Proc) fd2file(fd int) (*file.File, error) {
	defer self.lock.Locked()()
	if fd < 0 || fd >= NOFILE || self.ofile[fd] == nil {
		return nil, errors.Wrapf(ErrBadFd, "%d", fd)
	}
	return self.ofile[fd], nil
}
