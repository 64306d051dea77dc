/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Feb 16 10:05:12 2019 mstenber
 * Last modified: Sat Feb 16 11:40:30 2019 mstenber
 * Edit time:     31 min
 *
 */

package file

import (
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/util"
)

const PIPESIZE = 512

// Pipe is bounded byte buffer between a read and a write end.
type Pipe struct {
	lock      util.SleepLock
	data      [PIPESIZE]byte
	nread     uint
	nwrite    uint
	readopen  bool
	writeopen bool
}

// Pipe allocates the two ends of a new pipe.
func (self *Table) Pipe() (r, w *File, err error) {
	r, err = self.Alloc()
	if err != nil {
		return
	}
	w, err = self.Alloc()
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	p := &Pipe{readopen: true, writeopen: true}
	r.Type = FD_PIPE
	r.pipe = p
	r.Readable = true
	r.Writable = false
	w.Type = FD_PIPE
	w.pipe = p
	w.Readable = false
	w.Writable = true
	return
}

func (self *Pipe) close(writable bool) {
	defer self.lock.Locked()()
	if writable {
		self.writeopen = false
	} else {
		self.readopen = false
	}
	self.lock.Wakeup()
}

// write blocks until everything is written or the read end closes.
func (self *Pipe) write(src []byte) (int, error) {
	defer self.lock.Locked()()
	for i, c := range src {
		for self.nwrite == self.nread+PIPESIZE {
			if !self.readopen {
				mlog.Printf2("file/pipe", "broken pipe after %d", i)
				return i, ErrBrokenPipe
			}
			self.lock.Wakeup()
			self.lock.Sleep()
		}
		if !self.readopen {
			return i, ErrBrokenPipe
		}
		self.data[self.nwrite%PIPESIZE] = c
		self.nwrite++
	}
	self.lock.Wakeup()
	return len(src), nil
}

// read blocks until there is something to read or the write end
// closes; the latter reads as end of file.
func (self *Pipe) read(dst []byte) (int, error) {
	defer self.lock.Locked()()
	for self.nread == self.nwrite && self.writeopen {
		self.lock.Sleep()
	}
	i := 0
	for ; i < len(dst) && self.nread != self.nwrite; i++ {
		dst[i] = self.data[self.nread%PIPESIZE]
		self.nread++
	}
	self.lock.Wakeup()
	return i, nil
}
