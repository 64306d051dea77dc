/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 12 13:20:31 2019 mstenber
 * Last modified: Sun Feb 17 12:01:30 2019 mstenber
 * Edit time:     37 min
 *
 */

package fs

import (
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/util"
	"github.com/pkg/errors"
)

// Read copies content at off into dst and returns number of bytes
// read; reading at or past the end returns 0. The inode must be
// locked.
func (self *Inode) Read(dst []byte, off uint32) (int, error) {
	self.assertLocked("readi")
	if self.Type == T_DEV {
		dev, err := self.fs.device(self.Major)
		if err != nil {
			return -1, err
		}
		return dev.Read(self, dst)
	}
	n := uint32(len(dst))
	if off+n < off {
		return -1, errors.Wrapf(ErrInvalidOffset, "%d+%d", off, n)
	}
	if off >= self.Size {
		return 0, nil
	}
	if off+n > self.Size {
		n = self.Size - off
	}
	fs := self.fs
	for tot := uint32(0); tot < n; {
		b := fs.cache.Fetch(self.Dev, self.bmap(off/BSIZE))
		m := uint32(util.IMin(int(n-tot), int(BSIZE-off%BSIZE)))
		copy(dst[tot:tot+m], b.Data[off%BSIZE:])
		fs.cache.Release(b)
		tot += m
		off += m
	}
	return int(n), nil
}

// Write stores src at off, growing the file as needed. off may not be
// past the current end. The inode must be locked and the call must be
// within a transaction large enough for the blocks touched (see
// MaxWriteBatch).
func (self *Inode) Write(src []byte, off uint32) (int, error) {
	self.assertLocked("writei")
	if self.Type == T_DEV {
		dev, err := self.fs.device(self.Major)
		if err != nil {
			return -1, err
		}
		return dev.Write(self, src)
	}
	n := uint32(len(src))
	if off > self.Size || off+n < off {
		return -1, errors.Wrapf(ErrInvalidOffset, "%d+%d of %d", off, n, self.Size)
	}
	if uint64(off)+uint64(n) > MAXFILE*BSIZE {
		return -1, errors.Wrapf(ErrFileTooLarge, "%d+%d", off, n)
	}
	fs := self.fs
	for tot := uint32(0); tot < n; {
		b := fs.cache.Fetch(self.Dev, self.bmap(off/BSIZE))
		m := uint32(util.IMin(int(n-tot), int(BSIZE-off%BSIZE)))
		copy(b.Data[off%BSIZE:], src[tot:tot+m])
		fs.log.Write(b)
		fs.cache.Release(b)
		tot += m
		off += m
	}
	if n > 0 {
		if off > self.Size {
			self.Size = off
		}
		// bmap may have changed the address map too
		self.Update()
	}
	return int(n), nil
}

// MaxWriteBatch is the largest write that fits one operation of the
// log: inode, up to three index blocks, two blocks of slop for
// unaligned writes, and data blocks each possibly needing a bitmap
// block.
func (self *Fs) MaxWriteBatch() int {
	blocks := (self.log.OpCapacity() - 1 - 3 - 2) / 2
	if blocks < 1 {
		mlog.Panicf("fs/rw", "log too small for writes (%d blocks/op)", self.log.OpCapacity())
	}
	return blocks * BSIZE
}
