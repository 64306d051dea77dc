/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Wed Feb 13 08:40:20 2019 mstenber
 * Last modified: Sun Feb 17 14:22:31 2019 mstenber
 * Edit time:     44 min
 *
 */

package fs

import (
	"encoding/binary"

	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/util"
	"github.com/pkg/errors"
)

// Dirent is a directory entry; Inum 0 marks a free slot.
type Dirent struct {
	Inum uint16
	Name string
}

func (self *Dirent) decode(b []byte) {
	self.Inum = binary.LittleEndian.Uint16(b)
	self.Name = util.CString(b[2:DirentSize])
}

func (self *Dirent) encode(b []byte) {
	binary.LittleEndian.PutUint16(b, self.Inum)
	util.PutCString(b[2:DirentSize], self.Name)
}

// nameEqual compares names the way directories store them: only the
// first DIRSIZ bytes count.
func nameEqual(a, b string) bool {
	if len(a) > DIRSIZ {
		a = a[:DIRSIZ]
	}
	if len(b) > DIRSIZ {
		b = b[:DIRSIZ]
	}
	return a == b
}

func (self *Inode) readDirent(off uint32) (de Dirent) {
	var buf [DirentSize]byte
	n, err := self.Read(buf[:], off)
	if err != nil || n != DirentSize {
		mlog.Panicf("fs/dir", "%v: short directory read at %d (%d, %v)", self, off, n, err)
	}
	de.decode(buf[:])
	return
}

func (self *Inode) writeDirent(de Dirent, off uint32) {
	var buf [DirentSize]byte
	de.encode(buf[:])
	n, err := self.Write(buf[:], off)
	if err != nil || n != DirentSize {
		mlog.Panicf("fs/dir", "%v: short directory write at %d (%d, %v)", self, off, n, err)
	}
}

// DirLookup looks for name in the locked directory. It returns the
// (referenced, unlocked) inode and byte offset of the entry.
func (self *Inode) DirLookup(name string) (*Inode, uint32, error) {
	self.assertLocked("dirlookup")
	if self.Type != T_DIR {
		return nil, 0, errors.Wrapf(ErrNotFound, "%v is not a directory", self)
	}
	for off := uint32(0); off < self.Size; off += DirentSize {
		de := self.readDirent(off)
		if de.Inum == 0 {
			continue
		}
		if nameEqual(name, de.Name) {
			return self.fs.IGet(self.Dev, uint32(de.Inum)), off, nil
		}
	}
	return nil, 0, errors.Wrapf(ErrNotFound, "%q", name)
}

// DirLink adds entry name -> inum to the locked directory, reusing
// the first free slot. Must be called within a transaction.
func (self *Inode) DirLink(name string, inum uint32) error {
	if ip, _, err := self.DirLookup(name); err == nil {
		ip.Put()
		return errors.Wrapf(ErrExists, "%q", name)
	} else if self.Type != T_DIR {
		return errors.Wrapf(ErrNotDir, "%v", self)
	}
	off := uint32(0)
	for ; off < self.Size; off += DirentSize {
		if self.readDirent(off).Inum == 0 {
			break
		}
	}
	self.writeDirent(Dirent{Inum: uint16(inum), Name: name}, off)
	return nil
}

// DirUnlink clears the entry at off of the locked directory. Must be
// called within a transaction.
func (self *Inode) DirUnlink(off uint32) {
	if off%DirentSize != 0 || off >= self.Size {
		mlog.Panicf("fs/dir", "%v: bad entry offset %d", self, off)
	}
	self.writeDirent(Dirent{}, off)
}

// DirEntries lists the used entries of the locked directory.
func (self *Inode) DirEntries() ([]Dirent, error) {
	self.assertLocked("direntries")
	if self.Type != T_DIR {
		return nil, errors.Wrapf(ErrNotDir, "%v", self)
	}
	var ret []Dirent
	for off := uint32(0); off < self.Size; off += DirentSize {
		de := self.readDirent(off)
		if de.Inum != 0 {
			ret = append(ret, de)
		}
	}
	return ret, nil
}

// DirIsEmpty checks that the locked directory has nothing but . and ..
func (self *Inode) DirIsEmpty() bool {
	for off := uint32(2 * DirentSize); off < self.Size; off += DirentSize {
		if self.readDirent(off).Inum != 0 {
			return false
		}
	}
	return true
}
