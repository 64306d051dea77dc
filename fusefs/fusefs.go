/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Wed Feb 20 13:01:22 2019 mstenber
 * Last modified: Wed Feb 20 15:44:10 2019 mstenber
 * Edit time:     71 min
 *
 */

// fusefs is read-only FUSE view of the file system. Every request is
// served through the system calls of one process, so password locks
// apply as they would to that process.
package fusefs

import (
	"fmt"
	"syscall"

	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/proc"
	"github.com/hanwen/go-fuse/fuse"
	"github.com/hanwen/go-fuse/fuse/nodefs"
	"github.com/hanwen/go-fuse/fuse/pathfs"
	"github.com/pkg/errors"
)

type FileSystem struct {
	pathfs.FileSystem
	proc *proc.Proc
}

var _ pathfs.FileSystem = &FileSystem{}

func New(p *proc.Proc) *FileSystem {
	return &FileSystem{FileSystem: pathfs.NewDefaultFileSystem(), proc: p}
}

func (self *FileSystem) String() string {
	return fmt.Sprintf("xv6fs[%d]", self.proc.Pid())
}

// errStatus maps errors of the system calls to errno.
func errStatus(err error) fuse.Status {
	switch errors.Cause(err) {
	case nil:
		return fuse.OK
	case fs.ErrNotFound:
		return fuse.ENOENT
	case fs.ErrNotDir:
		return fuse.Status(syscall.ENOTDIR)
	case fs.ErrIsDir:
		return fuse.Status(syscall.EISDIR)
	case fs.ErrSymlinkLoop:
		return fuse.Status(syscall.ELOOP)
	case fs.ErrNameTooLong:
		return fuse.Status(syscall.ENAMETOOLONG)
	case fs.ErrInvalidPath:
		return fuse.EINVAL
	case proc.ErrAccess:
		return fuse.EPERM
	}
	mlog.Printf2("fusefs/fusefs", "unexpected error %v", err)
	return fuse.EIO
}

// pathfs names are relative to the root without leading slash.
func abs(name string) string {
	return "/" + name
}

func modeOf(typ fs.InodeType) uint32 {
	switch typ {
	case fs.T_DIR:
		return syscall.S_IFDIR | 0755
	case fs.T_SYMLINK:
		return syscall.S_IFLNK | 0777
	case fs.T_DEV:
		return syscall.S_IFCHR | 0666
	}
	return syscall.S_IFREG | 0644
}

func (self *FileSystem) GetAttr(name string, context *fuse.Context) (*fuse.Attr, fuse.Status) {
	st, err := self.proc.Lstat(abs(name))
	if err != nil {
		return nil, errStatus(err)
	}
	return &fuse.Attr{
		Ino:    uint64(st.Inum),
		Size:   uint64(st.Size),
		Blocks: (uint64(st.Size) + fs.BSIZE - 1) / fs.BSIZE,
		Mode:   modeOf(st.Type),
		Nlink:  uint32(st.Nlink),
	}, fuse.OK
}

func (self *FileSystem) OpenDir(name string, context *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	entries, err := self.proc.ReadDir(abs(name))
	if err != nil {
		return nil, errStatus(err)
	}
	ret := make([]fuse.DirEntry, 0, len(entries))
	for _, de := range entries {
		if de.Name == "." || de.Name == ".." {
			continue
		}
		st, err := self.proc.Lstat(abs(name) + "/" + de.Name)
		if err != nil {
			return nil, errStatus(err)
		}
		ret = append(ret, fuse.DirEntry{Name: de.Name, Mode: modeOf(st.Type)})
	}
	return ret, fuse.OK
}

// Open reads the whole file at once; files are at most a few
// megabytes.
func (self *FileSystem) Open(name string, flags uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	if flags&fuse.O_ANYWRITE != 0 {
		return nil, fuse.Status(syscall.EROFS)
	}
	p := self.proc
	fd, err := p.Open(abs(name), proc.O_RDONLY)
	if err != nil {
		return nil, errStatus(err)
	}
	defer p.Close(fd)
	st, err := p.Fstat(fd)
	if err != nil {
		return nil, errStatus(err)
	}
	if st.Type == fs.T_DIR {
		return nil, fuse.Status(syscall.EISDIR)
	}
	data := make([]byte, st.Size)
	got := 0
	for got < len(data) {
		n, err := p.Read(fd, data[got:])
		if err != nil {
			return nil, errStatus(err)
		}
		if n == 0 {
			break
		}
		got += n
	}
	return nodefs.NewReadOnlyFile(nodefs.NewDataFile(data[:got])), fuse.OK
}

func (self *FileSystem) Readlink(name string, context *fuse.Context) (string, fuse.Status) {
	target, err := self.proc.Target(abs(name))
	if err != nil {
		return "", errStatus(err)
	}
	return target, fuse.OK
}

// Mount serves the file system at mountpoint until unmounted.
func Mount(mountpoint string, p *proc.Proc) (*fuse.Server, error) {
	nfs := pathfs.NewPathNodeFs(New(p), nil)
	server, _, err := nodefs.MountRoot(mountpoint, nfs.Root(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "mount %s", mountpoint)
	}
	mlog.Printf2("fusefs/fusefs", "mounted at %s", mountpoint)
	return server, nil
}
