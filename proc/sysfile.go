/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 17 10:02:13 2019 mstenber
 * Last modified: Tue Feb 19 09:44:51 2019 mstenber
 * Edit time:     131 min
 *
 */

package proc

import (
	"github.com/fingon/go-xv6fs/file"
	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/pkg/errors"
)

const (
	O_RDONLY = 0x000
	O_WRONLY = 0x001
	O_RDWR   = 0x002
	O_CREATE = 0x200
)

// Every path given to a system call is canonicalized first; the
// directory walk itself does not know about symbolic links.

func (self *Proc) canonical(path string, resolveFinal bool) (string, error) {
	return self.table.Fs().Readlink(self, path, resolveFinal)
}

func (self *Proc) namei(path string, resolveFinal bool) (*fs.Inode, error) {
	c, err := self.canonical(path, resolveFinal)
	if err != nil {
		return nil, err
	}
	return self.table.Fs().NameI(nil, c)
}

func (self *Proc) nameiparent(path string) (*fs.Inode, string, error) {
	c, err := self.canonical(path, false)
	if err != nil {
		return nil, "", err
	}
	return self.table.Fs().NameIParent(nil, c)
}

// create returns locked inode at path, creating it with typ if
// needed. Existing regular file (or device) is fine for T_FILE.
func (self *Proc) create(path string, typ fs.InodeType, major, minor int16) (*fs.Inode, error) {
	dp, name, err := self.nameiparent(path)
	if err != nil {
		return nil, err
	}
	dp.Lock()
	if dp.Type != fs.T_DIR {
		dp.UnlockPut()
		return nil, errors.Wrapf(fs.ErrNotDir, "%q", path)
	}
	if ip, _, err := dp.DirLookup(name); err == nil {
		dp.UnlockPut()
		ip.Lock()
		if typ == fs.T_FILE && (ip.Type == fs.T_FILE || ip.Type == fs.T_DEV) {
			return ip, nil
		}
		ip.UnlockPut()
		return nil, errors.Wrapf(fs.ErrExists, "%q", path)
	}

	ip := self.table.Fs().IAlloc(dp.Dev, typ)
	ip.Lock()
	ip.Major = major
	ip.Minor = minor
	ip.Nlink = 1
	ip.Update()
	if typ == fs.T_DIR {
		// for ..
		dp.Nlink++
		dp.Update()
		if ip.DirLink(".", ip.Inum) != nil || ip.DirLink("..", dp.Inum) != nil {
			mlog.Panicf("proc/sysfile", "create dots of %q", path)
		}
	}
	if err := dp.DirLink(name, ip.Inum); err != nil {
		mlog.Panicf("proc/sysfile", "create %q: %v", path, err)
	}
	dp.UnlockPut()
	return ip, nil
}

// Open returns file descriptor for path. O_CREATE creates missing
// regular file. Password protected files can be opened only by
// exempt processes.
func (self *Proc) Open(path string, omode int) (int, error) {
	f := self.table.Fs()
	readable := omode&O_WRONLY == 0
	writable := omode&O_WRONLY != 0 || omode&O_RDWR != 0
	var of *file.File
	var err error
	f.Transaction(func() {
		var ip *fs.Inode
		if omode&O_CREATE != 0 {
			ip, err = self.namei(path, true)
			if errors.Cause(err) == fs.ErrNotFound {
				ip, err = self.create(path, fs.T_FILE, 0, 0)
				if err != nil {
					return
				}
				ip.Unlock()
			}
		} else {
			ip, err = self.namei(path, true)
		}
		if err != nil {
			return
		}
		ip.Lock()
		if ip.Type == fs.T_DIR && (writable || !readable) {
			err = errors.Wrapf(fs.ErrIsDir, "%q", path)
		} else if !self.table.files.MayOpen(self, ip) {
			err = errors.Wrapf(ErrAccess, "%q is locked", path)
		}
		if err != nil {
			ip.UnlockPut()
			return
		}
		of, err = self.table.files.OpenInode(ip, readable, writable)
		if err != nil {
			ip.UnlockPut()
			return
		}
		ip.Unlock()
	})
	if err != nil {
		return -1, err
	}
	fd, err := self.fdalloc(of)
	if err != nil {
		of.Close()
		return -1, err
	}
	mlog.Printf2("proc/sysfile", "%d: open %q = %d", self.pid, path, fd)
	return fd, nil
}

func (self *Proc) Read(fd int, dst []byte) (int, error) {
	f, err := self.fd2file(fd)
	if err != nil {
		return -1, err
	}
	return f.Read(dst)
}

func (self *Proc) Write(fd int, src []byte) (int, error) {
	f, err := self.fd2file(fd)
	if err != nil {
		return -1, err
	}
	return f.Write(src)
}

func (self *Proc) Close(fd int) error {
	self.lock.Lock()
	if fd < 0 || fd >= NOFILE || self.ofile[fd] == nil {
		self.lock.Unlock()
		return errors.Wrapf(ErrBadFd, "%d", fd)
	}
	f := self.ofile[fd]
	self.ofile[fd] = nil
	self.lock.Unlock()
	f.Close()
	return nil
}

func (self *Proc) Dup(fd int) (int, error) {
	f, err := self.fd2file(fd)
	if err != nil {
		return -1, err
	}
	f.Dup()
	nfd, err := self.fdalloc(f)
	if err != nil {
		f.Close()
		return -1, err
	}
	return nfd, nil
}

func (self *Proc) Fstat(fd int) (fs.Stat, error) {
	f, err := self.fd2file(fd)
	if err != nil {
		return fs.Stat{}, err
	}
	return f.Stat()
}

// Seek sets the offset of file opened from path.
func (self *Proc) Seek(fd int, off uint32) error {
	f, err := self.fd2file(fd)
	if err != nil {
		return err
	}
	return f.Seek(off)
}

func (self *Proc) Pipe() (rfd, wfd int, err error) {
	r, w, err := self.table.files.Pipe()
	if err != nil {
		return -1, -1, err
	}
	rfd, err = self.fdalloc(r)
	if err != nil {
		r.Close()
		w.Close()
		return -1, -1, err
	}
	wfd, err = self.fdalloc(w)
	if err != nil {
		self.Close(rfd)
		w.Close()
		return -1, -1, err
	}
	return rfd, wfd, nil
}

func (self *Proc) mknod(path string, typ fs.InodeType, major, minor int16, content string) (err error) {
	f := self.table.Fs()
	f.Transaction(func() {
		var ip *fs.Inode
		ip, err = self.create(path, typ, major, minor)
		if err != nil {
			return
		}
		defer ip.UnlockPut()
		if content != "" {
			_, err = ip.Write([]byte(content), 0)
		}
	})
	return
}

func (self *Proc) Mkdir(path string) error {
	return self.mknod(path, fs.T_DIR, 0, 0, "")
}

func (self *Proc) Mknod(path string, major, minor int16) error {
	return self.mknod(path, fs.T_DEV, major, minor, "")
}

// Symlink creates path as symbolic link to target. The target need
// not exist.
func (self *Proc) Symlink(target, path string) error {
	if target == "" {
		return errors.Wrapf(fs.ErrInvalidPath, "empty target")
	}
	if len(target) > fs.MAXPATH {
		return errors.Wrapf(fs.ErrNameTooLong, "%q", target)
	}
	return self.mknod(path, fs.T_SYMLINK, 0, 0, target)
}

// Link adds newname for oldname. Symbolic link is linked itself,
// not its target.
func (self *Proc) Link(oldname, newname string) (err error) {
	f := self.table.Fs()
	f.Transaction(func() {
		var ip *fs.Inode
		ip, err = self.namei(oldname, false)
		if err != nil {
			return
		}
		ip.Lock()
		if ip.Type == fs.T_DIR {
			ip.UnlockPut()
			err = errors.Wrapf(fs.ErrIsDir, "%q", oldname)
			return
		}
		ip.Nlink++
		ip.Update()
		ip.Unlock()

		var dp *fs.Inode
		var name string
		dp, name, err = self.nameiparent(newname)
		if err == nil {
			dp.Lock()
			if dp.Dev != ip.Dev {
				err = errors.Errorf("cross-device link %q", newname)
			} else {
				err = dp.DirLink(name, ip.Inum)
			}
			dp.UnlockPut()
		}
		ip.Lock()
		if err != nil {
			ip.Nlink--
			ip.Update()
		}
		ip.UnlockPut()
	})
	return
}

// Unlink removes the name path. Content goes away when the last link
// and the last open file are gone.
func (self *Proc) Unlink(path string) (err error) {
	f := self.table.Fs()
	f.Transaction(func() {
		var dp *fs.Inode
		var name string
		dp, name, err = self.nameiparent(path)
		if err != nil {
			return
		}
		dp.Lock()
		defer dp.UnlockPut()
		if name == "." || name == ".." {
			err = errors.Wrapf(fs.ErrInvalidPath, "cannot unlink %q", path)
			return
		}
		var ip *fs.Inode
		var off uint32
		ip, off, err = dp.DirLookup(name)
		if err != nil {
			return
		}
		ip.Lock()
		defer ip.UnlockPut()
		if ip.Nlink < 1 {
			mlog.Panicf("proc/sysfile", "unlink: %v has no links", ip)
		}
		if ip.Type == fs.T_DIR && !ip.DirIsEmpty() {
			err = errors.Wrapf(fs.ErrNotEmpty, "%q", path)
			return
		}
		dp.DirUnlink(off)
		if ip.Type == fs.T_DIR {
			dp.Nlink--
			dp.Update()
		}
		ip.Nlink--
		ip.Update()
	})
	return
}

func (self *Proc) Chdir(path string) (err error) {
	f := self.table.Fs()
	f.Transaction(func() {
		var ip *fs.Inode
		ip, err = self.namei(path, true)
		if err != nil {
			return
		}
		ip.Lock()
		if ip.Type != fs.T_DIR {
			ip.UnlockPut()
			err = errors.Wrapf(fs.ErrNotDir, "%q", path)
			return
		}
		ip.Unlock()
		self.lock.Lock()
		old := self.cwd
		self.cwd = ip
		self.lock.Unlock()
		old.Put()
	})
	return
}

func (self *Proc) Getcwd() (cwd string, err error) {
	f := self.table.Fs()
	f.Transaction(func() {
		cwd, err = f.Getcwd(self)
	})
	return
}

// Readlink returns the canonical form of path.
func (self *Proc) Readlink(path string, resolveFinal bool) (result string, err error) {
	f := self.table.Fs()
	f.Transaction(func() {
		result, err = self.canonical(path, resolveFinal)
	})
	return
}

func (self *Proc) stat(path string, resolveFinal bool) (st fs.Stat, err error) {
	f := self.table.Fs()
	f.Transaction(func() {
		var ip *fs.Inode
		ip, err = self.namei(path, resolveFinal)
		if err != nil {
			return
		}
		ip.Lock()
		st = ip.Stat()
		ip.UnlockPut()
	})
	return
}

// Stat describes what path finally refers to.
func (self *Proc) Stat(path string) (fs.Stat, error) {
	return self.stat(path, true)
}

// Lstat describes path itself, even if it is symbolic link.
func (self *Proc) Lstat(path string) (fs.Stat, error) {
	return self.stat(path, false)
}

// ReadDir lists the entries of directory path.
func (self *Proc) ReadDir(path string) (entries []fs.Dirent, err error) {
	f := self.table.Fs()
	f.Transaction(func() {
		var ip *fs.Inode
		ip, err = self.namei(path, true)
		if err != nil {
			return
		}
		ip.Lock()
		entries, err = ip.DirEntries()
		ip.UnlockPut()
	})
	return
}

// Fprot puts password lock on the file at path.
func (self *Proc) Fprot(path, password string) error {
	return self.table.files.Protect(self, path, password)
}

// Funprot removes password lock of the file at path.
func (self *Proc) Funprot(path, password string) error {
	return self.table.files.Unprotect(self, path, password)
}

// Funlock exempts this process (and children forked later) from the
// password lock of the file at path.
func (self *Proc) Funlock(path, password string) error {
	return self.table.files.Unlock(self, path, password)
}

// Target returns the content of symbolic link path.
func (self *Proc) Target(path string) (target string, err error) {
	f := self.table.Fs()
	f.Transaction(func() {
		var ip *fs.Inode
		ip, err = self.namei(path, false)
		if err != nil {
			return
		}
		ip.Lock()
		target, err = ip.ReadTarget()
		ip.UnlockPut()
	})
	return
}
