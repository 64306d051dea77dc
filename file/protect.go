/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Feb 16 13:11:50 2019 mstenber
 * Last modified: Mon Feb 18 15:02:33 2019 mstenber
 * Edit time:     48 min
 *
 */

package file

import (
	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/pkg/errors"
)

// Password locks are changed only via the canonical path of the
// file: symbolic links are resolved on the way, but not the final
// element, so a link is never locked in place of its target.

// withCanonical runs cb with the locked inode of canonicalized path
// within one operation.
func (self *Table) withCanonical(p fs.Proc, path string, cb func(ip *fs.Inode) error) (err error) {
	f := self.fs
	f.Transaction(func() {
		var canonical string
		canonical, err = f.Readlink(p, path, false)
		if err != nil {
			return
		}
		var ip *fs.Inode
		ip, err = f.NameI(p, canonical)
		if err != nil {
			return
		}
		ip.Lock()
		err = cb(ip)
		ip.UnlockPut()
	})
	return
}

// Protect puts password lock on the regular file at path. The file
// must not have password already, and must not be open.
func (self *Table) Protect(p fs.Proc, path, password string) error {
	if password == "" {
		return errors.Wrapf(fs.ErrPassword, "empty password")
	}
	return self.withCanonical(p, path, func(ip *fs.Inode) error {
		if ip.Type != fs.T_FILE {
			return errors.Wrapf(fs.ErrNotFile, "%q is %v", path, ip.Type)
		}
		if ip.HasPassword() {
			return errors.Wrapf(fs.ErrHasPassword, "%q", path)
		}
		if self.IsInodeOpen(ip) {
			return errors.Wrapf(fs.ErrFileOpen, "%q", path)
		}
		if err := ip.SetPassword(password); err != nil {
			return err
		}
		self.fs.ClearExemptions(ip)
		mlog.Printf2("file/protect", "protected %v", ip)
		return nil
	})
}

// Unprotect removes the password lock of path. File without password
// is left as is.
func (self *Table) Unprotect(p fs.Proc, path, password string) error {
	return self.withCanonical(p, path, func(ip *fs.Inode) error {
		if !ip.HasPassword() {
			return nil
		}
		if !ip.CheckPassword(password) {
			return errors.Wrapf(fs.ErrPassword, "%q", path)
		}
		ip.ClearPassword()
		self.fs.ClearExemptions(ip)
		mlog.Printf2("file/protect", "unprotected %v", ip)
		return nil
	})
}

// Unlock lets the process open the password protected file at path
// without password from now on (and its children forked later).
func (self *Table) Unlock(p fs.Proc, path, password string) error {
	return self.withCanonical(p, path, func(ip *fs.Inode) error {
		if !ip.HasPassword() {
			return errors.Wrapf(fs.ErrNoPassword, "%q", path)
		}
		if !ip.CheckPassword(password) {
			return errors.Wrapf(fs.ErrPassword, "%q", path)
		}
		self.fs.Exempt(ip, p.Pid())
		return nil
	})
}

// MayOpen tells if p may open the locked inode without password.
func (self *Table) MayOpen(p fs.Proc, ip *fs.Inode) bool {
	return !ip.HasPassword() || self.fs.IsExempt(ip, p.Pid())
}
