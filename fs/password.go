/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 14 08:20:11 2019 mstenber
 * Last modified: Mon Feb 18 13:02:27 2019 mstenber
 * Edit time:     26 min
 *
 */

package fs

import (
	"github.com/fingon/go-xv6fs/util"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// The password field holds bcrypt hash of the password (a bcrypt
// hash is exactly PASSLEN bytes); all zeros means no password.
// Passwords are significant up to PASSLEN-1 bytes.

func truncatePassword(password string) []byte {
	if len(password) > PASSLEN-1 {
		password = password[:PASSLEN-1]
	}
	return []byte(password)
}

// HasPassword tells if the locked inode is password protected.
func (self *Inode) HasPassword() bool {
	return self.Password[0] != 0
}

// CheckPassword tells if password matches the one of the locked
// inode. No password matches nothing.
func (self *Inode) CheckPassword(password string) bool {
	if !self.HasPassword() {
		return false
	}
	hash := []byte(util.CString(self.Password[:]))
	return bcrypt.CompareHashAndPassword(hash, truncatePassword(password)) == nil
}

// SetPassword protects the locked inode. Must be called within a
// transaction.
func (self *Inode) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword(truncatePassword(password), self.fs.passwordCost)
	if err != nil {
		return errors.Wrap(err, "bcrypt")
	}
	if len(hash) > PASSLEN {
		return errors.Errorf("bcrypt hash too long (%d)", len(hash))
	}
	util.PutCString(self.Password[:], string(hash))
	self.Update()
	return nil
}

// ClearPassword removes the protection of the locked inode. Must be
// called within a transaction.
func (self *Inode) ClearPassword() {
	self.Password = [PASSLEN]byte{}
	self.Update()
}
