/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 12 08:12:55 2019 mstenber
 * Last modified: Mon Feb 18 11:02:49 2019 mstenber
 * Edit time:     52 min
 *
 */

// fs is the file system engine: block allocation, inodes and their
// cache, file content, directories, path names (including symbolic
// links) and the password lock state of files.
//
// Everything that modifies the disk must happen between Begin and
// Commit; the log makes each such operation atomic.
package fs

import (
	"github.com/fingon/go-xv6fs/bcache"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/util"
	"github.com/fingon/go-xv6fs/wal"
	"golang.org/x/crypto/bcrypt"
)

type Options struct {
	// Inodes is the inode cache capacity (default NINODE)
	Inodes int

	// Buffers is the buffer cache size (default bcache.DefaultBuffers)
	Buffers int

	// PasswordCost is the bcrypt cost of stored passwords
	// (default bcrypt.DefaultCost)
	PasswordCost int
}

type Fs struct {
	cache  *bcache.Cache
	log    *wal.Log
	icache inodeCache
	exempt exemptTable

	devlock util.MutexLocked
	devsw   [NDEV]Device

	passwordCost int
}

// New mounts the root device already attached to cache as ROOTDEV.
func New(cache *bcache.Cache, options Options) (*Fs, error) {
	self := &Fs{cache: cache}
	sb := self.ReadSuper(ROOTDEV)
	if err := sb.validate(); err != nil {
		return nil, err
	}
	inodes := options.Inodes
	if inodes == 0 {
		inodes = NINODE
	}
	self.icache.init(self, inodes)
	self.passwordCost = options.PasswordCost
	if self.passwordCost == 0 {
		self.passwordCost = bcrypt.DefaultCost
	}
	self.log = wal.Open(cache, ROOTDEV, sb.LogStart, sb.NLog)
	mlog.Printf2("fs/fs", "mounted %v: %d blocks, %d inodes", sb.UUID, sb.Size, sb.NInodes)
	return self, nil
}

// Mount mounts device as the root device.
func Mount(dev storage.Device, options Options) (*Fs, error) {
	cache := bcache.New(options.Buffers)
	cache.Attach(ROOTDEV, dev)
	return New(cache, options)
}

// Begin starts a file system operation.
func (self *Fs) Begin() {
	self.log.Begin()
}

// Commit ends a file system operation.
func (self *Fs) Commit() {
	self.log.Commit()
}

// Transaction runs cb as one operation. A panicking cb leaves the
// operation uncommitted.
func (self *Fs) Transaction(cb func()) {
	self.log.Begin()
	cb()
	self.log.Commit()
}

// Sync flushes the root device.
func (self *Fs) Sync() error {
	return self.cache.Sync(ROOTDEV)
}

// Close syncs and closes the root device. Everything must have been
// released.
func (self *Fs) Close() error {
	if err := self.Sync(); err != nil {
		return err
	}
	return self.cache.Device(ROOTDEV).Close()
}
