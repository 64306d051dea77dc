/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 12 08:10:31 2019 mstenber
 * Last modified: Mon Feb 18 10:02:11 2019 mstenber
 * Edit time:     35 min
 *
 */

package fs

import (
	"github.com/fingon/go-xv6fs/storage"
	"github.com/pkg/errors"
)

const (
	BSIZE = storage.BlockSize

	NDIRECT    = 12
	NINDIRECT  = BSIZE / 4
	NDINDIRECT = NINDIRECT * NINDIRECT
	MAXFILE    = NDIRECT + NINDIRECT + NDINDIRECT

	// PASSLEN is the size of the on-disk password field
	PASSLEN = 60

	DIRSIZ     = 14
	DirentSize = 2 + DIRSIZ
	DinodeSize = 128
	IPB        = BSIZE / DinodeSize
	BPB        = BSIZE * 8

	ROOTDEV = 1
	ROOTINO = 1

	// NINODE is the default inode cache capacity
	NINODE = 50

	NDEV    = 10
	MAXPATH = 128

	// NEXEMPT is the number of inode numbers the exemption table
	// covers, and NEXEMPTSLOTS the processes per inode. File systems
	// have at most NEXEMPT inodes.
	NEXEMPT      = 200
	NEXEMPTSLOTS = 64

	MaxSymlinkLoops = 16
)

type InodeType int16

const (
	T_FREE InodeType = iota
	T_DIR
	T_FILE
	T_DEV
	T_SYMLINK
)

func (self InodeType) String() string {
	switch self {
	case T_FREE:
		return "free"
	case T_DIR:
		return "dir"
	case T_FILE:
		return "file"
	case T_DEV:
		return "dev"
	case T_SYMLINK:
		return "symlink"
	}
	return "unknown"
}

func (self InodeType) MarshalText() ([]byte, error) {
	return []byte(self.String()), nil
}

var (
	ErrNotFound      = errors.New("no such file or directory")
	ErrExists        = errors.New("file exists")
	ErrNotDir        = errors.New("not a directory")
	ErrIsDir         = errors.New("is a directory")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrNotFile       = errors.New("not a regular file")
	ErrFileOpen      = errors.New("file is open")
	ErrPassword      = errors.New("password mismatch")
	ErrHasPassword   = errors.New("file already has a password")
	ErrNoPassword    = errors.New("file has no password")
	ErrFileTooLarge  = errors.New("file too large")
	ErrInvalidOffset = errors.New("invalid offset")
	ErrSymlinkLoop   = errors.New("too many levels of symbolic links")
	ErrNameTooLong   = errors.New("file name too long")
	ErrInvalidPath   = errors.New("invalid path")
	ErrNoDevice      = errors.New("no such device")
	ErrBadSuperblock = errors.New("bad superblock")
	ErrTooManyInodes = errors.New("more inodes than the exemption table covers")
)
