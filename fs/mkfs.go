/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 14 10:40:30 2019 mstenber
 * Last modified: Mon Feb 18 13:40:51 2019 mstenber
 * Edit time:     39 min
 *
 */

package fs

import (
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/wal"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type MkfsParams struct {
	// Inodes is the number of on-disk inodes (default NEXEMPT)
	Inodes uint32

	// LogSize is the log region size in blocks (default
	// wal.DefaultSize)
	LogSize uint32
}

// Mkfs formats dev with an empty root directory.
func Mkfs(dev storage.Device, params MkfsParams) (*SuperBlock, error) {
	ninodes := params.Inodes
	if ninodes == 0 {
		ninodes = NEXEMPT
	}
	nlog := params.LogSize
	if nlog == 0 {
		nlog = wal.DefaultSize
	}
	if ninodes > NEXEMPT {
		return nil, errors.Wrapf(ErrTooManyInodes, "%d > %d", ninodes, NEXEMPT)
	}
	if nlog < 2 || nlog > wal.MaxSize {
		return nil, errors.Errorf("invalid log size %d", nlog)
	}
	size := dev.NumBlocks()
	sb := &SuperBlock{Magic: SuperMagic, Size: size, NInodes: ninodes,
		NLog: nlog, UUID: uuid.New()}
	sb.InodeStart = superBlockNo + 1
	sb.BmapStart = sb.InodeStart + ninodes/IPB + 1
	dataStart := sb.BmapStart + size/BPB + 1
	if size < dataStart+nlog+1 {
		return nil, errors.Errorf("device too small (%d blocks, need %d)", size, dataStart+nlog+1)
	}
	sb.LogStart = size - nlog
	sb.NBlocks = sb.LogStart - dataStart

	buf := make([]byte, BSIZE)
	write := func(bno uint32) error {
		return errors.Wrapf(dev.WriteBlock(bno, buf), "block %d", bno)
	}
	for bno := uint32(0); bno < dataStart; bno++ {
		if err := write(bno); err != nil {
			return nil, err
		}
	}
	if err := write(sb.LogStart); err != nil {
		return nil, err
	}

	// Root directory lives in the first data block.
	rootBlock := dataStart
	off := 0
	for _, name := range []string{".", ".."} {
		de := Dirent{Inum: ROOTINO, Name: name}
		de.encode(buf[off:])
		off += DirentSize
	}
	if err := write(rootBlock); err != nil {
		return nil, err
	}

	storage.Zero(buf)
	root := Inode{Type: T_DIR, Nlink: 1, Size: 2 * DirentSize}
	root.Addrs[0] = rootBlock
	root.encode(buf[dinodeOffset(ROOTINO):])
	if err := write(sb.IBlock(ROOTINO)); err != nil {
		return nil, err
	}

	// Mark metadata, root directory block and log used.
	for base := uint32(0); base < size; base += BPB {
		storage.Zero(buf)
		for bi := uint32(0); bi < BPB && base+bi < size; bi++ {
			b := base + bi
			if b <= rootBlock || b >= sb.LogStart {
				buf[bi/8] |= 1 << (bi % 8)
			}
		}
		if err := write(sb.BBlock(base)); err != nil {
			return nil, err
		}
	}

	storage.Zero(buf)
	sb.encode(buf)
	if err := write(superBlockNo); err != nil {
		return nil, err
	}
	if err := dev.Sync(); err != nil {
		return nil, err
	}
	mlog.Printf2("fs/mkfs", "mkfs %v: %d blocks, %d data, %d inodes, log %d@%d",
		sb.UUID, size, sb.NBlocks, ninodes, nlog, sb.LogStart)
	return sb, nil
}
