/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 14 09:02:40 2019 mstenber
 * Last modified: Mon Feb 18 13:15:05 2019 mstenber
 * Edit time:     33 min
 *
 */

package fs

import (
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/util"
)

// exemptTable lists, per inode number, the processes that have given
// the right password and may open the file without it. Fixed size:
// NEXEMPT inode numbers with NEXEMPTSLOTS processes each; running out
// of slots is fatal.
//
// Rows are indexed by inode number alone. Only ROOTDEV carries a file
// system, so the number identifies the inode; a second mounted device
// would need rows keyed by (dev, inum).
type exemptTable struct {
	lock util.MutexLocked
	pids [NEXEMPT][NEXEMPTSLOTS]int
}

func (self *exemptTable) row(inum uint32) *[NEXEMPTSLOTS]int {
	if inum >= NEXEMPT {
		mlog.Panicf("fs/exempt", "inode %d beyond exemption table", inum)
	}
	return &self.pids[inum]
}

// add is idempotent.
func (self *exemptTable) add(inum uint32, pid int) {
	defer self.lock.Locked()()
	row := self.row(inum)
	free := -1
	for i, p := range row {
		if p == pid {
			return
		}
		if p == 0 && free < 0 {
			free = i
		}
	}
	if free < 0 {
		mlog.Panicf("fs/exempt", "no free exemption slot for inode %d", inum)
	}
	row[free] = pid
}

func (self *exemptTable) contains(inum uint32, pid int) bool {
	defer self.lock.Locked()()
	for _, p := range self.row(inum) {
		if p == pid {
			return true
		}
	}
	return false
}

func (self *exemptTable) clear(inum uint32) {
	if inum >= NEXEMPT {
		return
	}
	defer self.lock.Locked()()
	self.pids[inum] = [NEXEMPTSLOTS]int{}
}

func (self *exemptTable) purge(pid int) {
	defer self.lock.Locked()()
	for i := range self.pids {
		for j, p := range self.pids[i] {
			if p == pid {
				self.pids[i][j] = 0
			}
		}
	}
}

func (self *exemptTable) fork(oldPid, newPid int) {
	defer self.lock.Locked()()
	for i := range self.pids {
		row := &self.pids[i]
		has := false
		free := -1
		for j, p := range row {
			if p == oldPid {
				has = true
			}
			if p == newPid {
				has = false
				break
			}
			if p == 0 && free < 0 {
				free = j
			}
		}
		if !has {
			continue
		}
		if free < 0 {
			mlog.Panicf("fs/exempt", "no free exemption slot for inode %d", i)
		}
		row[free] = newPid
	}
}

func exemptInum(ip *Inode) uint32 {
	if ip.Dev != ROOTDEV {
		mlog.Panicf("fs/exempt", "exemption on %v outside root device", ip)
	}
	return ip.Inum
}

// Exempt lets pid open ip without password.
func (self *Fs) Exempt(ip *Inode, pid int) {
	mlog.Printf2("fs/exempt", "exempt %v for %d", ip, pid)
	self.exempt.add(exemptInum(ip), pid)
}

// IsExempt tells if pid may open ip without password.
func (self *Fs) IsExempt(ip *Inode, pid int) bool {
	return self.exempt.contains(exemptInum(ip), pid)
}

// ClearExemptions forgets every exemption of ip.
func (self *Fs) ClearExemptions(ip *Inode) {
	self.exempt.clear(exemptInum(ip))
}

// PurgeExemptions forgets every exemption of pid (on exit).
func (self *Fs) PurgeExemptions(pid int) {
	self.exempt.purge(pid)
}

// ForkExemptions gives newPid the exemptions of oldPid.
func (self *Fs) ForkExemptions(oldPid, newPid int) {
	self.exempt.fork(oldPid, newPid)
}
