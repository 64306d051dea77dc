/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Mon Feb 11 10:12:09 2019 mstenber
 * Last modified: Sat Feb 16 13:20:55 2019 mstenber
 * Edit time:     83 min
 *
 */

// wal is the write-ahead log that makes multi-block updates atomic.
//
// The log lives in a fixed region of the device: a header block
// followed by the log data blocks. Operations bracket their writes
// with Begin and Commit; concurrent operations are grouped into one
// transaction, and Begin waits if the operations already admitted
// could fill the log (each is assumed to write at most OpCapacity
// blocks). Blocks registered with Write stay dirty in the buffer cache
// until the last outstanding operation commits, which
//
// 1. copies them to the log data blocks,
// 2. writes the header with their home block numbers (commit point),
// 3. copies them to their home locations, and
// 4. clears the header.
//
// Open replays a header left behind by a crash between 2 and 4.
package wal

import (
	"encoding/binary"

	"github.com/fingon/go-xv6fs/bcache"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/util"
)

const DefaultSize = 49

// DefaultOpBlocks is the per-operation block budget.
const DefaultOpBlocks = 16

// MaxSize is the largest log the header block can describe.
const MaxSize = (storage.BlockSize-4)/4 + 1

type Log struct {
	lock  util.SleepLock
	cache *bcache.Cache
	dev   uint32
	start uint32
	size  uint32

	opBlocks    int
	outstanding int
	committing  bool
	blocks      []uint32
}

// Open attaches to log region [start, start+size) of dev, recovering
// committed transaction if there is one.
func Open(cache *bcache.Cache, dev, start, size uint32) *Log {
	if size < 2 || size > MaxSize {
		mlog.Panicf("wal", "invalid log size %d", size)
	}
	self := &Log{cache: cache, dev: dev, start: start, size: size}
	self.opBlocks = util.IMin(DefaultOpBlocks, self.Capacity())
	self.recover()
	return self
}

// Capacity is the number of distinct blocks one transaction may
// register.
func (self *Log) Capacity() int {
	return int(self.size) - 1
}

// OpCapacity is the number of distinct blocks one operation may
// register.
func (self *Log) OpCapacity() int {
	return self.opBlocks
}

func (self *Log) readHead() []uint32 {
	b := self.cache.Fetch(self.dev, self.start)
	defer self.cache.Release(b)
	n := binary.LittleEndian.Uint32(b.Data[:])
	if int(n) > self.Capacity() {
		mlog.Panicf("wal", "corrupt log header (%d blocks)", n)
	}
	blocks := make([]uint32, n)
	for i := range blocks {
		blocks[i] = binary.LittleEndian.Uint32(b.Data[4+4*i:])
	}
	return blocks
}

// writeHead is the commit point when blocks is non-empty.
func (self *Log) writeHead(blocks []uint32) {
	b := self.cache.Fetch(self.dev, self.start)
	defer self.cache.Release(b)
	storage.Zero(b.Data[:])
	binary.LittleEndian.PutUint32(b.Data[:], uint32(len(blocks)))
	for i, bno := range blocks {
		binary.LittleEndian.PutUint32(b.Data[4+4*i:], bno)
	}
	self.cache.Flush(b)
}

func (self *Log) copyBlock(from, to uint32) {
	fb := self.cache.Fetch(self.dev, from)
	tb := self.cache.Fetch(self.dev, to)
	tb.Data = fb.Data
	self.cache.Flush(tb)
	self.cache.Release(tb)
	self.cache.Release(fb)
}

func (self *Log) writeLog(blocks []uint32) {
	for i, bno := range blocks {
		self.copyBlock(bno, self.start+1+uint32(i))
	}
}

func (self *Log) install(blocks []uint32) {
	for i, bno := range blocks {
		self.copyBlock(self.start+1+uint32(i), bno)
	}
}

func (self *Log) recover() {
	blocks := self.readHead()
	if len(blocks) == 0 {
		return
	}
	mlog.Printf2("wal/wal", "recovering %d blocks", len(blocks))
	self.install(blocks)
	self.writeHead(nil)
}

// Begin starts an operation.
func (self *Log) Begin() {
	defer self.lock.Locked()()
	for self.committing || len(self.blocks)+(self.outstanding+1)*self.opBlocks > self.Capacity() {
		self.lock.Sleep()
	}
	self.outstanding++
}

// Write registers the (owned, modified) buffer as part of the current
// transaction. The caller still releases it.
func (self *Log) Write(b *bcache.Buf) {
	defer self.lock.Locked()()
	if self.outstanding < 1 {
		mlog.Panicf("wal", "write outside of transaction")
	}
	if b.Dev != self.dev {
		mlog.Panicf("wal", "write to device %d, log is on %d", b.Dev, self.dev)
	}
	found := false
	for _, bno := range self.blocks {
		if bno == b.Blockno {
			found = true
			break
		}
	}
	if !found {
		if len(self.blocks) >= self.Capacity() {
			mlog.Panicf("wal", "too big a transaction")
		}
		self.blocks = append(self.blocks, b.Blockno)
	}
	self.cache.MarkDirty(b)
}

// Commit ends an operation. The last outstanding operation commits
// the transaction before returning.
func (self *Log) Commit() {
	self.lock.Lock()
	if self.outstanding < 1 || self.committing {
		self.lock.Unlock()
		mlog.Panicf("wal", "commit outside of transaction")
	}
	self.outstanding--
	if self.outstanding > 0 {
		// Begin may be waiting for log space
		self.lock.Wakeup()
		self.lock.Unlock()
		return
	}
	self.committing = true
	blocks := self.blocks
	self.lock.Unlock()

	if len(blocks) > 0 {
		mlog.Printf2("wal/wal", "commit %d blocks", len(blocks))
		self.writeLog(blocks)
		self.writeHead(blocks)
		self.install(blocks)
		self.writeHead(nil)
	}

	defer self.lock.Locked()()
	self.blocks = nil
	self.committing = false
	self.lock.Wakeup()
}

// Registered returns number of blocks in current transaction.
func (self *Log) Registered() int {
	defer self.lock.Locked()()
	return len(self.blocks)
}
