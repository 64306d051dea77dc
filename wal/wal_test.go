/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Mon Feb 11 11:45:30 2019 mstenber
 * Last modified: Sat Feb 16 13:31:02 2019 mstenber
 * Edit time:     28 min
 *
 */

package wal

import (
	"encoding/binary"
	"testing"

	"github.com/fingon/go-xv6fs/bcache"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/storage/inmemory"
	"github.com/stvp/assert"
)

const logStart = 20

func setup() (*bcache.Cache, storage.Device) {
	dev := inmemory.NewInMemoryDevice(storage.BackendConfiguration{Blocks: 32})
	c := bcache.New(16)
	c.Attach(1, dev)
	return c, dev
}

func readByte(t *testing.T, dev storage.Device, bno uint32) byte {
	data := make([]byte, storage.BlockSize)
	assert.Nil(t, dev.ReadBlock(bno, data))
	return data[0]
}

func TestCommit(t *testing.T) {
	t.Parallel()
	c, dev := setup()
	l := Open(c, 1, logStart, 5)
	assert.Equal(t, l.Capacity(), 4)

	l.Begin()
	for _, bno := range []uint32{3, 4, 3} {
		b := c.Fetch(1, bno)
		b.Data[0] = byte(bno)
		l.Write(b)
		c.Release(b)
	}
	assert.Equal(t, l.Registered(), 2)
	// nothing reaches the device before commit
	assert.Equal(t, readByte(t, dev, 3), byte(0))
	l.Commit()
	assert.Equal(t, readByte(t, dev, 3), byte(3))
	assert.Equal(t, readByte(t, dev, 4), byte(4))
	assert.Equal(t, l.Registered(), 0)

	// header is clear after commit
	data := make([]byte, storage.BlockSize)
	assert.Nil(t, dev.ReadBlock(logStart, data))
	assert.Equal(t, binary.LittleEndian.Uint32(data), uint32(0))
}

func TestRecover(t *testing.T) {
	t.Parallel()
	_, dev := setup()

	// committed header + log block, but never installed
	head := make([]byte, storage.BlockSize)
	binary.LittleEndian.PutUint32(head, 1)
	binary.LittleEndian.PutUint32(head[4:], 10)
	assert.Nil(t, dev.WriteBlock(logStart, head))
	data := make([]byte, storage.BlockSize)
	data[0] = 77
	assert.Nil(t, dev.WriteBlock(logStart+1, data))

	c := bcache.New(16)
	c.Attach(1, dev)
	Open(c, 1, logStart, 5)
	assert.Equal(t, readByte(t, dev, 10), byte(77))
	assert.Equal(t, readByte(t, dev, logStart), byte(0))
}

func TestUncommittedIsLost(t *testing.T) {
	t.Parallel()
	c, dev := setup()
	l := Open(c, 1, logStart, 5)
	l.Begin()
	b := c.Fetch(1, 5)
	b.Data[0] = 1
	l.Write(b)
	c.Release(b)

	// crash: a fresh cache over the same device sees nothing
	c2 := bcache.New(16)
	c2.Attach(1, dev)
	Open(c2, 1, logStart, 5)
	assert.Equal(t, readByte(t, dev, 5), byte(0))
}

func TestTooBig(t *testing.T) {
	t.Parallel()
	c, _ := setup()
	l := Open(c, 1, logStart, 3)
	l.Begin()
	for _, bno := range []uint32{1, 2} {
		b := c.Fetch(1, bno)
		l.Write(b)
		c.Release(b)
	}
	b := c.Fetch(1, 3)
	defer func() {
		assert.True(t, recover() != nil)
		c.Release(b)
	}()
	l.Write(b)
}

func TestWriteOutsideTransaction(t *testing.T) {
	t.Parallel()
	c, _ := setup()
	l := Open(c, 1, logStart, 3)
	b := c.Fetch(1, 1)
	defer func() {
		assert.True(t, recover() != nil)
		c.Release(b)
	}()
	l.Write(b)
}

func TestGroupCommit(t *testing.T) {
	t.Parallel()
	c, dev := setup()
	l := Open(c, 1, logStart, 9)
	assert.Equal(t, l.OpCapacity(), 8)

	l.Begin()
	// second operation does not fit before first ends
	started := make(chan bool)
	go func() {
		l.Begin()
		started <- true
		b := c.Fetch(1, 7)
		b.Data[0] = 7
		l.Write(b)
		c.Release(b)
		l.Commit()
		started <- true
	}()
	b := c.Fetch(1, 6)
	b.Data[0] = 6
	l.Write(b)
	c.Release(b)
	l.Commit()
	assert.Equal(t, readByte(t, dev, 6), byte(6))
	<-started
	<-started
	assert.Equal(t, readByte(t, dev, 7), byte(7))
}
