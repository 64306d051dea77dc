/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 10 11:02:10 2019 mstenber
 * Last modified: Fri Feb 15 10:12:51 2019 mstenber
 * Edit time:     43 min
 *
 */

// storage provides the block devices the file system lives on.
//
// Device is positional: block n is always at n, blocks are always
// BlockSize bytes, and a block that has never been written reads as
// zeros. Key-value backends pass the blocks through a codec with the
// block number as additional data.
package storage

import (
	"github.com/fingon/go-xv6fs/codec"
	"github.com/fingon/go-xv6fs/util"
	"github.com/pkg/errors"
)

const BlockSize = 512

var ErrOutOfRange = errors.New("storage: block out of range")
var ErrBlockSize = errors.New("storage: invalid block size")

// Device is the shadow behind the throne; the buffer cache reads and
// writes whole blocks through it.
type Device interface {
	// NumBlocks returns the device size in blocks.
	NumBlocks() uint32

	// ReadBlock fills data (BlockSize bytes) with block bno.
	ReadBlock(bno uint32, data []byte) error

	// WriteBlock stores data (BlockSize bytes) as block bno.
	WriteBlock(bno uint32, data []byte) error

	// Sync makes sure written blocks are durable.
	Sync() error

	Close() error
}

type BackendConfiguration struct {
	// Directory to store to; for the flat image backend, the
	// image file path.
	Directory string

	// Blocks is the device size. Existing devices remember their
	// own size and ignore this.
	Blocks uint32

	// Codec is applied to stored blocks by backends that store
	// variable sized values.
	Codec codec.Codec

	// CacheBlocks > 0 puts ARC cache of that many blocks in front.
	CacheBlocks int
}

// CheckAccess validates the common arguments of ReadBlock/WriteBlock.
func CheckAccess(dev Device, bno uint32, data []byte) error {
	if len(data) != BlockSize {
		return errors.Wrapf(ErrBlockSize, "%d bytes", len(data))
	}
	if bno >= dev.NumBlocks() {
		return errors.Wrapf(ErrOutOfRange, "block %d of %d", bno, dev.NumBlocks())
	}
	return nil
}

// EncodeBlock runs the block through codec (if any).
func EncodeBlock(c codec.Codec, bno uint32, data []byte) ([]byte, error) {
	if c == nil {
		return append([]byte(nil), data...), nil
	}
	return c.EncodeBytes(data, util.Uint32Bytes(bno))
}

// DecodeBlock reverses EncodeBlock into data.
func DecodeBlock(c codec.Codec, bno uint32, enc []byte, data []byte) error {
	if c != nil {
		dec, err := c.DecodeBytes(enc, util.Uint32Bytes(bno))
		if err != nil {
			return errors.Wrapf(err, "block %d", bno)
		}
		enc = dec
	}
	if len(enc) != BlockSize {
		return errors.Wrapf(ErrBlockSize, "block %d decoded to %d bytes", bno, len(enc))
	}
	copy(data, enc)
	return nil
}

// Zero fills data with zeros.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
