/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 10 12:01:17 2019 mstenber
 * Last modified: Fri Feb 15 10:52:30 2019 mstenber
 * Edit time:     34 min
 *
 */

package bolt

import (
	"encoding/binary"
	"fmt"

	bbolt "github.com/coreos/bbolt"
	"github.com/pkg/errors"

	"github.com/fingon/go-xv6fs/codec"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/util"
)

var metaKey = []byte("meta")
var dataKey = []byte("data")
var sizeKey = []byte("size")

// boltDevice provides on-disk storage.
//
// - meta bucket: size -> device size in blocks
// - data bucket: block number (big endian) -> encoded block
//
// Blocks never written are absent and read as zeros.
type boltDevice struct {
	db    *bbolt.DB
	codec codec.Codec
	size  uint32
}

var _ storage.Device = &boltDevice{}

func NewBoltDevice(config storage.BackendConfiguration) (storage.Device, error) {
	path := fmt.Sprintf("%s/bbolt.db", config.Directory)
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "bbolt.Open %s", path)
	}
	self := &boltDevice{db: db, codec: config.Codec}
	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaKey)
		if err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(dataKey)
		if err != nil {
			return err
		}
		if v := meta.Get(sizeKey); v != nil {
			self.size = binary.BigEndian.Uint32(v)
			return nil
		}
		self.size = config.Blocks
		return meta.Put(sizeKey, util.Uint32Bytes(self.size))
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	mlog.Printf2("storage/bolt/bolt", "opened %s with %d blocks", path, self.size)
	return self, nil
}

func (self *boltDevice) NumBlocks() uint32 {
	return self.size
}

func (self *boltDevice) ReadBlock(bno uint32, data []byte) error {
	if err := storage.CheckAccess(self, bno, data); err != nil {
		return err
	}
	var enc []byte
	self.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(dataKey).Get(util.Uint32Bytes(bno)); v != nil {
			enc = append([]byte(nil), v...)
		}
		return nil
	})
	if enc == nil {
		storage.Zero(data)
		return nil
	}
	return storage.DecodeBlock(self.codec, bno, enc, data)
}

func (self *boltDevice) WriteBlock(bno uint32, data []byte) error {
	if err := storage.CheckAccess(self, bno, data); err != nil {
		return err
	}
	enc, err := storage.EncodeBlock(self.codec, bno, data)
	if err != nil {
		return err
	}
	mlog.Printf2("storage/bolt/bolt", "bbolt.WriteBlock %d (%d b)", bno, len(enc))
	return self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(dataKey).Put(util.Uint32Bytes(bno), enc)
	})
}

func (self *boltDevice) Sync() error {
	return self.db.Sync()
}

func (self *boltDevice) Close() error {
	return self.db.Close()
}
