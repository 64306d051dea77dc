/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 10 12:14:40 2019 mstenber
 * Last modified: Fri Feb 15 11:03:09 2019 mstenber
 * Edit time:     29 min
 *
 */

package badger

import (
	"encoding/binary"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"github.com/fingon/go-xv6fs/codec"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/util"
)

var sizeKey = []byte("1size")

func blockKey(bno uint32) []byte {
	return append([]byte("2"), util.Uint32Bytes(bno)...)
}

// badgerDevice provides on-disk storage.
//
// - key "1size" -> device size in blocks
// - key prefix 2 + block number -> encoded block
type badgerDevice struct {
	db    *badger.DB
	codec codec.Codec
	size  uint32
}

var _ storage.Device = &badgerDevice{}

func NewBadgerDevice(config storage.BackendConfiguration) (storage.Device, error) {
	opts := badger.DefaultOptions
	opts.Dir = config.Directory
	opts.ValueDir = config.Directory
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "badger.Open %s", config.Directory)
	}
	self := &badgerDevice{db: db, codec: config.Codec}
	v, err := self.get(sizeKey)
	if err != nil {
		db.Close()
		return nil, err
	}
	if v != nil {
		self.size = binary.BigEndian.Uint32(v)
	} else {
		self.size = config.Blocks
		err = db.Update(func(txn *badger.Txn) error {
			return txn.Set(sizeKey, util.Uint32Bytes(self.size))
		})
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	mlog.Printf2("storage/badger/badger", "opened %s with %d blocks", config.Directory, self.size)
	return self, nil
}

func (self *badgerDevice) get(k []byte) (v []byte, err error) {
	err = self.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		v, err = item.ValueCopy(nil)
		return err
	})
	return
}

func (self *badgerDevice) NumBlocks() uint32 {
	return self.size
}

func (self *badgerDevice) ReadBlock(bno uint32, data []byte) error {
	if err := storage.CheckAccess(self, bno, data); err != nil {
		return err
	}
	enc, err := self.get(blockKey(bno))
	if err != nil {
		return err
	}
	if enc == nil {
		storage.Zero(data)
		return nil
	}
	return storage.DecodeBlock(self.codec, bno, enc, data)
}

func (self *badgerDevice) WriteBlock(bno uint32, data []byte) error {
	if err := storage.CheckAccess(self, bno, data); err != nil {
		return err
	}
	enc, err := storage.EncodeBlock(self.codec, bno, data)
	if err != nil {
		return err
	}
	mlog.Printf2("storage/badger/badger", "bad.WriteBlock %d (%d b)", bno, len(enc))
	return self.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(bno), enc)
	})
}

func (self *badgerDevice) Sync() error {
	return nil
}

func (self *badgerDevice) Close() error {
	return self.db.Close()
}
