/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 10 09:20:18 2019 mstenber
 * Last modified: Thu Feb 14 17:02:44 2019 mstenber
 * Edit time:     38 min
 *
 */

package codec

import (
	"github.com/glycerine/greenpack/msgp"
	"github.com/pkg/errors"
)

// Envelopes are msgpack arrays of their fields in zid order.

var ErrEnvelope = errors.New("codec: malformed envelope")

type EncryptedData struct {
	// nonce used for AES GCM
	Nonce []byte `zid:"0"`

	// EncryptedData is AES GCM encrypted payload
	EncryptedData []byte `zid:"1"`
}

type AuthenticatedData struct {
	// Tag is AES-CMAC of additional data + Data
	Tag []byte `zid:"0"`

	Data []byte `zid:"1"`
}

type CompressionType byte

const (
	CompressionType_UNSET CompressionType = iota

	// The data has not been compressed.
	CompressionType_PLAIN

	// The data is compressed with Snappy.
	CompressionType_SNAPPY
)

type CompressedData struct {
	// CompressionType describes how the data has been compressed.
	CompressionType CompressionType `zid:"0"`

	// RawData is the raw data of the client (whatever it is)
	RawData []byte `zid:"1"`
}

func marshalPair(b []byte, first, second []byte) []byte {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendBytes(b, first)
	return msgp.AppendBytes(b, second)
}

func unmarshalPair(bts []byte) (first, second, o []byte, err error) {
	var nbs msgp.NilBitsStack
	var sz uint32
	sz, o, err = nbs.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	if sz != 2 {
		err = errors.Wrapf(ErrEnvelope, "%d fields", sz)
		return
	}
	first, o, err = nbs.ReadBytesBytes(o, nil)
	if err != nil {
		return
	}
	second, o, err = nbs.ReadBytesBytes(o, nil)
	return
}

func (self *EncryptedData) MarshalMsg(b []byte) ([]byte, error) {
	return marshalPair(b, self.Nonce, self.EncryptedData), nil
}

func (self *EncryptedData) UnmarshalMsg(bts []byte) (o []byte, err error) {
	self.Nonce, self.EncryptedData, o, err = unmarshalPair(bts)
	return
}

func (self *AuthenticatedData) MarshalMsg(b []byte) ([]byte, error) {
	return marshalPair(b, self.Tag, self.Data), nil
}

func (self *AuthenticatedData) UnmarshalMsg(bts []byte) (o []byte, err error) {
	self.Tag, self.Data, o, err = unmarshalPair(bts)
	return
}

func (self *CompressedData) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendUint8(b, uint8(self.CompressionType))
	return msgp.AppendBytes(b, self.RawData), nil
}

func (self *CompressedData) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var nbs msgp.NilBitsStack
	var sz uint32
	sz, o, err = nbs.ReadArrayHeaderBytes(bts)
	if err != nil {
		return
	}
	if sz != 2 {
		err = errors.Wrapf(ErrEnvelope, "%d fields", sz)
		return
	}
	var ct uint8
	ct, o, err = nbs.ReadUint8Bytes(o)
	if err != nil {
		return
	}
	self.CompressionType = CompressionType(ct)
	self.RawData, o, err = nbs.ReadBytesBytes(o, nil)
	return
}
