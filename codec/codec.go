/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 10 09:12:42 2019 mstenber
 * Last modified: Thu Feb 14 17:31:05 2019 mstenber
 * Edit time:     96 min
 *
 */

// codec library is responsible for transforming data + additionalData
// to different kind of data before it hits the block device. This
// means in practise encrypting, authenticating or compressing.
//
// additionalData is authenticated but not stored; block devices give
// the block number there so that blocks cannot be moved around.
//
// CodecChain makes it possible to combine multiple Codecs that do the
// particular sub-EncodeBytes/DecodeBytes steps.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"log"

	"github.com/golang/snappy"
	"github.com/jacobsa/crypto/cmac"
	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

var ErrAuthentication = errors.New("codec: authentication failed")
var ErrUnknownCompression = errors.New("codec: unknown compression type")

// Codec
//
// Single transformation of byte slices.
type Codec interface {
	DecodeBytes(data, additionalData []byte) (ret []byte, err error)
	EncodeBytes(data, additionalData []byte) (ret []byte, err error)
}

// DeriveKey produces 32 byte key from password using pbkdf2 with sha256.
func DeriveKey(password, salt []byte, iter int) []byte {
	return pbkdf2.Key(password, salt, iter, 32, sha256.New)
}

// EncryptingCodec
//
// AES GCM based encrypting/decrypting (+authenticating) Codec.
type EncryptingCodec struct {
	gcm cipher.AEAD
}

func (self EncryptingCodec) Init(password, salt []byte, iter int) *EncryptingCodec {
	block, err := aes.NewCipher(DeriveKey(password, salt, iter))
	if err != nil {
		log.Panic(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		log.Panic(err)
	}
	self.gcm = gcm
	return &self
}

func (self *EncryptingCodec) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	var ed EncryptedData
	_, err = ed.UnmarshalMsg(data)
	if err != nil {
		return
	}
	ret, err = self.gcm.Open(nil, ed.Nonce, ed.EncryptedData, additionalData)
	if err != nil {
		err = errors.Wrap(ErrAuthentication, err.Error())
	}
	return
}

func (self *EncryptingCodec) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	nonce := make([]byte, self.gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return
	}
	ciphertext := self.gcm.Seal(nil, nonce, data, additionalData)
	ed := EncryptedData{Nonce: nonce, EncryptedData: ciphertext}
	ret, err = ed.MarshalMsg(nil)
	return
}

// AuthenticatingCodec
//
// AES-CMAC tags the data (and additional data) without hiding it;
// useful for detecting corruption of unencrypted devices.
type AuthenticatingCodec struct {
	key []byte
}

func (self AuthenticatingCodec) Init(key []byte) *AuthenticatingCodec {
	self.key = key
	if _, err := cmac.New(key); err != nil {
		log.Panic(err)
	}
	return &self
}

func (self *AuthenticatingCodec) tag(data, additionalData []byte) []byte {
	h, err := cmac.New(self.key)
	if err != nil {
		log.Panic(err)
	}
	h.Write(additionalData)
	h.Write(data)
	return h.Sum(nil)
}

func (self *AuthenticatingCodec) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	var ad AuthenticatedData
	_, err = ad.UnmarshalMsg(data)
	if err != nil {
		return
	}
	if subtle.ConstantTimeCompare(ad.Tag, self.tag(ad.Data, additionalData)) != 1 {
		err = ErrAuthentication
		return
	}
	ret = ad.Data
	return
}

func (self *AuthenticatingCodec) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	ad := AuthenticatedData{Tag: self.tag(data, additionalData), Data: data}
	ret, err = ad.MarshalMsg(nil)
	return
}

// CompressingCodec
//
// On-the-fly snappy compressing Codec. If the result does not
// improve, the result is marked to be plaintext and passed as-is (at
// cost of few bytes).
type CompressingCodec struct {
}

func (self *CompressingCodec) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	var cd CompressedData
	_, err = cd.UnmarshalMsg(data)
	if err != nil {
		return
	}
	switch cd.CompressionType {
	case CompressionType_PLAIN:
		ret = cd.RawData
	case CompressionType_SNAPPY:
		ret, err = snappy.Decode(nil, cd.RawData)
	default:
		err = errors.Wrapf(ErrUnknownCompression, "type %d", cd.CompressionType)
	}
	return
}

func (self *CompressingCodec) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	cd := CompressedData{CompressionType: CompressionType_SNAPPY,
		RawData: snappy.Encode(nil, data)}
	if len(cd.RawData) >= len(data) {
		cd.CompressionType = CompressionType_PLAIN
		cd.RawData = data
	}
	ret, err = cd.MarshalMsg(nil)
	return
}

type CodecChain struct {
	codecs, reverseCodecs []Codec
}

// Init method initializes the codec chain.
//
// codecs are given in decryption order, so e.g.
// encrypting one should be given before compressing one.
func (self CodecChain) Init(codecs ...Codec) *CodecChain {
	self.codecs = codecs
	rc := make([]Codec, len(codecs))
	for i, c := range codecs {
		rc[len(codecs)-i-1] = c
	}
	self.reverseCodecs = rc
	return &self
}

func (self *CodecChain) DecodeBytes(data, additionalData []byte) (ret []byte, err error) {
	ret = data
	for _, c := range self.codecs {
		ret, err = c.DecodeBytes(data, additionalData)
		if err != nil {
			return
		}
		data = ret
	}
	return
}

func (self *CodecChain) EncodeBytes(data, additionalData []byte) (ret []byte, err error) {
	ret = data
	for _, c := range self.reverseCodecs {
		ret, err = c.EncodeBytes(data, additionalData)
		if err != nil {
			return
		}
		data = ret
	}
	return
}
