/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Feb 10 12:40:52 2019 mstenber
 * Last modified: Fri Feb 15 11:30:27 2019 mstenber
 * Edit time:     31 min
 *
 */

package factory

import (
	"sort"

	"github.com/fingon/go-xv6fs/codec"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/storage/badger"
	"github.com/fingon/go-xv6fs/storage/bolt"
	"github.com/fingon/go-xv6fs/storage/file"
	"github.com/fingon/go-xv6fs/storage/inmemory"
	"github.com/pkg/errors"
)

var ErrUnknownBackend = errors.New("factory: unknown backend")

type factoryCallback func(config storage.BackendConfiguration) (storage.Device, error)

type backendInfo struct {
	factory factoryCallback

	// supportsCodec is set for backends storing variable size values
	supportsCodec bool
}

var backendFactories = map[string]backendInfo{
	"inmemory": {factory: func(config storage.BackendConfiguration) (storage.Device, error) {
		return inmemory.NewInMemoryDevice(config), nil
	}},
	"file":   {factory: file.NewFileDevice},
	"bolt":   {factory: bolt.NewBoltDevice, supportsCodec: true},
	"badger": {factory: badger.NewBadgerDevice, supportsCodec: true},
}

func List() []string {
	keys := make([]string, 0, len(backendFactories))
	for k := range backendFactories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func New(name string, config storage.BackendConfiguration) (storage.Device, error) {
	mlog.Printf2("storage/factory/factory", "f.New %v %v", name, config.Directory)
	info, ok := backendFactories[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", name)
	}
	if !info.supportsCodec {
		config.Codec = nil
	}
	dev, err := info.factory(config)
	if err != nil {
		return nil, err
	}
	if config.CacheBlocks > 0 {
		dev = storage.NewCachedDevice(dev, config.CacheBlocks)
	}
	return dev, nil
}

type CodecConfiguration struct {
	storage.BackendConfiguration
	BackendName string

	// Password enables encryption
	Password, Salt string
	Iterations     int

	// Authenticate adds CMAC tags when not encrypting
	Authenticate bool

	// Compress enables snappy compression of blocks
	Compress bool
}

// NewWithCodec creates the backend with codec chain matching the
// configuration. Backends that cannot store encoded blocks ignore it.
func NewWithCodec(config CodecConfiguration) (storage.Device, error) {
	iterations := config.Iterations
	if iterations == 0 {
		iterations = 12345
	}
	salt := config.Salt
	if salt == "" {
		salt = "asdf"
	}
	codecs := []codec.Codec{}
	if config.Password != "" {
		mlog.Printf2("storage/factory/factory", " with encryption")
		codecs = append(codecs, codec.EncryptingCodec{}.Init([]byte(config.Password), []byte(salt), iterations))
	} else if config.Authenticate {
		mlog.Printf2("storage/factory/factory", " with authentication")
		key := codec.DeriveKey([]byte(salt), []byte(salt), iterations)
		codecs = append(codecs, codec.AuthenticatingCodec{}.Init(key))
	}
	if config.Compress {
		mlog.Printf2("storage/factory/factory", " with compression")
		codecs = append(codecs, &codec.CompressingCodec{})
	}
	beconfig := config.BackendConfiguration
	if len(codecs) > 0 {
		beconfig.Codec = codec.CodecChain{}.Init(codecs...)
	}
	return New(config.BackendName, beconfig)
}
