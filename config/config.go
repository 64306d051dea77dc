/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Wed Feb 20 09:12:01 2019 mstenber
 * Last modified: Wed Feb 20 11:05:47 2019 mstenber
 * Edit time:     52 min
 *
 */

// config loads tool configuration from (optional) yaml file,
// XV6FS_ prefixed environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"strings"

	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/storage/factory"
	"github.com/fingon/go-xv6fs/wal"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "XV6FS"
	ConfigName = "xv6fs"
)

type Config struct {
	Backend     string `mapstructure:"backend"`
	Image       string `mapstructure:"image"`
	Blocks      uint32 `mapstructure:"blocks"`
	Inodes      uint32 `mapstructure:"inodes"`
	LogSize     uint32 `mapstructure:"log_size"`
	CacheBlocks int    `mapstructure:"cache_blocks"`
	Buffers     int    `mapstructure:"buffers"`
	InodeCache  int    `mapstructure:"inode_cache"`
	BcryptCost  int    `mapstructure:"bcrypt_cost"`

	// Block codec of the key-value backends
	Password     string `mapstructure:"password"`
	Salt         string `mapstructure:"salt"`
	Iterations   int    `mapstructure:"iterations"`
	Authenticate bool   `mapstructure:"authenticate"`
	Compress     bool   `mapstructure:"compress"`
}

var defaults = map[string]interface{}{
	"backend":      "file",
	"image":        "xv6fs.img",
	"blocks":       8192,
	"inodes":       fs.NEXEMPT,
	"log_size":     wal.DefaultSize,
	"cache_blocks": 0,
	"buffers":      0,
	"inode_cache":  fs.NINODE,
	"bcrypt_cost":  0,
	"password":     "",
	"salt":         "",
	"iterations":   0,
	"authenticate": false,
	"compress":     false,
}

// New returns viper instance with the defaults and environment
// binding set up; flags may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (or xv6fs.yaml from the usual places if path is
// empty; missing file is fine then) and returns the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.xv6fs")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.Wrap(err, "reading config")
		}
	} else {
		mlog.Printf2("config/config", "using %s", v.ConfigFileUsed())
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (self *Config) validate() error {
	found := false
	for _, name := range factory.List() {
		if name == self.Backend {
			found = true
		}
	}
	if !found {
		return errors.Wrapf(factory.ErrUnknownBackend, "%q (have %v)", self.Backend, factory.List())
	}
	if self.Inodes > fs.NEXEMPT {
		return errors.Wrapf(fs.ErrTooManyInodes, "%d > %d", self.Inodes, fs.NEXEMPT)
	}
	if self.LogSize < 2 || self.LogSize > wal.MaxSize {
		return errors.Errorf("log size %d not within [2, %d]", self.LogSize, wal.MaxSize)
	}
	return nil
}

func (self *Config) FsOptions() fs.Options {
	return fs.Options{Inodes: self.InodeCache, Buffers: self.Buffers,
		PasswordCost: self.BcryptCost}
}

func (self *Config) MkfsParams() fs.MkfsParams {
	return fs.MkfsParams{Inodes: self.Inodes, LogSize: self.LogSize}
}

func (self *Config) CodecConfiguration() factory.CodecConfiguration {
	return factory.CodecConfiguration{
		BackendConfiguration: storage.BackendConfiguration{
			Directory:   self.Image,
			Blocks:      self.Blocks,
			CacheBlocks: self.CacheBlocks,
		},
		BackendName:  self.Backend,
		Password:     self.Password,
		Salt:         self.Salt,
		Iterations:   self.Iterations,
		Authenticate: self.Authenticate,
		Compress:     self.Compress,
	}
}

// OpenDevice opens (or creates) the configured device.
func (self *Config) OpenDevice() (storage.Device, error) {
	return factory.NewWithCodec(self.CodecConfiguration())
}
