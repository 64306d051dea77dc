/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Wed Feb 20 10:20:13 2019 mstenber
 * Last modified: Wed Feb 20 11:10:02 2019 mstenber
 * Edit time:     18 min
 *
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/storage/factory"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "xv6fs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "file", c.Backend)
	assert.Equal(t, uint32(8192), c.Blocks)
	assert.Equal(t, uint32(fs.NEXEMPT), c.Inodes)
	assert.Equal(t, fs.Options{Inodes: fs.NINODE}, c.FsOptions())
}

func TestFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
backend: bolt
image: /tmp/somewhere
blocks: 1024
cache_blocks: 16
password: sekrit
compress: true
`)
	t.Setenv("XV6FS_BLOCKS", "2048")
	t.Setenv("XV6FS_BCRYPT_COST", "4")
	c, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "bolt", c.Backend)
	assert.Equal(t, uint32(2048), c.Blocks)
	assert.Equal(t, 4, c.BcryptCost)

	cc := c.CodecConfiguration()
	assert.Equal(t, "bolt", cc.BackendName)
	assert.Equal(t, "/tmp/somewhere", cc.Directory)
	assert.Equal(t, 16, cc.CacheBlocks)
	assert.Equal(t, "sekrit", cc.Password)
	assert.True(t, cc.Compress)
}

func TestOverride(t *testing.T) {
	v := New()
	v.Set("backend", "inmemory")
	v.Set("blocks", 512)
	c, err := Load(v, writeConfig(t, "backend: badger\n"))
	require.NoError(t, err)
	assert.Equal(t, "inmemory", c.Backend)

	dev, err := c.OpenDevice()
	require.NoError(t, err)
	assert.Equal(t, uint32(512), dev.NumBlocks())
	_, err = fs.Mkfs(dev, c.MkfsParams())
	assert.NoError(t, err)
	assert.NoError(t, dev.Close())
}

func TestInvalid(t *testing.T) {
	_, err := Load(New(), writeConfig(t, "backend: floppy\n"))
	assert.Equal(t, factory.ErrUnknownBackend, errors.Cause(err))

	_, err = Load(New(), writeConfig(t, "log_size: 1\n"))
	assert.Error(t, err)

	_, err = Load(New(), writeConfig(t, "inodes: 1000\n"))
	assert.Equal(t, fs.ErrTooManyInodes, errors.Cause(err))

	_, err = Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
