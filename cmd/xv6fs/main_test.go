/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 21 14:33:12 2019 mstenber
 * Last modified: Thu Feb 21 15:40:29 2019 mstenber
 * Edit time:     41 min
 *
 */

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/proc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type image struct {
	t    *testing.T
	path string
}

func prodImage(t *testing.T) *image {
	im := &image{t: t, path: filepath.Join(t.TempDir(), "fs.img")}
	_, err := im.run("", "mkfs")
	require.NoError(t, err)
	return im
}

func (self *image) run(stdin string, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--image", self.path, "--blocks", "2048",
		"--bcrypt-cost", "4"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (self *image) mustRun(stdin string, args ...string) string {
	out, err := self.run(stdin, args...)
	require.NoError(self.t, err, "%v", args)
	return out
}

func TestMkfsInfo(t *testing.T) {
	t.Parallel()
	im := prodImage(t)
	out := im.mustRun("", "info", "-o", "yaml")
	assert.Contains(t, out, "size: 2048")
	assert.Contains(t, out, "backend: file")

	out = im.mustRun("", "info", "-o", "json")
	assert.Contains(t, out, `"free_blocks"`)

	out = im.mustRun("", "info")
	assert.Contains(t, out, "free blocks")

	_, err := im.run("", "info", "-o", "xml")
	assert.Equal(t, ErrUnknownFormat, errors.Cause(err))

	_, err = im.run("", "info", "--backend", "nosuch")
	assert.Error(t, err)
}

func TestFiles(t *testing.T) {
	t.Parallel()
	im := prodImage(t)
	im.mustRun("hello\n", "put", "/hello")
	assert.Equal(t, "hello\n", im.mustRun("", "cat", "/hello"))

	_, err := im.run("again\n", "put", "/hello")
	assert.Equal(t, fs.ErrExists, errors.Cause(err))
	im.mustRun("world\n", "put", "-a", "/hello")
	assert.Equal(t, "hello\nworld\n", im.mustRun("", "cat", "/hello"))

	im.mustRun("", "mkdir", "-p", "/a/b/c")
	im.mustRun("", "mkdir", "-p", "/a/b/d")
	_, err = im.run("", "mkdir", "/a")
	assert.Equal(t, fs.ErrExists, errors.Cause(err))
	_, err = im.run("", "mkdir", "-p", "/hello/x")
	assert.Equal(t, fs.ErrNotDir, errors.Cause(err))

	im.mustRun("", "ln", "-s", "/hello", "/a/link")
	im.mustRun("", "ln", "/hello", "/a/b/hard")
	assert.Equal(t, "/hello\n", im.mustRun("", "readlink", "/a/link"))
	assert.Equal(t, "6\n/hello\n", im.mustRun("", "readlink", "-f", "-n", "/a/link"))
	_, err = im.run("", "readlink", "/hello")
	assert.Equal(t, fs.ErrInvalidPath, errors.Cause(err))

	out := im.mustRun("", "ls", "-o", "json", "/a")
	assert.Contains(t, out, `"link"`)
	assert.Contains(t, out, `"symlink"`)
	out = im.mustRun("", "ls", "/a/b")
	assert.Contains(t, out, "hard")
	assert.Contains(t, out, "12")

	im.mustRun("", "rm", "/hello")
	_, err = im.run("", "cat", "/a/link")
	assert.Equal(t, fs.ErrNotFound, errors.Cause(err))
	assert.Equal(t, "hello\nworld\n", im.mustRun("", "cat", "/a/b/hard"))

	_, err = im.run("", "rm", "/a")
	assert.Equal(t, fs.ErrNotEmpty, errors.Cause(err))
}

func TestFind(t *testing.T) {
	t.Parallel()
	im := prodImage(t)
	im.mustRun("", "mkdir", "-p", "/d/e")
	im.mustRun("12345", "put", "/d/e/a")
	im.mustRun("1", "put", "/d/a")
	im.mustRun("", "ln", "-s", "/d/e", "/d/l")

	assert.Equal(t, "/d/e/a\n/d/a\n", im.mustRun("", "find", "/d", "-type", "f"))
	assert.Equal(t, "/d/e/a\n/d/a\n/d/l/a\n",
		im.mustRun("", "find", "/d", "-follow", "-name", "a"))
	assert.Equal(t, "/d/e/a\n", im.mustRun("", "find", "/d", "-type", "f", "-size", "+1"))
	out := im.mustRun("", "find", "-o", "yaml", "/d", "-type", "s")
	assert.Contains(t, out, "name: /d/l")

	_, err := im.run("", "find", "/d", "-type", "x")
	assert.Error(t, err)
}

func TestProtect(t *testing.T) {
	t.Parallel()
	im := prodImage(t)
	im.mustRun("top secret", "put", "/secret")

	out := im.mustRun("", "protect", "/secret", "-p", "pw")
	assert.Contains(t, out, "weak password")
	_, err := im.run("", "protect", "/other", "-p", "correct horse battery staple")
	assert.Equal(t, fs.ErrNotFound, errors.Cause(err))

	_, err = im.run("", "cat", "/secret")
	assert.Equal(t, proc.ErrAccess, errors.Cause(err))
	_, err = im.run("", "cat", "-p", "wrong", "/secret")
	assert.Equal(t, fs.ErrPassword, errors.Cause(err))
	assert.Equal(t, "top secret", im.mustRun("", "cat", "-p", "pw", "/secret"))

	_, err = im.run("", "unprotect", "/secret", "-p", "wrong")
	assert.Equal(t, fs.ErrPassword, errors.Cause(err))
	im.mustRun("", "unprotect", "/secret", "-p", "pw")
	assert.Equal(t, "top secret", im.mustRun("", "cat", "/secret"))
}

func TestFlock(t *testing.T) {
	t.Parallel()
	im := prodImage(t)
	im.mustRun("data", "put", "/f")
	out := im.mustRun("", "flock", "pw", "/f")
	assert.Equal(t, `data
parent opening file...
parent error opening file: /f
parent trying to unprotect with wrong password...
failed
parent trying to unprotect with correct password...
ok
`, out)
	assert.Equal(t, "data", im.mustRun("", "cat", "/f"))
}

func TestLarge(t *testing.T) {
	t.Parallel()
	im := prodImage(t)
	out := im.mustRun("", "large", "-w", "2", "-k", "64", "/big")
	assert.Contains(t, out, "/big.0")
	assert.Contains(t, out, "/big.1")
	assert.Contains(t, out, "65536 bytes")

	out = im.mustRun("", "ls", "-o", "json", "/big.1")
	assert.Contains(t, out, "65536")
}
