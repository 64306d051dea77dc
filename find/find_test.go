/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 19 13:10:04 2019 mstenber
 * Last modified: Tue Feb 19 14:20:31 2019 mstenber
 * Edit time:     29 min
 *
 */

package find

import (
	"math"
	"strings"
	"testing"

	"github.com/fingon/go-xv6fs/file"
	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/proc"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/storage/inmemory"
	"github.com/pkg/errors"
	"github.com/stvp/assert"
)

func TestParseArgs(t *testing.T) {
	t.Parallel()
	root, opts, err := ParseArgs([]string{"/d", "-follow", "-name", "a", "-size", "+10", "-type", "f"})
	assert.Nil(t, err)
	assert.Equal(t, root, "/d")
	assert.Equal(t, opts, Options{Follow: true, Name: "a", Type: TypeFile,
		MinSize: 11, MaxSize: math.MaxUint32})

	_, opts, err = ParseArgs([]string{".", "-size", "-10"})
	assert.Nil(t, err)
	assert.Equal(t, opts.MinSize, uint32(0))
	assert.Equal(t, opts.MaxSize, uint32(9))
	_, opts, err = ParseArgs([]string{".", "-size", "7", "-type", "s"})
	assert.Nil(t, err)
	assert.Equal(t, opts.MinSize, uint32(7))
	assert.Equal(t, opts.MaxSize, uint32(7))
	assert.Equal(t, opts.Type, TypeSymlink)

	for _, args := range [][]string{
		{},
		{"-help"},
		{".", "-help"},
		{".", "-name"},
		{".", "-name", ""},
		{".", "-size", "x"},
		{".", "-size", "-0"},
		{".", "-type", "q"},
		{".", "-bogus"},
	} {
		_, _, err := ParseArgs(args)
		assert.Equal(t, errors.Cause(err), ErrUsage, strings.Join(args, " "))
	}
}

func prodTree(t *testing.T) *proc.Proc {
	dev := inmemory.NewInMemoryDevice(storage.BackendConfiguration{Blocks: 2048})
	_, err := fs.Mkfs(dev, fs.MkfsParams{})
	assert.Nil(t, err)
	f, err := fs.Mount(dev, fs.Options{})
	assert.Nil(t, err)
	p, err := proc.NewTable(file.NewTable(f, 0)).Spawn()
	assert.Nil(t, err)
	write := func(path, content string) {
		fd, err := p.Open(path, proc.O_CREATE|proc.O_WRONLY)
		assert.Nil(t, err)
		_, err = p.Write(fd, []byte(content))
		assert.Nil(t, err)
		p.Close(fd)
	}
	assert.Nil(t, p.Mkdir("/d"))
	assert.Nil(t, p.Mkdir("/d/e"))
	write("/d/a", "0123456789")
	write("/d/e/a", "01234")
	write("/d/b", "")
	assert.Nil(t, p.Symlink("/d/e", "/d/l"))
	assert.Nil(t, p.Symlink("/d", "/d/e/up"))
	assert.Nil(t, p.Symlink("/nowhere", "/d/dangling"))
	return p
}

func search(t *testing.T, p *proc.Proc, args ...string) string {
	root, opts, err := ParseArgs(args)
	assert.Nil(t, err)
	var found []string
	err = Search(p, root, opts, func(path string, st fs.Stat) error {
		found = append(found, path)
		return nil
	})
	assert.Nil(t, err)
	return strings.Join(found, " ")
}

func TestSearch(t *testing.T) {
	t.Parallel()
	p := prodTree(t)
	assert.Equal(t, search(t, p, "/d"), "/d /d/e /d/e/a /d/e/up /d/a /d/b /d/l /d/dangling")
	assert.Equal(t, search(t, p, "/d", "-name", "a"), "/d/e/a /d/a")
	assert.Equal(t, search(t, p, "/d", "-type", "d"), "/d /d/e")
	assert.Equal(t, search(t, p, "/d", "-type", "s"), "/d/e/up /d/l /d/dangling")
	assert.Equal(t, search(t, p, "/d", "-type", "f", "-size", "+4"), "/d/e/a /d/a")
	assert.Equal(t, search(t, p, "/d", "-type", "f", "-size", "-5"), "/d/b")
	assert.Equal(t, search(t, p, "/d", "-size", "5"), "/d/e/a")
	// symbolic link size is that of the target path
	assert.Equal(t, search(t, p, "/d", "-size", "8"), "/d/dangling")

	// following links walks /d/l as directory; /d/e/up leads back
	// to /d being walked and ends there
	assert.Equal(t, search(t, p, "/d", "-follow", "-type", "f"),
		"/d/e/a /d/a /d/b /d/l/a")
	assert.Equal(t, search(t, p, "/d", "-follow", "-type", "s"), "/d/dangling")

	assert.Nil(t, p.Chdir("/d"))
	assert.Equal(t, search(t, p, "e"), "e e/a e/up")

	err := Search(p, "/nope", DefaultOptions(), nil)
	assert.Equal(t, errors.Cause(err), fs.ErrNotFound)
}
