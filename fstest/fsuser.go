/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 15:39:36 2017 mstenber
 * Last modified: Tue Feb 19 15:40:12 2019 mstenber
 * Edit time:     81 min
 *
 */

// fstest provides in-memory file system fixture for tests.
//
// Tests are mostly written with FSUser which provides ~os module
// functionality on top of the system calls of one process.
package fstest

import (
	"bytes"
	"os"
	"path"
	"strings"
	"time"

	"github.com/fingon/go-xv6fs/file"
	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/proc"
	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/storage/inmemory"
	"github.com/pkg/errors"
)

const DefaultBlocks = 4096

// Fixture is freshly formatted in-memory file system with the tables
// on top.
type Fixture struct {
	Device storage.Device
	Fs     *fs.Fs
	Files  *file.Table
	Procs  *proc.Table
}

func NewFixture(blocks uint32, options fs.Options) (*Fixture, error) {
	if blocks == 0 {
		blocks = DefaultBlocks
	}
	dev := inmemory.NewInMemoryDevice(storage.BackendConfiguration{Blocks: blocks})
	if _, err := fs.Mkfs(dev, fs.MkfsParams{}); err != nil {
		return nil, err
	}
	f, err := fs.Mount(dev, options)
	if err != nil {
		return nil, err
	}
	files := file.NewTable(f, 0)
	return &Fixture{Device: dev, Fs: f, Files: files,
		Procs: proc.NewTable(files)}, nil
}

// User spawns new process.
func (self *Fixture) User() (*FSUser, error) {
	p, err := self.Procs.Spawn()
	if err != nil {
		return nil, err
	}
	return NewFSUser(p), nil
}

type FSUser struct {
	*proc.Proc
}

func NewFSUser(p *proc.Proc) *FSUser {
	return &FSUser{Proc: p}
}

type fileInfo struct {
	name  string
	size  int64
	mode  os.FileMode
	mtime time.Time
	stat  fs.Stat
}

func (self *fileInfo) Name() string {
	return self.name
}

func (self *fileInfo) Size() int64 {
	return self.size
}

func (self *fileInfo) Mode() os.FileMode {
	return self.mode
}

func (self *fileInfo) ModTime() time.Time {
	return self.mtime
}

func (self *fileInfo) IsDir() bool {
	return self.Mode().IsDir()
}

func (self *fileInfo) Sys() interface{} {
	return &self.stat
}

// FileMode maps inode type to os.FileMode. There are no permission
// bits on disk, so they are fixed per type.
func FileMode(typ fs.InodeType) os.FileMode {
	switch typ {
	case fs.T_DIR:
		return os.ModeDir | 0755
	case fs.T_SYMLINK:
		return os.ModeSymlink | 0777
	case fs.T_DEV:
		return os.ModeDevice | 0666
	}
	return 0644
}

func newFileInfo(name string, st fs.Stat) os.FileInfo {
	return &fileInfo{name: name, size: int64(st.Size),
		mode: FileMode(st.Type), stat: st}
}

func (self *FSUser) Lstat(name string) (os.FileInfo, error) {
	st, err := self.Proc.Lstat(name)
	if err != nil {
		return nil, err
	}
	return newFileInfo(path.Base(name), st), nil
}

func (self *FSUser) ListDir(name string) (ret []string, err error) {
	entries, err := self.Proc.ReadDir(name)
	if err != nil {
		return
	}
	for _, de := range entries {
		if de.Name == "." || de.Name == ".." {
			continue
		}
		ret = append(ret, de.Name)
	}
	return
}

func (self *FSUser) ReadDir(dirname string) (ret []os.FileInfo, err error) {
	l, err := self.ListDir(dirname)
	if err != nil {
		return
	}
	ret = make([]os.FileInfo, len(l))
	for i, n := range l {
		ret[i], err = self.Lstat(strings.TrimSuffix(dirname, "/") + "/" + n)
		if err != nil {
			return
		}
	}
	return
}

func (self *FSUser) ReadFile(name string) ([]byte, error) {
	fd, err := self.Open(name, proc.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer self.Close(fd)
	var b bytes.Buffer
	buf := make([]byte, fs.BSIZE)
	for {
		n, err := self.Read(fd, buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return b.Bytes(), nil
		}
		b.Write(buf[:n])
	}
}

// WriteFile writes data to name, creating it if necessary. There is
// no truncation, so the file must not be longer to start with.
func (self *FSUser) WriteFile(name string, data []byte) error {
	fd, err := self.Open(name, proc.O_CREATE|proc.O_WRONLY)
	if err != nil {
		return err
	}
	defer self.Close(fd)
	n, err := self.Write(fd, data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return errors.Errorf("short write of %q (%d/%d)", name, n, len(data))
	}
	return nil
}

// MkdirAll creates name and the missing directories leading to it.
func (self *FSUser) MkdirAll(name string) error {
	p := ""
	for _, elem := range strings.Split(name, "/") {
		if elem == "" {
			if p == "" && strings.HasPrefix(name, "/") {
				p = "/"
			}
			continue
		}
		if p == "" || strings.HasSuffix(p, "/") {
			p += elem
		} else {
			p += "/" + elem
		}
		err := self.Mkdir(p)
		if err != nil && errors.Cause(err) != fs.ErrExists {
			return err
		}
	}
	return nil
}
