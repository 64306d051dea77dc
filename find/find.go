/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 19 11:02:30 2019 mstenber
 * Last modified: Tue Feb 19 14:18:44 2019 mstenber
 * Edit time:     64 min
 *
 */

// find walks directory trees looking for entries that match
// predicates on name, type and size, optionally following symbolic
// links.
package find

import (
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/pkg/errors"
)

var ErrUsage = errors.New("usage: find path [-follow] [-name filename] [-size [+/-]n] [-type d|f|s]")

type Type int

const (
	TypeAny Type = iota
	TypeDir
	TypeFile
	TypeSymlink
)

type Options struct {
	Follow bool

	// Name must match the final element exactly; empty matches
	// everything.
	Name string

	Type Type

	// MinSize and MaxSize are inclusive bounds in bytes.
	MinSize, MaxSize uint32
}

func DefaultOptions() Options {
	return Options{MaxSize: math.MaxUint32}
}

// FS is what the walk needs from the caller.
type FS interface {
	Stat(path string) (fs.Stat, error)
	Lstat(path string) (fs.Stat, error)
	ReadDir(path string) ([]fs.Dirent, error)
}

// ParseArgs parses 'path [options] [predicates]'.
func ParseArgs(args []string) (root string, opts Options, err error) {
	opts = DefaultOptions()
	if len(args) < 1 || args[0] == "-help" {
		return "", opts, ErrUsage
	}
	root = args[0]
	param := func(i int) (string, error) {
		if i+1 >= len(args) {
			return "", errors.Wrapf(ErrUsage, "missing parameter for %s", args[i])
		}
		if args[i+1] == "" {
			return "", errors.Wrapf(ErrUsage, "%s parameter cannot be empty", args[i])
		}
		return args[i+1], nil
	}
	for i := 1; i < len(args); i++ {
		var v string
		switch args[i] {
		case "-help":
			return "", opts, ErrUsage
		case "-follow":
			opts.Follow = true
			continue
		case "-name", "-size", "-type":
			v, err = param(i)
			if err != nil {
				return
			}
		default:
			return "", opts, errors.Wrapf(ErrUsage, "unrecognized argument %s", args[i])
		}
		switch args[i] {
		case "-name":
			opts.Name = v
		case "-size":
			err = opts.parseSize(v)
		case "-type":
			err = opts.parseType(v)
		}
		if err != nil {
			return
		}
		i++
	}
	return
}

func (self *Options) parseSize(v string) error {
	sign := v[0]
	if sign == '+' || sign == '-' {
		v = v[1:]
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return errors.Wrapf(ErrUsage, "size %q", v)
	}
	switch sign {
	case '+':
		if n == math.MaxUint32 {
			return errors.Wrapf(ErrUsage, "size %q", v)
		}
		self.MinSize = uint32(n) + 1
	case '-':
		if n == 0 {
			return errors.Wrapf(ErrUsage, "size -%q", v)
		}
		self.MaxSize = uint32(n) - 1
	default:
		self.MinSize = uint32(n)
		self.MaxSize = uint32(n)
	}
	return nil
}

func (self *Options) parseType(v string) error {
	switch v {
	case "d":
		self.Type = TypeDir
	case "f":
		self.Type = TypeFile
	case "s":
		self.Type = TypeSymlink
	default:
		return errors.Wrapf(ErrUsage, "unknown parameter for -type: %s", v)
	}
	return nil
}

// Match tells if entry with final element name and stat st matches.
func (self *Options) Match(name string, st fs.Stat) bool {
	if self.Name != "" && self.Name != name {
		return false
	}
	switch self.Type {
	case TypeDir:
		if st.Type != fs.T_DIR {
			return false
		}
	case TypeFile:
		if st.Type != fs.T_FILE {
			return false
		}
	case TypeSymlink:
		if st.Type != fs.T_SYMLINK {
			return false
		}
	}
	return st.Size >= self.MinSize && st.Size <= self.MaxSize
}

type inodeKey struct {
	dev, inum uint32
}

type walker struct {
	fsys FS
	opts Options
	cb   func(path string, st fs.Stat) error
	// directories being walked; loops via links end here
	active map[inodeKey]bool
}

func (self *walker) stat(p string) (fs.Stat, error) {
	if self.opts.Follow {
		st, err := self.fsys.Stat(p)
		if err == nil {
			return st, nil
		}
		// dangling link is reported as itself
		if errors.Cause(err) != fs.ErrNotFound && errors.Cause(err) != fs.ErrSymlinkLoop {
			return st, err
		}
	}
	return self.fsys.Lstat(p)
}

func (self *walker) walk(p string, st fs.Stat) error {
	if self.opts.Match(path.Base(p), st) {
		if err := self.cb(p, st); err != nil {
			return err
		}
	}
	if st.Type != fs.T_DIR {
		return nil
	}
	k := inodeKey{st.Dev, st.Inum}
	if self.active[k] {
		mlog.Printf2("find/find", "loop at %q", p)
		return nil
	}
	self.active[k] = true
	defer delete(self.active, k)
	entries, err := self.fsys.ReadDir(p)
	if err != nil {
		return err
	}
	for _, de := range entries {
		if de.Name == "." || de.Name == ".." {
			continue
		}
		child := strings.TrimSuffix(p, "/") + "/" + de.Name
		cst, err := self.stat(child)
		if err != nil {
			return err
		}
		if err = self.walk(child, cst); err != nil {
			return err
		}
	}
	return nil
}

// Search calls cb for every match below (and including) root, in
// directory order.
func Search(fsys FS, root string, opts Options, cb func(path string, st fs.Stat) error) error {
	w := &walker{fsys: fsys, opts: opts, cb: cb, active: make(map[inodeKey]bool)}
	st, err := w.stat(root)
	if err != nil {
		return err
	}
	return w.walk(root, st)
}
