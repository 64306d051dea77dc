/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Wed Feb 13 10:02:51 2019 mstenber
 * Last modified: Mon Feb 18 12:11:40 2019 mstenber
 * Edit time:     58 min
 *
 */

package fs

import (
	"strings"

	"github.com/pkg/errors"
)

// Proc is the calling process as far as path names are concerned.
type Proc interface {
	Pid() int
	// Cwd returns new reference to the current directory, which the
	// caller Puts; nil means root.
	Cwd() *Inode
}

// skipElem splits the first element off path:
//
//   skipElem("a/bb/c") = "a", "bb/c", true
//   skipElem("///a//bb") = "a", "bb", true
//   skipElem("a") = "a", "", true
//   skipElem("") = skipElem("////") = "", "", false
//
// Elements longer than DIRSIZ are truncated.
func skipElem(path string) (elem, rest string, ok bool) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", "", false
	}
	i := strings.IndexByte(path, '/')
	if i < 0 {
		i = len(path)
	}
	elem = path[:i]
	if len(elem) > DIRSIZ {
		elem = elem[:DIRSIZ]
	}
	return elem, strings.TrimLeft(path[i:], "/"), true
}

func (self *Fs) startInode(p Proc, path string) *Inode {
	if !strings.HasPrefix(path, "/") && p != nil {
		if cwd := p.Cwd(); cwd != nil {
			return cwd
		}
	}
	return self.IGet(ROOTDEV, ROOTINO)
}

// namex walks path. If parent is set, it stops one level early and
// returns the parent directory plus the final element.
func (self *Fs) namex(p Proc, path string, parent bool) (*Inode, string, error) {
	ip := self.startInode(p, path)
	for {
		name, rest, ok := skipElem(path)
		if !ok {
			break
		}
		path = rest
		ip.Lock()
		if ip.Type != T_DIR {
			ip.UnlockPut()
			return nil, "", errors.Wrapf(ErrNotDir, "at %q", name)
		}
		if parent && path == "" {
			ip.Unlock()
			return ip, name, nil
		}
		next, _, err := ip.DirLookup(name)
		ip.UnlockPut()
		if err != nil {
			return nil, "", err
		}
		ip = next
	}
	if parent {
		ip.Put()
		return nil, "", errors.Wrapf(ErrInvalidPath, "no final element")
	}
	return ip, "", nil
}

// NameI resolves path to a referenced, unlocked inode. Relative paths
// start from p's current directory. Call within a transaction; the
// walk drops references.
func (self *Fs) NameI(p Proc, path string) (*Inode, error) {
	if path == "" {
		return nil, ErrNotFound
	}
	ip, _, err := self.namex(p, path, false)
	return ip, err
}

// NameIParent resolves the parent directory of path, returning it
// with the final element name.
func (self *Fs) NameIParent(p Proc, path string) (*Inode, string, error) {
	return self.namex(p, path, true)
}

// nameOf finds the entry name of inum in the locked directory dp.
func (self *Inode) nameOf(inum uint32) (string, error) {
	entries, err := self.DirEntries()
	if err != nil {
		return "", err
	}
	for _, de := range entries {
		if uint32(de.Inum) == inum && de.Name != "." && de.Name != ".." {
			return de.Name, nil
		}
	}
	return "", errors.Wrapf(ErrNotFound, "inode %d in %v", inum, self)
}

// Getcwd returns the absolute path of p's current directory by
// walking .. up to the root.
func (self *Fs) Getcwd(p Proc) (string, error) {
	ip := self.startInode(p, "")
	var names []string
	for {
		if ip.Dev == ROOTDEV && ip.Inum == ROOTINO {
			ip.Put()
			break
		}
		ip.Lock()
		parent, _, err := ip.DirLookup("..")
		inum := ip.Inum
		ip.UnlockPut()
		if err != nil {
			return "", err
		}
		parent.Lock()
		name, err := parent.nameOf(inum)
		parent.Unlock()
		if err != nil {
			parent.Put()
			return "", err
		}
		names = append(names, name)
		ip = parent
		if len(names) > MAXPATH {
			ip.Put()
			return "", ErrNameTooLong
		}
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return "/" + strings.Join(names, "/"), nil
}
