/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Wed Feb 13 13:30:42 2019 mstenber
 * Last modified: Mon Feb 18 12:40:18 2019 mstenber
 * Edit time:     71 min
 *
 */

package fs

import (
	"strings"

	"github.com/fingon/go-xv6fs/mlog"
	"github.com/pkg/errors"
)

// Readlink rewrites path into an absolute path with no symbolic links
// in it by resolving it one element at a time from the root. When an
// element is a symbolic link, its target replaces it (relative
// targets are relative to the directory containing the link, absolute
// ones restart from the root) and the walk starts over. More than
// MaxSymlinkLoops substitutions fail with ErrSymlinkLoop.
//
// If resolveFinal is not set, the final element is left as is even if
// it is a symbolic link, and need not exist.
//
// Call within a transaction.
func (self *Fs) Readlink(p Proc, path string, resolveFinal bool) (string, error) {
	if path == "" {
		return "", errors.Wrapf(ErrInvalidPath, "empty path")
	}
	if !strings.HasPrefix(path, "/") {
		cwd, err := self.Getcwd(p)
		if err != nil {
			return "", err
		}
		path = cwd + "/" + path
	}
	for substitutions := 0; ; substitutions++ {
		if substitutions > MaxSymlinkLoops {
			return "", errors.Wrapf(ErrSymlinkLoop, "%q", path)
		}
		if len(path) > MAXPATH {
			return "", errors.Wrapf(ErrNameTooLong, "%q", path)
		}
		result, next, err := self.canonicalStep(path, resolveFinal)
		if err != nil {
			return "", err
		}
		if next == "" {
			if len(result) > MAXPATH {
				return "", errors.Wrapf(ErrNameTooLong, "%q", result)
			}
			return result, nil
		}
		mlog.Printf2("fs/readlink", "%q -> %q", path, next)
		path = next
	}
}

// canonicalStep walks absolute path until the end (returning the
// result) or the first symbolic link (returning the rewritten path to
// restart with).
func (self *Fs) canonicalStep(path string, resolveFinal bool) (result, next string, err error) {
	// result always ends with / while walking
	result = "/"
	rest := path
	for {
		name, r, ok := skipElem(rest)
		if !ok {
			if result != "/" {
				result = strings.TrimSuffix(result, "/")
			}
			return result, "", nil
		}
		rest = r
		candidate := result + name
		last := rest == ""
		if last && !resolveFinal {
			return candidate, "", nil
		}
		var ip *Inode
		ip, err = self.NameI(nil, candidate)
		if err != nil {
			return "", "", err
		}
		ip.Lock()
		typ := ip.Type
		var target string
		if typ == T_SYMLINK {
			target, err = ip.ReadTarget()
		}
		ip.UnlockPut()
		if err != nil {
			return "", "", err
		}
		switch typ {
		case T_DIR:
			if last {
				return candidate, "", nil
			}
			result = candidate + "/"
		case T_FILE, T_DEV:
			if last {
				return candidate, "", nil
			}
			return "", "", errors.Wrapf(ErrNotDir, "%q", candidate)
		case T_SYMLINK:
			if !strings.HasPrefix(target, "/") {
				target = result + target
			}
			if rest != "" {
				target = target + "/" + rest
			}
			return "", target, nil
		default:
			mlog.Panicf("fs/readlink", "%q has unknown type %d", candidate, typ)
		}
	}
}

// ReadTarget reads the content of the locked symbolic link.
func (self *Inode) ReadTarget() (string, error) {
	if self.Type != T_SYMLINK {
		return "", errors.Wrapf(ErrInvalidPath, "%v is not a symbolic link", self)
	}
	buf := make([]byte, MAXPATH)
	n, err := self.Read(buf, 0)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}
