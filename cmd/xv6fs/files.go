/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 21 10:14:02 2019 mstenber
 * Last modified: Thu Feb 21 14:02:51 2019 mstenber
 * Edit time:     48 min
 *
 */

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/proc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type entry struct {
	Name  string `json:"name" yaml:"name"`
	Type  string `json:"type" yaml:"type"`
	Inum  uint32 `json:"ino" yaml:"ino"`
	Nlink int16  `json:"nlink" yaml:"nlink"`
	Size  uint32 `json:"size" yaml:"size"`
}

func newEntry(name string, st fs.Stat) entry {
	return entry{Name: name, Type: st.Type.String(), Inum: st.Inum,
		Nlink: st.Nlink, Size: st.Size}
}

func join(dir, name string) string {
	if strings.HasSuffix(dir, "/") {
		return dir + name
	}
	return dir + "/" + name
}

func list(p *proc.Proc, path string) ([]entry, error) {
	st, err := p.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.Type != fs.T_DIR {
		return []entry{newEntry(path, st)}, nil
	}
	dirents, err := p.ReadDir(path)
	if err != nil {
		return nil, err
	}
	ret := make([]entry, 0, len(dirents))
	for _, de := range dirents {
		st, err := p.Lstat(join(path, de.Name))
		if err != nil {
			return nil, err
		}
		ret = append(ret, newEntry(de.Name, st))
	}
	return ret, nil
}

func newLsCmd(self *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path...]",
		Short: "List directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"/"}
			}
			return self.run(func(s *session) error {
				var all []entry
				for _, path := range args {
					l, err := list(s.proc, path)
					if err != nil {
						return err
					}
					all = append(all, l...)
				}
				return self.emit(cmd.OutOrStdout(), all, func(tw *tabwriter.Writer) {
					for _, e := range all {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
							e.Name, e.Type, e.Inum, e.Nlink, e.Size)
					}
				})
			})
		},
	}
}

// copyOut writes content of fd to w.
func copyOut(p *proc.Proc, fd int, w io.Writer) error {
	buf := make([]byte, fs.BSIZE)
	for {
		n, err := p.Read(fd, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func newCatCmd(self *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "cat path...",
		Short: "Print files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.run(func(s *session) error {
				p := s.proc
				for _, path := range args {
					if password != "" {
						if err := p.Funlock(path, password); err != nil {
							return err
						}
					}
					fd, err := p.Open(path, proc.O_RDONLY)
					if err != nil {
						return err
					}
					err = copyOut(p, fd, cmd.OutOrStdout())
					p.Close(fd)
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "unlock protected files with password")
	return cmd
}

func newPutCmd(self *app) *cobra.Command {
	var appendTo bool
	cmd := &cobra.Command{
		Use:   "put path",
		Short: "Store standard input as a new file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			path := args[0]
			return self.run(func(s *session) error {
				p := s.proc
				_, err := p.Lstat(path)
				if err == nil && !appendTo {
					return errors.Wrapf(fs.ErrExists, "%q", path)
				}
				fd, err := p.Open(path, proc.O_CREATE|proc.O_WRONLY)
				if err != nil {
					return err
				}
				defer p.Close(fd)
				st, err := p.Fstat(fd)
				if err != nil {
					return err
				}
				if err = p.Seek(fd, st.Size); err != nil {
					return err
				}
				_, err = p.Write(fd, data)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&appendTo, "append", "a", false, "append to existing file")
	return cmd
}

func mkdirAll(p *proc.Proc, path string) error {
	cur := ""
	if strings.HasPrefix(path, "/") {
		cur = "/"
	}
	for _, name := range strings.Split(path, "/") {
		if name == "" {
			continue
		}
		if cur == "" {
			cur = name
		} else {
			cur = join(cur, name)
		}
		st, err := p.Stat(cur)
		if err == nil {
			if st.Type != fs.T_DIR {
				return errors.Wrapf(fs.ErrNotDir, "%q", cur)
			}
			continue
		}
		if errors.Cause(err) != fs.ErrNotFound {
			return err
		}
		if err = p.Mkdir(cur); err != nil {
			return err
		}
	}
	return nil
}

func newMkdirCmd(self *app) *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir path...",
		Short: "Create directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.run(func(s *session) error {
				for _, path := range args {
					var err error
					if parents {
						err = mkdirAll(s.proc, path)
					} else {
						err = s.proc.Mkdir(path)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parents too")
	return cmd
}

func newRmCmd(self *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm path...",
		Short: "Remove files, links and empty directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.run(func(s *session) error {
				for _, path := range args {
					if err := s.proc.Unlink(path); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newLnCmd(self *app) *cobra.Command {
	var symbolic bool
	cmd := &cobra.Command{
		Use:   "ln target path",
		Short: "Create hard or symbolic links",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.run(func(s *session) error {
				if symbolic {
					return s.proc.Symlink(args[0], args[1])
				}
				return s.proc.Link(args[0], args[1])
			})
		},
	}
	cmd.Flags().BoolVarP(&symbolic, "symbolic", "s", false, "create symbolic link")
	return cmd
}

func newReadlinkCmd(self *app) *cobra.Command {
	var canonicalize, length bool
	cmd := &cobra.Command{
		Use:   "readlink path",
		Short: "Print symbolic link target",
		Long: `Print the target of a symbolic link, or with -f the path with
every symbolic link resolved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.run(func(s *session) error {
				var result string
				var err error
				if canonicalize {
					result, err = s.proc.Readlink(args[0], true)
				} else {
					result, err = s.proc.Target(args[0])
				}
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if length {
					fmt.Fprintln(w, len(result))
				}
				fmt.Fprintln(w, result)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&canonicalize, "canonicalize", "f", false, "resolve every link")
	cmd.Flags().BoolVarP(&length, "length", "n", false, "print the length first")
	return cmd
}
