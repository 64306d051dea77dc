/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 21 12:40:18 2019 mstenber
 * Last modified: Thu Feb 21 14:10:02 2019 mstenber
 * Edit time:     27 min
 *
 */

package main

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/proc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const kilobyte = 1024

var ErrVerify = errors.New("read back different data")

type largeResult struct {
	Path      string `json:"path" yaml:"path"`
	Kilobytes int    `json:"kilobytes" yaml:"kilobytes"`
	Size      uint32 `json:"size" yaml:"size"`
}

func pattern(path string, i int) []byte {
	return bytes.Repeat([]byte{byte(len(path) + i)}, kilobyte)
}

// writeLarge writes kilobytes one kilobyte at a time and reads the
// file back.
func writeLarge(p *proc.Proc, path string, kilobytes int) (res largeResult, err error) {
	fd, err := p.Open(path, proc.O_CREATE|proc.O_RDWR)
	if err != nil {
		return
	}
	defer p.Close(fd)
	for i := 0; i < kilobytes; i++ {
		if _, err = p.Write(fd, pattern(path, i)); err != nil {
			err = errors.Wrapf(err, "%s after %d kilobytes", path, i)
			return
		}
		mlog.Printf2("cmd/xv6fs/large", "%s: wrote %d kilobytes", path, i+1)
	}
	if err = p.Seek(fd, 0); err != nil {
		return
	}
	buf := make([]byte, kilobyte)
	for i := 0; i < kilobytes; i++ {
		got := 0
		for got < kilobyte {
			var n int
			n, err = p.Read(fd, buf[got:])
			if err != nil {
				return
			}
			if n == 0 {
				err = errors.Wrapf(ErrVerify, "%s truncated at %d kilobytes", path, i)
				return
			}
			got += n
		}
		if !bytes.Equal(buf, pattern(path, i)) {
			err = errors.Wrapf(ErrVerify, "%s kilobyte %d", path, i)
			return
		}
	}
	st, err := p.Fstat(fd)
	if err != nil {
		return
	}
	return largeResult{Path: path, Kilobytes: kilobytes, Size: st.Size}, nil
}

func newLargeCmd(self *app) *cobra.Command {
	var writers, kilobytes int
	cmd := &cobra.Command{
		Use:   "large [path]",
		Short: "Write and verify large files",
		Long: `Write large files one kilobyte at a time from forked processes,
and read them back. With more than one writer, each writer gets its
own file with the writer index as suffix.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/large_file"
			if len(args) > 0 {
				path = args[0]
			}
			return self.run(func(s *session) error {
				results := make([]largeResult, writers)
				var g errgroup.Group
				for i := 0; i < writers; i++ {
					i := i
					child, err := s.proc.Fork()
					if err != nil {
						g.Wait()
						return err
					}
					p := path
					if writers > 1 {
						p = fmt.Sprintf("%s.%d", path, i)
					}
					g.Go(func() (err error) {
						defer child.Exit()
						results[i], err = writeLarge(child, p, kilobytes)
						return
					})
				}
				if err := g.Wait(); err != nil {
					return err
				}
				return self.emit(cmd.OutOrStdout(), results, func(tw *tabwriter.Writer) {
					for _, r := range results {
						fmt.Fprintf(tw, "%s\t%d kilobytes\t%d bytes\n",
							r.Path, r.Kilobytes, r.Size)
					}
				})
			})
		},
	}
	cmd.Flags().IntVarP(&writers, "writers", "w", 1, "concurrent writers")
	cmd.Flags().IntVarP(&kilobytes, "kilobytes", "k", 1024, "kilobytes per file")
	return cmd
}
