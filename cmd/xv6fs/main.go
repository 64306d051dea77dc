/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 21 09:02:13 2019 mstenber
 * Last modified: Thu Feb 21 14:31:40 2019 mstenber
 * Edit time:     96 min
 *
 */

// xv6fs manipulates file system images from the host side: it formats
// them, inspects and modifies them through the same system calls the
// kernel processes use, and can serve them read-only over FUSE.
package main

import (
	"fmt"
	"os"

	"github.com/fingon/go-xv6fs/config"
	"github.com/fingon/go-xv6fs/file"
	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/proc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	v          *viper.Viper
	conf       *config.Config
	configPath string
	pattern    string
	output     string
}

// session is the mounted image with one process running on it.
type session struct {
	fs    *fs.Fs
	procs *proc.Table
	proc  *proc.Proc
}

func (self *app) boot() (*session, error) {
	dev, err := self.conf.OpenDevice()
	if err != nil {
		return nil, err
	}
	f, err := fs.Mount(dev, self.conf.FsOptions())
	if err != nil {
		dev.Close()
		return nil, err
	}
	procs := proc.NewTable(file.NewTable(f, 0))
	p, err := procs.Spawn()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &session{fs: f, procs: procs, proc: p}, nil
}

func (self *session) Close() error {
	self.proc.Exit()
	return self.fs.Close()
}

// run boots the image for the duration of cb.
func (self *app) run(cb func(s *session) error) error {
	s, err := self.boot()
	if err != nil {
		return err
	}
	err = cb(s)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd() *cobra.Command {
	self := &app{v: config.New()}
	cmd := &cobra.Command{
		Use:   "xv6fs",
		Short: "Tool for xv6 file system images",
		Long: `xv6fs formats and manipulates xv6 file system images.

Settings come from xv6fs.yaml (in . or $HOME/.xv6fs, or --config),
XV6FS_ prefixed environment variables and the flags below.

Examples:
  xv6fs mkfs --image fs.img --blocks 8192
  echo hello | xv6fs put /hello
  xv6fs protect /hello --password correct-horse
  xv6fs cat /hello --password correct-horse
  xv6fs find / -type f -size +4`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if self.pattern != "" {
				mlog.SetPattern(self.pattern)
			}
			conf, err := config.Load(self.v, self.configPath)
			if err != nil {
				return err
			}
			self.conf = conf
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&self.configPath, "config", "", "configuration file")
	flags.StringVar(&self.pattern, "mlog", "", "enable tracing for tags matching the regular expression")
	flags.StringVarP(&self.output, "output", "o", "table", "output format (table, json, yaml)")
	flags.StringP("backend", "b", self.v.GetString("backend"), "storage backend")
	flags.StringP("image", "i", self.v.GetString("image"), "image file (or directory of key-value backends)")
	flags.Uint32("blocks", self.v.GetUint32("blocks"), "size of new images in blocks")
	flags.Uint32("inodes", self.v.GetUint32("inodes"), "inodes of new file systems")
	flags.Uint32("log-size", self.v.GetUint32("log_size"), "log blocks of new file systems")
	flags.Int("cache-blocks", self.v.GetInt("cache_blocks"), "blocks cached in front of the backend")
	flags.Int("bcrypt-cost", self.v.GetInt("bcrypt_cost"), "bcrypt cost of new file passwords")
	flags.String("codec-password", "", "encrypt blocks of key-value backends with this password")
	flags.Bool("compress", false, "compress blocks of key-value backends")
	for key, name := range map[string]string{
		"backend":      "backend",
		"image":        "image",
		"blocks":       "blocks",
		"inodes":       "inodes",
		"log_size":     "log-size",
		"cache_blocks": "cache-blocks",
		"bcrypt_cost":  "bcrypt-cost",
		"password":     "codec-password",
		"compress":     "compress",
	} {
		self.v.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(
		newMkfsCmd(self),
		newInfoCmd(self),
		newLsCmd(self),
		newCatCmd(self),
		newPutCmd(self),
		newMkdirCmd(self),
		newRmCmd(self),
		newLnCmd(self),
		newReadlinkCmd(self),
		newFindCmd(self),
		newProtectCmd(self),
		newUnprotectCmd(self),
		newFlockCmd(self),
		newLargeCmd(self),
		newMountCmd(self),
	)
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
