/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 21 09:55:30 2019 mstenber
 * Last modified: Thu Feb 21 12:20:19 2019 mstenber
 * Edit time:     19 min
 *
 */

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fingon/go-xv6fs/fs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/spf13/cobra"
)

type imageInfo struct {
	UUID       string `json:"uuid" yaml:"uuid"`
	Backend    string `json:"backend" yaml:"backend"`
	Image      string `json:"image" yaml:"image"`
	Size       uint32 `json:"size" yaml:"size"`
	DataBlocks uint32 `json:"data_blocks" yaml:"data_blocks"`
	FreeBlocks uint32 `json:"free_blocks" yaml:"free_blocks"`
	Inodes     uint32 `json:"inodes" yaml:"inodes"`
	LogStart   uint32 `json:"log_start" yaml:"log_start"`
	LogSize    uint32 `json:"log_size" yaml:"log_size"`
}

func (self *app) info(cmd *cobra.Command) error {
	return self.run(func(s *session) error {
		sb := s.fs.ReadSuper(fs.ROOTDEV)
		info := imageInfo{UUID: sb.UUID.String(), Backend: self.conf.Backend,
			Image: self.conf.Image, Size: sb.Size, DataBlocks: sb.NBlocks,
			FreeBlocks: s.fs.FreeBlocks(fs.ROOTDEV), Inodes: sb.NInodes,
			LogStart: sb.LogStart, LogSize: sb.NLog}
		return self.emit(cmd.OutOrStdout(), info, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "uuid\t%s\n", info.UUID)
			fmt.Fprintf(tw, "image\t%s (%s)\n", info.Image, info.Backend)
			fmt.Fprintf(tw, "size\t%d\n", info.Size)
			fmt.Fprintf(tw, "data blocks\t%d\n", info.DataBlocks)
			fmt.Fprintf(tw, "free blocks\t%d\n", info.FreeBlocks)
			fmt.Fprintf(tw, "inodes\t%d\n", info.Inodes)
			fmt.Fprintf(tw, "log\t%d@%d\n", info.LogSize, info.LogStart)
		})
	})
}

func newMkfsCmd(self *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkfs",
		Short: "Format the image with an empty file system",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := self.conf.OpenDevice()
			if err != nil {
				return err
			}
			_, err = fs.Mkfs(dev, self.conf.MkfsParams())
			if cerr := dev.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			mlog.Printf2("cmd/xv6fs/image", "formatted %s", self.conf.Image)
			return self.info(cmd)
		},
	}
}

func newInfoCmd(self *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the superblock and usage of the image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.info(cmd)
		},
	}
}
