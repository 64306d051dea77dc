/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 21 13:50:44 2019 mstenber
 * Last modified: Thu Feb 21 14:20:57 2019 mstenber
 * Edit time:     9 min
 *
 */

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fingon/go-xv6fs/fusefs"
	"github.com/fingon/go-xv6fs/mlog"
	"github.com/spf13/cobra"
)

func newMountCmd(self *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mount mountpoint",
		Short: "Serve the image read-only over FUSE until unmounted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.run(func(s *session) error {
				server, err := fusefs.Mount(args[0], s.proc)
				if err != nil {
					return err
				}
				sigs := make(chan os.Signal, 1)
				signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
				defer func() {
					signal.Stop(sigs)
					close(sigs)
				}()
				go func() {
					if _, ok := <-sigs; ok {
						mlog.Printf2("cmd/xv6fs/mount", "unmounting %s", args[0])
						server.Unmount()
					}
				}()
				server.Serve()
				return nil
			})
		},
	}
}
