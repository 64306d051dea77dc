/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 21 12:05:10 2019 mstenber
 * Last modified: Thu Feb 21 13:47:33 2019 mstenber
 * Edit time:     31 min
 *
 */

package main

import (
	"fmt"
	"io"

	"github.com/fingon/go-xv6fs/mlog"
	"github.com/fingon/go-xv6fs/proc"
	"github.com/nbutton23/zxcvbn-go"
	"github.com/spf13/cobra"
)

// Passwords scoring below this get a warning
const minPasswordScore = 3

func newProtectCmd(self *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "protect path",
		Short: "Lock file with a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score := zxcvbn.PasswordStrength(password, nil).Score
			mlog.Printf2("cmd/xv6fs/lock", "password score %d", score)
			if password != "" && score < minPasswordScore {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: weak password (score %d of 4)\n", score)
			}
			return self.run(func(s *session) error {
				return s.proc.Fprot(args[0], password)
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newUnprotectCmd(self *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "unprotect path",
		Short: "Remove password from file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.run(func(s *session) error {
				return s.proc.Funprot(args[0], password)
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	cmd.MarkFlagRequired("password")
	return cmd
}

func flockChild(p *proc.Proc, w io.Writer, path, password string) {
	defer p.Exit()
	if err := p.Funlock(path, password); err != nil {
		fmt.Fprintf(w, "child error unlocking file: %s: %v\n", path, err)
	}
	fd, err := p.Open(path, proc.O_RDONLY)
	if err != nil {
		fmt.Fprintf(w, "child error opening file: %s\n", path)
		return
	}
	defer p.Close(fd)
	buf := make([]byte, 1024)
	n, err := p.Read(fd, buf)
	if err != nil {
		fmt.Fprintf(w, "child error reading file: %s\n", path)
		return
	}
	fmt.Fprintf(w, "%s\n", buf[:n])
}

// flock protects the file, lets a forked child unlock and read it,
// and then shows the parent is still locked out.
func flock(p *proc.Proc, w io.Writer, path, password string) error {
	if err := p.Fprot(path, password); err != nil {
		return err
	}
	child, err := p.Fork()
	if err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		flockChild(child, w, path, password)
		close(done)
	}()
	<-done

	fmt.Fprintf(w, "parent opening file...\n")
	fd, err := p.Open(path, proc.O_RDONLY)
	if err != nil {
		fmt.Fprintf(w, "parent error opening file: %s\n", path)
	} else {
		p.Close(fd)
	}
	result := func(err error) string {
		if err != nil {
			return "failed"
		}
		return "ok"
	}
	fmt.Fprintf(w, "parent trying to unprotect with wrong password...\n")
	fmt.Fprintf(w, "%s\n", result(p.Funprot(path, "wrong")))
	fmt.Fprintf(w, "parent trying to unprotect with correct password...\n")
	fmt.Fprintf(w, "%s\n", result(p.Funprot(path, password)))
	return nil
}

func newFlockCmd(self *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flock password path",
		Short: "Demonstrate password locks with a forked child",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return self.run(func(s *session) error {
				return flock(s.proc, cmd.OutOrStdout(), args[1], args[0])
			})
		},
	}
}
