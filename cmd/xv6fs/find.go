/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 21 11:20:41 2019 mstenber
 * Last modified: Thu Feb 21 12:02:16 2019 mstenber
 * Edit time:     14 min
 *
 */

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fingon/go-xv6fs/find"
	"github.com/fingon/go-xv6fs/fs"
	"github.com/spf13/cobra"
)

func newFindCmd(self *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find path [-follow] [-name filename] [-size [+/-]n] [-type d|f|s]",
		Short: "Search for files in a directory hierarchy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, opts, err := find.ParseArgs(args)
			if err != nil {
				return err
			}
			return self.run(func(s *session) error {
				var found []entry
				err := find.Search(s.proc, root, opts, func(path string, st fs.Stat) error {
					found = append(found, newEntry(path, st))
					return nil
				})
				if err != nil {
					return err
				}
				return self.emit(cmd.OutOrStdout(), found, func(tw *tabwriter.Writer) {
					for _, e := range found {
						fmt.Fprintln(tw, e.Name)
					}
				})
			})
		},
	}
	// Predicates look like flags; everything after the path is
	// passed through.
	cmd.Flags().SetInterspersed(false)
	return cmd
}
