/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 21 09:40:55 2019 mstenber
 * Last modified: Thu Feb 21 11:12:08 2019 mstenber
 * Edit time:     24 min
 *
 */

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("unknown output format")

// emit writes v in the chosen format; table output is produced by
// the table callback.
func (self *app) emit(w io.Writer, v interface{}, table func(tw *tabwriter.Writer)) error {
	switch self.output {
	case "table":
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	case "json":
		h := &codec.JsonHandle{}
		h.Indent = 2
		if err := codec.NewEncoder(w, h).Encode(v); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w)
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return errors.Wrapf(ErrUnknownFormat, "%q", self.output)
}
