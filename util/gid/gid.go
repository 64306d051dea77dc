/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Feb  9 10:20:12 2019 mstenber
 * Last modified: Sat Feb  9 10:31:40 2019 mstenber
 * Edit time:     6 min
 *
 */

// gid extracts the current goroutine id for trace output. Go does not
// expose it, so it is parsed from the first line of runtime.Stack
// ("goroutine 42 [running]:").
package gid

import (
	"bytes"
	"runtime"
	"strconv"
)

var prefix = []byte("goroutine ")

func GetGoroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	if !bytes.HasPrefix(b, prefix) {
		return 0
	}
	b = b[len(prefix):]
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	n, _ := strconv.ParseUint(string(b), 10, 64)
	return n
}
