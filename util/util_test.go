/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Feb  9 11:11:03 2019 mstenber
 * Last modified: Wed Feb 13 08:53:40 2019 mstenber
 * Edit time:     5 min
 *
 */

package util

import (
	"testing"

	"github.com/stvp/assert"
)

func TestCString(t *testing.T) {
	t.Parallel()
	b := make([]byte, 4)
	assert.Equal(t, PutCString(b, "ab"), 2)
	assert.Equal(t, CString(b), "ab")
	assert.Equal(t, PutCString(b, "abcdef"), 4)
	assert.Equal(t, CString(b), "abcd")
	assert.Equal(t, PutCString(b, ""), 0)
	assert.Equal(t, b, []byte{0, 0, 0, 0})
}

func TestMinMax(t *testing.T) {
	t.Parallel()
	assert.Equal(t, IMin(3, 1, 2), 1)
	assert.Equal(t, IMax(3, 1, 7), 7)
	assert.Equal(t, Uint32Bytes(258), []byte{0, 0, 1, 2})
}
