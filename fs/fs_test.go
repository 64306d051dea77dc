/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Feb 14 09:02:11 2019 mstenber
 * Last modified: Mon Feb 18 16:31:40 2019 mstenber
 * Edit time:     97 min
 *
 */

package fs

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/fingon/go-xv6fs/storage"
	"github.com/fingon/go-xv6fs/storage/inmemory"
	"github.com/pkg/errors"
	"github.com/stvp/assert"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

type testProc struct {
	pid int
	cwd *Inode
}

func (self *testProc) Pid() int {
	return self.pid
}

func (self *testProc) Cwd() *Inode {
	if self.cwd == nil {
		return nil
	}
	return self.cwd.Dup()
}

func ProdDevice(t *testing.T) storage.Device {
	dev := inmemory.NewInMemoryDevice(storage.BackendConfiguration{Blocks: 4096})
	_, err := Mkfs(dev, MkfsParams{})
	assert.Nil(t, err)
	return dev
}

func ProdFs(t *testing.T) *Fs {
	f, err := Mount(ProdDevice(t), Options{PasswordCost: bcrypt.MinCost})
	assert.Nil(t, err)
	return f
}

func assertPanics(t *testing.T, cb func()) {
	defer func() {
		assert.True(t, recover() != nil)
	}()
	cb()
}

// create makes path of type typ with content; for symlinks the
// content is the target.
func create(f *Fs, p Proc, path string, typ InodeType, content string) (inum uint32, err error) {
	f.Transaction(func() {
		var dp *Inode
		var name string
		dp, name, err = f.NameIParent(p, path)
		if err != nil {
			return
		}
		dp.Lock()
		defer dp.UnlockPut()
		ip := f.IAlloc(dp.Dev, typ)
		ip.Lock()
		defer ip.UnlockPut()
		if typ == T_DIR {
			if err = ip.DirLink(".", ip.Inum); err != nil {
				return
			}
			if err = ip.DirLink("..", dp.Inum); err != nil {
				return
			}
		}
		if content != "" {
			if _, err = ip.Write([]byte(content), 0); err != nil {
				return
			}
		}
		if err = dp.DirLink(name, ip.Inum); err != nil {
			return
		}
		ip.Nlink = 1
		ip.Update()
		if typ == T_DIR {
			dp.Nlink++
			dp.Update()
		}
		inum = ip.Inum
	})
	return
}

func prodCreate(t *testing.T, f *Fs, path string, typ InodeType, content string) uint32 {
	inum, err := create(f, nil, path, typ, content)
	assert.Nil(t, err)
	return inum
}

func readAll(f *Fs, p Proc, path string) (s string, err error) {
	f.Transaction(func() {
		var ip *Inode
		ip, err = f.NameI(p, path)
		if err != nil {
			return
		}
		ip.Lock()
		defer ip.UnlockPut()
		buf := make([]byte, ip.Size)
		var n int
		n, err = ip.Read(buf, 0)
		s = string(buf[:n])
	})
	return
}

func TestMount(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	sb := f.ReadSuper(ROOTDEV)
	assert.Equal(t, sb.Size, uint32(4096))
	assert.Equal(t, sb.NInodes, uint32(NEXEMPT))
	assert.Equal(t, sb.LogStart+sb.NLog, sb.Size)

	ip := f.IGet(ROOTDEV, ROOTINO)
	ip.Lock()
	st := ip.Stat()
	entries, err := ip.DirEntries()
	ip.Unlock()
	f.Transaction(ip.Put)
	assert.Equal(t, st.Type, T_DIR)
	assert.Equal(t, st.Size, uint32(2*DirentSize))
	assert.Nil(t, err)
	assert.Equal(t, len(entries), 2)
	assert.Equal(t, entries[1], Dirent{Inum: ROOTINO, Name: ".."})
	assert.Equal(t, f.InodesInUse(), 0)
}

func TestMountGarbage(t *testing.T) {
	t.Parallel()
	dev := inmemory.NewInMemoryDevice(storage.BackendConfiguration{Blocks: 128})
	_, err := Mount(dev, Options{})
	assert.Equal(t, errors.Cause(err), ErrBadSuperblock)
}

func TestMkfsInodeLimit(t *testing.T) {
	t.Parallel()
	dev := inmemory.NewInMemoryDevice(storage.BackendConfiguration{Blocks: 4096})
	_, err := Mkfs(dev, MkfsParams{Inodes: 2 * NEXEMPT})
	assert.Equal(t, errors.Cause(err), ErrTooManyInodes)
	sb, err := Mkfs(dev, MkfsParams{Inodes: NEXEMPT})
	assert.Nil(t, err)
	assert.Equal(t, sb.NInodes, uint32(NEXEMPT))

	// image formatted with more inodes elsewhere is refused at mount
	buf := make([]byte, BSIZE)
	assert.Nil(t, dev.ReadBlock(superBlockNo, buf))
	sb.decode(buf)
	sb.NInodes = 2 * NEXEMPT
	sb.encode(buf)
	assert.Nil(t, dev.WriteBlock(superBlockNo, buf))
	_, err = Mount(dev, Options{})
	assert.Equal(t, errors.Cause(err), ErrBadSuperblock)
}

func TestBalloc(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	free := f.FreeBlocks(ROOTDEV)
	var b1, b2 uint32
	f.Transaction(func() {
		b1 = f.balloc(ROOTDEV)
		b2 = f.balloc(ROOTDEV)
	})
	assert.True(t, b1 != b2)
	assert.True(t, f.blockInUse(ROOTDEV, b1))
	assert.Equal(t, f.FreeBlocks(ROOTDEV), free-2)
	f.Transaction(func() {
		f.bfree(ROOTDEV, b1)
		f.bfree(ROOTDEV, b2)
	})
	assert.True(t, !f.blockInUse(ROOTDEV, b1))
	assert.Equal(t, f.FreeBlocks(ROOTDEV), free)
	assertPanics(t, func() {
		f.Begin()
		f.bfree(ROOTDEV, b1)
	})
}

func TestIGetPut(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	ip := f.IGet(ROOTDEV, ROOTINO)
	ip2 := f.IGet(ROOTDEV, ROOTINO)
	assert.True(t, ip == ip2)
	assert.Equal(t, ip.Refs(), 2)
	ip3 := ip.Dup()
	assert.Equal(t, ip.Refs(), 3)
	assert.Equal(t, f.InodesInUse(), 1)
	f.Transaction(func() {
		ip.Put()
		ip2.Put()
		ip3.Put()
	})
	assert.Equal(t, f.InodesInUse(), 0)
	assertPanics(t, func() {
		ip.Lock()
	})
}

func TestIGetExhaustion(t *testing.T) {
	t.Parallel()
	dev := ProdDevice(t)
	f, err := Mount(dev, Options{Inodes: 3})
	assert.Nil(t, err)
	for i := uint32(1); i <= 3; i++ {
		f.IGet(ROOTDEV, i)
	}
	assertPanics(t, func() {
		f.IGet(ROOTDEV, 4)
	})
}

func TestReleaseFreesContent(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	free := f.FreeBlocks(ROOTDEV)
	var inum uint32
	f.Transaction(func() {
		ip := f.IAlloc(ROOTDEV, T_FILE)
		inum = ip.Inum
		ip.Lock()
		n, err := ip.Write(bytes.Repeat([]byte("x"), 3*BSIZE), 0)
		assert.Nil(t, err)
		assert.Equal(t, n, 3*BSIZE)
		ip.Unlock()
		assert.Equal(t, f.FreeBlocks(ROOTDEV), free-3)
		// no links; the last put frees it
		ip.Put()
	})
	assert.Equal(t, f.FreeBlocks(ROOTDEV), free)
	assert.Equal(t, f.InodesInUse(), 0)
	f.Transaction(func() {
		ip := f.IAlloc(ROOTDEV, T_FILE)
		assert.Equal(t, ip.Inum, inum)
		ip.Put()
	})
}

func TestBmap(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	free := f.FreeBlocks(ROOTDEV)
	var ip *Inode
	f.Transaction(func() {
		ip = f.IAlloc(ROOTDEV, T_FILE)
		ip.Lock()
		for _, bn := range []uint32{0, NDIRECT - 1, NDIRECT, NDIRECT + NINDIRECT - 1,
			NDIRECT + NINDIRECT, NDIRECT + NINDIRECT + 4242} {
			a := ip.bmap(bn)
			assert.True(t, a != 0)
			assert.Equal(t, ip.bmap(bn), a)
			assert.True(t, f.blockInUse(ROOTDEV, a))
		}
		ip.Update()
		ip.Unlock()
	})
	// 6 data blocks, 1 indirect, double indirect + 2 middle blocks
	assert.Equal(t, f.FreeBlocks(ROOTDEV), free-10)
	assertPanics(t, func() {
		ip.Lock()
		defer ip.Unlock()
		ip.bmap(MAXFILE)
	})

	var old uint32
	f.Transaction(func() {
		ip.Lock()
		old = ip.bmap(0)
		ip.trunc()
		assert.Equal(t, ip.Size, uint32(0))
		assert.Equal(t, ip.Indirect2, uint32(0))
		assert.True(t, !f.blockInUse(ROOTDEV, old))
		ip.Unlock()
	})
	assert.Equal(t, f.FreeBlocks(ROOTDEV), free)
	f.Transaction(func() {
		ip.Lock()
		a := ip.bmap(0)
		assert.True(t, a != 0)
		assert.True(t, f.blockInUse(ROOTDEV, a))
		ip.Update()
		ip.UnlockPut()
	})
	assert.Equal(t, f.FreeBlocks(ROOTDEV), free)
}

func TestReadWrite(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	free := f.FreeBlocks(ROOTDEV)
	size := (NDIRECT + NINDIRECT + 10) * BSIZE
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7 / 5)
	}
	var ip *Inode
	f.Transaction(func() {
		ip = f.IAlloc(ROOTDEV, T_FILE)
	})
	batch := f.MaxWriteBatch()
	for off := 0; off < size; off += batch {
		end := off + batch
		if end > size {
			end = size
		}
		f.Transaction(func() {
			ip.Lock()
			n, err := ip.Write(data[off:end], uint32(off))
			ip.Unlock()
			assert.Nil(t, err)
			assert.Equal(t, n, end-off)
		})
	}
	ip.Lock()
	assert.Equal(t, ip.Size, uint32(size))
	assert.True(t, ip.Indirect2 != 0)
	got := make([]byte, size+100)
	n, err := ip.Read(got, 0)
	assert.Nil(t, err)
	assert.Equal(t, n, size)
	assert.True(t, bytes.Equal(got[:n], data))

	n, err = ip.Read(got, uint32(size-10))
	assert.Nil(t, err)
	assert.Equal(t, n, 10)
	n, err = ip.Read(got, uint32(size))
	assert.Nil(t, err)
	assert.Equal(t, n, 0)
	n, err = ip.Read(got, 0xffffffff)
	assert.Equal(t, errors.Cause(err), ErrInvalidOffset)

	f.Transaction(func() {
		_, err = ip.Write([]byte("x"), uint32(size+1))
		assert.Equal(t, errors.Cause(err), ErrInvalidOffset)
		_, err = ip.Write(make([]byte, 2*BSIZE), MAXFILE*BSIZE-BSIZE)
		assert.True(t, err != nil)
	})
	ip.Unlock()
	f.Transaction(ip.Put)
	assert.Equal(t, f.FreeBlocks(ROOTDEV), free)
}

func TestFileTooLarge(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	f.Transaction(func() {
		ip := f.IAlloc(ROOTDEV, T_FILE)
		ip.Lock()
		// pretend it is full already
		ip.Size = MAXFILE * BSIZE
		_, err := ip.Write([]byte("x"), ip.Size)
		assert.Equal(t, errors.Cause(err), ErrFileTooLarge)
		ip.Size = 0
		ip.UnlockPut()
	})
}

func TestMaxWriteBatch(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	assert.Equal(t, f.MaxWriteBatch(), 5*BSIZE)
}

func TestDir(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	inum := prodCreate(t, f, "/foo", T_FILE, "")
	_, err := create(f, nil, "/foo", T_FILE, "")
	assert.Equal(t, errors.Cause(err), ErrExists)

	prodCreate(t, f, "/abcdefghijklmnopqrstu", T_FILE, "")
	f.Transaction(func() {
		dp := f.IGet(ROOTDEV, ROOTINO)
		dp.Lock()
		defer dp.UnlockPut()
		ip, off, err := dp.DirLookup("foo")
		assert.Nil(t, err)
		assert.Equal(t, ip.Inum, inum)
		assert.Equal(t, off, uint32(2*DirentSize))
		ip.Put()

		ip, _, err = dp.DirLookup("abcdefghijklmnXXX")
		assert.Nil(t, err)
		ip.Put()

		_, _, err = dp.DirLookup("bar")
		assert.Equal(t, errors.Cause(err), ErrNotFound)
		assert.True(t, !dp.DirIsEmpty())

		entries, err := dp.DirEntries()
		assert.Nil(t, err)
		assert.Equal(t, len(entries), 4)
		assert.Equal(t, entries[3].Name, "abcdefghijklmn")

		// freed slot is reused
		dp.DirUnlink(off)
		assert.Nil(t, dp.DirLink("bar", inum))
		ip, off2, err := dp.DirLookup("bar")
		assert.Nil(t, err)
		assert.Equal(t, ip.Inum, inum)
		assert.Equal(t, off2, off)
		ip.Put()
	})
}

func TestSkipElem(t *testing.T) {
	t.Parallel()
	for _, c := range []struct {
		path, elem, rest string
		ok               bool
	}{
		{"a/bb/c", "a", "bb/c", true},
		{"///a//bb", "a", "bb", true},
		{"a", "a", "", true},
		{"a/", "a", "", true},
		{"", "", "", false},
		{"////", "", "", false},
		{"/abcdefghijklmnopq/x", "abcdefghijklmn", "x", true},
	} {
		elem, rest, ok := skipElem(c.path)
		assert.Equal(t, elem, c.elem, c.path)
		assert.Equal(t, rest, c.rest, c.path)
		assert.Equal(t, ok, c.ok, c.path)
	}
}

func TestNameI(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	d := prodCreate(t, f, "/d", T_DIR, "")
	a := prodCreate(t, f, "/d/a", T_FILE, "hello")
	f.Transaction(func() {
		for _, c := range []struct {
			path string
			inum uint32
			err  error
		}{
			{"/", ROOTINO, nil},
			{"/d", d, nil},
			{"d", d, nil},
			{"/d/a", a, nil},
			{"/d/./a", a, nil},
			{"/d/../d//a", a, nil},
			{"/d/a/x", 0, ErrNotDir},
			{"/d/b", 0, ErrNotFound},
			{"", 0, ErrNotFound},
		} {
			ip, err := f.NameI(nil, c.path)
			assert.Equal(t, errors.Cause(err), c.err, c.path)
			if err == nil {
				assert.Equal(t, ip.Inum, c.inum, c.path)
				ip.Put()
			}
		}
		dp, name, err := f.NameIParent(nil, "/d/a")
		assert.Nil(t, err)
		assert.Equal(t, dp.Inum, d)
		assert.Equal(t, name, "a")
		dp.Put()
		_, _, err = f.NameIParent(nil, "/")
		assert.Equal(t, errors.Cause(err), ErrInvalidPath)
	})
	assert.Equal(t, f.InodesInUse(), 0)
	s, err := readAll(f, nil, "/d/a")
	assert.Nil(t, err)
	assert.Equal(t, s, "hello")
}

func TestGetcwd(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	prodCreate(t, f, "/d", T_DIR, "")
	prodCreate(t, f, "/d/e", T_DIR, "")
	p := &testProc{pid: 1}
	cwd, err := f.Getcwd(p)
	assert.Nil(t, err)
	assert.Equal(t, cwd, "/")
	f.Transaction(func() {
		p.cwd, err = f.NameI(nil, "/d/e")
	})
	assert.Nil(t, err)
	cwd, err = f.Getcwd(p)
	assert.Nil(t, err)
	assert.Equal(t, cwd, "/d/e")
	f.Transaction(p.cwd.Put)
}

func TestReadlink(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	prodCreate(t, f, "/d", T_DIR, "")
	prodCreate(t, f, "/d/a", T_FILE, "hello")
	prodCreate(t, f, "/s", T_SYMLINK, "d")
	prodCreate(t, f, "/abs", T_SYMLINK, "/d")
	prodCreate(t, f, "/d/up", T_SYMLINK, "../s/a")
	prodCreate(t, f, "/c1", T_SYMLINK, "c2")
	prodCreate(t, f, "/c2", T_SYMLINK, "/c1")
	prodCreate(t, f, "/self", T_SYMLINK, "self")
	for i := 1; i <= MaxSymlinkLoops; i++ {
		target := fmt.Sprintf("l%d", i+1)
		if i == MaxSymlinkLoops {
			target = "/d/a"
		}
		prodCreate(t, f, fmt.Sprintf("/l%d", i), T_SYMLINK, target)
	}
	prodCreate(t, f, "/l0", T_SYMLINK, "l1")

	p := &testProc{pid: 1}
	f.Transaction(func() {
		p.cwd, _ = f.NameI(nil, "/d")
	})
	for _, c := range []struct {
		path         string
		resolveFinal bool
		result       string
		err          error
	}{
		{"/", true, "/", nil},
		{"", true, "", ErrInvalidPath},
		{"/d/a", true, "/d/a", nil},
		{"/s/a", true, "/d/a", nil},
		{"/s", true, "/d", nil},
		{"/s", false, "/s", nil},
		{"/s/new", false, "/d/new", nil},
		{"/s/new", true, "", ErrNotFound},
		{"/abs/a", true, "/d/a", nil},
		{"/d/up", true, "/d/../d/a", nil},
		{"a", true, "/d/a", nil},
		{"../s", true, "/d/../d", nil},
		{"/d/a/x", true, "", ErrNotDir},
		{"/c1", true, "", ErrSymlinkLoop},
		{"/self/x", true, "", ErrSymlinkLoop},
		{"/l1", true, "/d/a", nil},
		{"/l0", true, "", ErrSymlinkLoop},
	} {
		var result string
		var err error
		f.Transaction(func() {
			result, err = f.Readlink(p, c.path, c.resolveFinal)
		})
		assert.Equal(t, errors.Cause(err), c.err, c.path)
		assert.Equal(t, result, c.result, c.path)
		if err != nil {
			continue
		}
		// canonical paths are fixed points
		f.Transaction(func() {
			result2, err := f.Readlink(p, result, c.resolveFinal)
			assert.Nil(t, err)
			assert.Equal(t, result2, result, c.path)
		})
	}
	f.Transaction(p.cwd.Put)
	assert.Equal(t, f.InodesInUse(), 0)
}

func TestPassword(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	prodCreate(t, f, "/a", T_FILE, "hello")
	long := string(bytes.Repeat([]byte("p"), 70))
	f.Transaction(func() {
		ip, err := f.NameI(nil, "/a")
		assert.Nil(t, err)
		ip.Lock()
		defer ip.UnlockPut()
		assert.True(t, !ip.HasPassword())
		assert.True(t, !ip.CheckPassword(""))
		assert.Nil(t, ip.SetPassword("secret"))
		assert.True(t, ip.HasPassword())
		assert.True(t, ip.CheckPassword("secret"))
		assert.True(t, !ip.CheckPassword("Secret"))

		assert.Nil(t, ip.SetPassword(long))
		assert.True(t, ip.CheckPassword(long[:PASSLEN-1]+"xyz"))
		assert.True(t, !ip.CheckPassword(long[:PASSLEN-2]))
	})

	// the hash survives remount
	f2, err := Mount(f.cache.Device(ROOTDEV), Options{})
	assert.Nil(t, err)
	f2.Transaction(func() {
		ip, err := f2.NameI(nil, "/a")
		assert.Nil(t, err)
		ip.Lock()
		defer ip.UnlockPut()
		assert.True(t, ip.CheckPassword(long))
		ip.ClearPassword()
		assert.True(t, !ip.HasPassword())
		assert.True(t, !ip.CheckPassword(long))
	})
}

func TestExemptTable(t *testing.T) {
	t.Parallel()
	var e exemptTable
	e.add(3, 10)
	e.add(3, 10)
	e.add(4, 10)
	e.add(3, 11)
	assert.True(t, e.contains(3, 10))
	assert.True(t, !e.contains(3, 12))
	assert.True(t, !e.contains(5, 10))

	e.fork(10, 12)
	assert.True(t, e.contains(3, 12))
	assert.True(t, e.contains(4, 12))
	e.fork(10, 12)
	e.purge(10)
	assert.True(t, !e.contains(3, 10))
	assert.True(t, !e.contains(4, 10))
	assert.True(t, e.contains(3, 11))
	e.clear(3)
	assert.True(t, !e.contains(3, 11))
	assert.True(t, !e.contains(3, 12))
	assert.True(t, e.contains(4, 12))
	e.clear(NEXEMPT + 1)

	for pid := 1; pid <= NEXEMPTSLOTS; pid++ {
		e.add(7, pid)
	}
	e.add(7, 1)
	assertPanics(t, func() {
		e.add(7, NEXEMPTSLOTS+1)
	})
	assertPanics(t, func() {
		e.add(NEXEMPT, 1)
	})
}

func TestExemptRootDeviceOnly(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	ip := &Inode{Dev: ROOTDEV + 1, Inum: ROOTINO}
	assertPanics(t, func() {
		f.Exempt(ip, 1)
	})
	assertPanics(t, func() {
		f.IsExempt(ip, 1)
	})
	assertPanics(t, func() {
		f.ClearExemptions(ip)
	})
	root := &Inode{Dev: ROOTDEV, Inum: ROOTINO}
	f.Exempt(root, 1)
	assert.True(t, f.IsExempt(root, 1))
	assert.True(t, !f.IsExempt(root, 2))
}

func TestFreeClearsExemptions(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	f.Transaction(func() {
		ip := f.IAlloc(ROOTDEV, T_FILE)
		f.Exempt(ip, 42)
		assert.True(t, f.IsExempt(ip, 42))
		ip.Lock()
		ip.Unlock()
		inum := ip.Inum
		ip.Put()
		ip = f.IGet(ROOTDEV, inum)
		assert.True(t, !f.IsExempt(ip, 42))
		ip.Put()
	})
}

type echoDevice struct {
	last []byte
}

func (self *echoDevice) Read(ip *Inode, dst []byte) (int, error) {
	return copy(dst, self.last), nil
}

func (self *echoDevice) Write(ip *Inode, src []byte) (int, error) {
	self.last = append([]byte(nil), src...)
	return len(src), nil
}

func TestDevice(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	prodCreate(t, f, "/console", T_DEV, "")
	f.Transaction(func() {
		ip, err := f.NameI(nil, "/console")
		assert.Nil(t, err)
		ip.Lock()
		defer ip.UnlockPut()
		ip.Major = 1
		_, err = ip.Read(make([]byte, 4), 0)
		assert.Equal(t, errors.Cause(err), ErrNoDevice)

		f.RegisterDevice(1, &echoDevice{})
		n, err := ip.Write([]byte("hi"), 1234)
		assert.Nil(t, err)
		assert.Equal(t, n, 2)
		buf := make([]byte, 4)
		n, err = ip.Read(buf, 0)
		assert.Nil(t, err)
		assert.Equal(t, string(buf[:n]), "hi")
		assert.Equal(t, ip.Size, uint32(0))
	})
}

func TestConcurrent(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			dir := fmt.Sprintf("/d%d", i)
			if _, err := create(f, nil, dir, T_DIR, ""); err != nil {
				return err
			}
			for j := 0; j < 5; j++ {
				path := fmt.Sprintf("%s/f%d", dir, j)
				content := fmt.Sprintf("%d-%d", i, j)
				if _, err := create(f, nil, path, T_FILE, content); err != nil {
					return err
				}
				got, err := readAll(f, nil, path)
				if err != nil {
					return err
				}
				if got != content {
					return errors.Errorf("%s: %q != %q", path, got, content)
				}
			}
			return nil
		})
	}
	assert.Nil(t, g.Wait())
	assert.Equal(t, f.InodesInUse(), 0)
}

func TestPersistence(t *testing.T) {
	t.Parallel()
	f := ProdFs(t)
	prodCreate(t, f, "/d", T_DIR, "")
	prodCreate(t, f, "/d/a", T_FILE, "hello")
	assert.Nil(t, f.Sync())
	f2, err := Mount(f.cache.Device(ROOTDEV), Options{})
	assert.Nil(t, err)
	s, err := readAll(f2, nil, "/d/a")
	assert.Nil(t, err)
	assert.Equal(t, s, "hello")
	assert.Equal(t, f2.FreeBlocks(ROOTDEV), f.FreeBlocks(ROOTDEV))
}
