/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Feb 12 13:10:40 2019 mstenber
 * Last modified: Sat Feb 16 16:02:05 2019 mstenber
 * Edit time:     9 min
 *
 */

package fs

import "github.com/pkg/errors"

// Device is the read/write handler pair of a device major number.
// Handlers are called with the device inode locked.
type Device interface {
	Read(ip *Inode, dst []byte) (int, error)
	Write(ip *Inode, src []byte) (int, error)
}

// RegisterDevice installs handler for major (nil removes it).
func (self *Fs) RegisterDevice(major int16, dev Device) {
	if major < 0 || major >= NDEV {
		panic(errors.Wrapf(ErrNoDevice, "major %d", major))
	}
	defer self.devlock.Locked()()
	self.devsw[major] = dev
}

func (self *Fs) device(major int16) (Device, error) {
	if major < 0 || major >= NDEV {
		return nil, errors.Wrapf(ErrNoDevice, "major %d", major)
	}
	defer self.devlock.Locked()()
	dev := self.devsw[major]
	if dev == nil {
		return nil, errors.Wrapf(ErrNoDevice, "major %d", major)
	}
	return dev, nil
}
