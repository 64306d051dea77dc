/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Feb  9 11:02:13 2019 mstenber
 * Last modified: Sun Feb 10 16:20:31 2019 mstenber
 * Edit time:     21 min
 *
 */

package util

import "sync"

// MutexLocked is sync.Mutex with convenience feature: defer x.Locked()()
type MutexLocked sync.Mutex

func (self *MutexLocked) Lock() {
	(*sync.Mutex)(self).Lock()
}

func (self *MutexLocked) Unlock() {
	(*sync.Mutex)(self).Unlock()
}

func (self *MutexLocked) Locked() (unlock func()) {
	mut := (*sync.Mutex)(self)
	mut.Lock()
	return func() {
		mut.Unlock()
	}
}

// SleepLock is the mutex + condition variable pair used for
// sleep/wakeup style waiting on table state. Waiters must hold the
// mutex; Wakeup wakes everyone, and they re-check their condition.
type SleepLock struct {
	MutexLocked
	cond *sync.Cond
}

func (self *SleepLock) Sleep() {
	if self.cond == nil {
		self.cond = sync.NewCond(&self.MutexLocked)
	}
	self.cond.Wait()
}

// Wakeup must be called with the mutex held.
func (self *SleepLock) Wakeup() {
	if self.cond != nil {
		self.cond.Broadcast()
	}
}
