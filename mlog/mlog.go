/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Feb  9 10:12:40 2019 mstenber
 * Last modified: Mon Feb 18 09:40:11 2019 mstenber
 * Edit time:     64 min
 *
 */

// mlog is maybe-log. It is a small wrapper around the standard 'log'
// with per-file opt-in tracing:
//
// - MLOG environment variable or -mlog flag (regular expression
// matched against the tag given to Printf2) chooses what is printed;
// by default nothing is, and disabled tracing costs one atomic load
//
// - Panicf is the fatal tier: it is always logged, and then panics
//
// Tags are by convention "package/file", e.g. "fs/inode".
package mlog

import (
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/fingon/go-xv6fs/util/gid"
)

const (
	stateUninitialized int32 = iota
	stateDisabled
	stateEnabled
)

var status int32 = stateUninitialized

var flagPattern *string

// mutex guards everything below
var mutex sync.Mutex
var logger = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
var pattern string
var patternRegexp *regexp.Regexp
var tag2Enabled map[string]bool
var dumpGids = true

func init() {
	flagPattern = flag.String("mlog", "", "Enable logging for tags matching the given regular expression")
}

// IsEnabled can be used to check if mlog is in use at all before
// doing something expensive.
func IsEnabled() bool {
	st := atomic.LoadInt32(&status)
	if st == stateUninitialized {
		mutex.Lock()
		initialize()
		mutex.Unlock()
		st = atomic.LoadInt32(&status)
	}
	return st == stateEnabled
}

// SetLogger overrides the output logger. The returned function
// restores the previous one.
func SetLogger(l *log.Logger) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	old := logger
	logger = l
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = old
	}
}

// SetPattern overrides the environment/flag provided pattern. The
// returned function restores the previous one.
func SetPattern(p string) (undo func()) {
	mutex.Lock()
	defer mutex.Unlock()
	initialize()
	old := pattern
	setPattern(p)
	return func() {
		mutex.Lock()
		defer mutex.Unlock()
		setPattern(old)
	}
}

// SetGoroutineIds toggles goroutine id prefix of the traces.
func SetGoroutineIds(enabled bool) {
	mutex.Lock()
	defer mutex.Unlock()
	dumpGids = enabled
}

func setPattern(p string) {
	pattern = p
	tag2Enabled = make(map[string]bool)
	if p == "" {
		patternRegexp = nil
		atomic.StoreInt32(&status, stateDisabled)
		return
	}
	patternRegexp = regexp.MustCompile(p)
	atomic.StoreInt32(&status, stateEnabled)
}

func initialize() {
	if atomic.LoadInt32(&status) != stateUninitialized {
		return
	}
	p := os.Getenv("MLOG")
	if flagPattern != nil && *flagPattern != "" {
		p = *flagPattern
	}
	setPattern(p)
}

// Printf traces with tag "". It matches only catch-all patterns.
func Printf(format string, args ...interface{}) {
	Printf2("", format, args...)
}

// Printf2 traces the message if tag matches the active pattern.
func Printf2(tag string, format string, args ...interface{}) {
	if atomic.LoadInt32(&status) == stateDisabled {
		return
	}
	mutex.Lock()
	defer mutex.Unlock()
	initialize()
	if patternRegexp == nil {
		return
	}
	enabled, ok := tag2Enabled[tag]
	if !ok {
		enabled = patternRegexp.MatchString(tag)
		tag2Enabled[tag] = enabled
	}
	if !enabled {
		return
	}
	if tag != "" {
		format = fmt.Sprint(tag, " ", format)
	}
	if dumpGids {
		format = fmt.Sprintf("%8d %s", gid.GetGoroutineID(), format)
	}
	logger.Printf(format, args...)
}

// Panicf reports unrecoverable condition. It is logged regardless of
// the pattern and then turned into panic.
func Panicf(tag string, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if tag != "" {
		msg = fmt.Sprint(tag, ": ", msg)
	}
	mutex.Lock()
	l := logger
	mutex.Unlock()
	l.Print("PANIC ", msg)
	log.Panic(msg)
}
