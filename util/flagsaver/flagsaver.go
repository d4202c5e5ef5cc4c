// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package flagsaver saves and restores flag values around tests that change them.
//
//	func TestFoo(t *testing.T) {
//	  flagsaver.SetForTest(t, map[string]string{"quota_capacity": "3"})
//	  ...
//	} // flags are restored by t.Cleanup.
package flagsaver

import (
	"flag"
	"strings"
	"testing"

	"k8s.io/klog/v2"
)

// Stash holds flag values so that they can be restored later.
type Stash struct {
	fs    *flag.FlagSet
	flags map[string]string
}

// Save captures the current value of every flag in fs, or in flag.CommandLine if fs is nil.
// Flags registered by the go test runner are skipped.
func Save(fs *flag.FlagSet) *Stash {
	if fs == nil {
		fs = flag.CommandLine
	}
	s := &Stash{fs: fs, flags: make(map[string]string)}
	fs.VisitAll(func(f *flag.Flag) {
		// log_backtrace_at can't be set back to its empty default.
		if strings.HasPrefix(f.Name, "test.") || f.Name == "log_backtrace_at" {
			return
		}
		s.flags[f.Name] = f.Value.String()
	})
	return s
}

// Restore sets every saved flag back to its saved value.
func (s *Stash) Restore() error {
	for name, value := range s.flags {
		if err := s.fs.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// MustRestore calls Restore and exits on failure, since flags in an unknown state would taint
// later tests.
func (s *Stash) MustRestore() {
	if err := s.Restore(); err != nil {
		klog.Fatalf("MustRestore(): failed to restore flags: %v", err)
	}
}

// SetForTest sets command-line flags for the duration of t.
func SetForTest(t testing.TB, values map[string]string) {
	t.Helper()
	s := Save(nil)
	t.Cleanup(s.MustRestore)
	for name, value := range values {
		if err := flag.Set(name, value); err != nil {
			t.Fatalf("flag.Set(%q, %q): %v", name, value, err)
		}
	}
}
