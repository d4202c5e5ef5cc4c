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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/slotquota/quota"
	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"
)

var errNotSet = errors.New("not set")

// Params is one layer of quota parameters. Nil fields defer to the layer below.
type Params struct {
	Capacity               *int  `yaml:"capacity,omitempty"`
	RefreshIntervalMinutes *int  `yaml:"refresh_interval_minutes,omitempty"`
	Enabled                *bool `yaml:"enabled,omitempty"`
}

// ContextParams overrides the defaults for a context and may further override them per user.
type ContextParams struct {
	Params `yaml:",inline"`
	Users  map[int64]Params `yaml:"users,omitempty"`
}

// File is the parsed form of a layered quota configuration, e.g.
//
//	defaults:
//	  capacity: 100
//	  refresh_interval_minutes: 60
//	contexts:
//	  42:
//	    capacity: 10
//	    users:
//	      7:
//	        enabled: false
type File struct {
	Defaults Params                  `yaml:"defaults"`
	Contexts map[int64]ContextParams `yaml:"contexts,omitempty"`
}

// Parse parses and validates a YAML configuration. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", quota.ErrConfiguration, err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", quota.ErrConfiguration, err)
	}
	return &f, nil
}

func (p Params) validate(where string) error {
	if p.Capacity != nil && (*p.Capacity <= 0 || *p.Capacity > quota.MaxCapacity) {
		return fmt.Errorf("%s: capacity must be in [1, %d], got %d", where, quota.MaxCapacity, *p.Capacity)
	}
	if p.RefreshIntervalMinutes != nil && (*p.RefreshIntervalMinutes <= 0 || int64(*p.RefreshIntervalMinutes) > quota.MaxRefreshIntervalMinutes) {
		return fmt.Errorf("%s: refresh_interval_minutes must be in [1, %d], got %d", where, quota.MaxRefreshIntervalMinutes, *p.RefreshIntervalMinutes)
	}
	return nil
}

func (f *File) validate() error {
	if err := f.Defaults.validate("defaults"); err != nil {
		return err
	}
	for cid, c := range f.Contexts {
		if err := c.validate(fmt.Sprintf("context %d", cid)); err != nil {
			return err
		}
		for uid, u := range c.Users {
			if err := u.validate(fmt.Sprintf("context %d user %d", cid, uid)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resolve returns the effective parameters of key: user overrides, then context overrides, then
// defaults. Fields set nowhere are nil.
func (f *File) Resolve(key quota.Key) Params {
	layers := []Params{f.Defaults}
	if c, ok := f.Contexts[key.ContextID]; ok {
		layers = append(layers, c.Params)
		if u, ok := c.Users[key.UserID]; ok {
			layers = append(layers, u)
		}
	}
	var p Params
	for _, l := range layers {
		if l.Capacity != nil {
			p.Capacity = l.Capacity
		}
		if l.RefreshIntervalMinutes != nil {
			p.RefreshIntervalMinutes = l.RefreshIntervalMinutes
		}
		if l.Enabled != nil {
			p.Enabled = l.Enabled
		}
	}
	return p
}

// Layered is a quota.ConfigSource backed by a File. The File may be swapped at any time with
// Reload or Set. Each lookup sees a single File; callers needing several consistent lookups
// use Snapshot, as quota.Limiter does.
type Layered struct {
	f atomic.Pointer[File]
}

var _ quota.SnapshotConfigSource = &Layered{}

// NewLayered returns a Layered serving f.
func NewLayered(f *File) *Layered {
	l := &Layered{}
	l.Set(f)
	return l
}

// LoadFile reads and parses the YAML file at path.
func LoadFile(path string) (*Layered, error) {
	f, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return NewLayered(f), nil
}

func readFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quota config: %v", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Reload replaces the served configuration with the contents of path.
// The current configuration is kept if path can't be read or parsed.
func (l *Layered) Reload(path string) error {
	f, err := readFile(path)
	if err != nil {
		return err
	}
	l.Set(f)
	klog.Infof("Reloaded quota config from %v: %d context override(s)", path, len(f.Contexts))
	return nil
}

// Set replaces the served configuration.
func (l *Layered) Set(f *File) {
	if f == nil {
		f = &File{}
	}
	l.f.Store(f)
}

// Snapshot returns a Layered serving the current File, unaffected by later Reload or Set calls.
func (l *Layered) Snapshot() quota.ConfigSource {
	s := &Layered{}
	s.f.Store(l.f.Load())
	return s
}

// Capacity implements quota.ConfigSource.
func (l *Layered) Capacity(ctx context.Context, key quota.Key) (int, error) {
	p := l.f.Load().Resolve(key)
	if p.Capacity == nil {
		return 0, &quota.ConfigError{Key: key, Field: "capacity", Err: errNotSet}
	}
	return *p.Capacity, nil
}

// RefreshIntervalMinutes implements quota.ConfigSource.
func (l *Layered) RefreshIntervalMinutes(ctx context.Context, key quota.Key) (int, error) {
	p := l.f.Load().Resolve(key)
	if p.RefreshIntervalMinutes == nil {
		return 0, &quota.ConfigError{Key: key, Field: "refresh interval", Err: errNotSet}
	}
	return *p.RefreshIntervalMinutes, nil
}

// Enabled implements quota.ConfigSource. Keys are enabled unless some layer says otherwise.
func (l *Layered) Enabled(ctx context.Context, key quota.Key) (bool, error) {
	p := l.f.Load().Resolve(key)
	if p.Enabled == nil {
		return true, nil
	}
	return *p.Enabled, nil
}
