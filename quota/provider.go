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

package quota

import (
	"fmt"
	"sort"
	"sync"
)

// NewStoreFunc is the signature of a function which can be registered to provide instances of a
// BucketStore.
type NewStoreFunc func() (BucketStore, error)

var (
	spMu     sync.RWMutex
	spByName map[string]NewStoreFunc
)

// RegisterStoreProvider registers a function that provides BucketStore instances.
// Store packages call it from init(), binaries select one of them by name.
func RegisterStoreProvider(name string, sp NewStoreFunc) error {
	spMu.Lock()
	defer spMu.Unlock()

	if spByName == nil {
		spByName = make(map[string]NewStoreFunc)
	}
	if _, exists := spByName[name]; exists {
		return fmt.Errorf("bucket store provider %v already registered", name)
	}
	spByName[name] = sp
	return nil
}

// StoreProviders returns the sorted names of the registered store providers.
func StoreProviders() []string {
	spMu.RLock()
	defer spMu.RUnlock()

	r := make([]string, 0, len(spByName))
	for k := range spByName {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

// NewStore returns a BucketStore from the named provider.
func NewStore(name string) (BucketStore, error) {
	spMu.RLock()
	f, exists := spByName[name]
	spMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown bucket store: %q (registered: %v)", name, StoreProviders())
	}
	return f()
}
