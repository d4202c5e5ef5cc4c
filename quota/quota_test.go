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

import "testing"

func TestKeyName(t *testing.T) {
	for _, tc := range []struct {
		key  Key
		want string
	}{
		{key: Key{ContextID: 1, UserID: 2}, want: "contexts/1/users/2"},
		{key: Key{ContextID: -5, UserID: 0}, want: "contexts/-5/users/0"},
		{key: Key{ContextID: 9223372036854775807, UserID: -9223372036854775808}, want: "contexts/9223372036854775807/users/-9223372036854775808"},
	} {
		if got := tc.key.Name(); got != tc.want {
			t.Errorf("%#v.Name() = %v, want = %v", tc.key, got, tc.want)
		}
	}
}
