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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"
)

var t0 = time.UnixMilli(1700000000000)

func ms(t time.Time) int64 { return t.UnixMilli() }

func TestNewBucketPanics(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("NewBucket(%d) didn't panic", capacity)
				}
			}()
			NewBucket(capacity)
		}()
	}
}

func TestRefreshAndAcquire(t *testing.T) {
	hour := time.Hour
	for _, tc := range []struct {
		desc        string
		slots       []int64
		now         time.Time
		wantSlots   []int64
		wantGranted int
		wantOK      bool
	}{
		{
			desc:        "empty",
			slots:       []int64{0, 0, 0},
			now:         t0,
			wantSlots:   []int64{ms(t0), 0, 0},
			wantGranted: 3,
			wantOK:      true,
		},
		{
			desc:        "lowestIndexFirst",
			slots:       []int64{ms(t0), 0, 0},
			now:         t0,
			wantSlots:   []int64{ms(t0), ms(t0), 0},
			wantGranted: 2,
			wantOK:      true,
		},
		{
			desc:        "exhausted",
			slots:       []int64{ms(t0), ms(t0), ms(t0)},
			now:         t0.Add(59 * time.Minute),
			wantSlots:   []int64{ms(t0), ms(t0), ms(t0)},
			wantGranted: 0,
			wantOK:      false,
		},
		{
			desc:        "refreshedExactlyAtInterval",
			slots:       []int64{ms(t0), ms(t0.Add(time.Minute)), ms(t0)},
			now:         t0.Add(hour),
			wantSlots:   []int64{ms(t0.Add(hour)), ms(t0.Add(time.Minute)), ms(t0)},
			wantGranted: 2,
			wantOK:      true,
		},
		{
			desc:        "refreshedHoleInMiddle",
			slots:       []int64{ms(t0.Add(30 * time.Minute)), ms(t0), ms(t0.Add(30 * time.Minute))},
			now:         t0.Add(61 * time.Minute),
			wantSlots:   []int64{ms(t0.Add(30 * time.Minute)), ms(t0.Add(61 * time.Minute)), ms(t0.Add(30 * time.Minute))},
			wantGranted: 1,
			wantOK:      true,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			b := Bucket{slots: tc.slots}
			before := b.Slots()
			next, granted, ok := b.RefreshAndAcquire(tc.now, hour)
			if ok != tc.wantOK || granted != tc.wantGranted {
				t.Errorf("RefreshAndAcquire() = (_, %d, %v), want (_, %d, %v)", granted, ok, tc.wantGranted, tc.wantOK)
			}
			if diff := cmp.Diff(tc.wantSlots, next.Slots()); diff != "" {
				t.Errorf("RefreshAndAcquire() slots diff (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(before, b.Slots()); diff != "" {
				t.Errorf("RefreshAndAcquire() modified its receiver (-before +after):\n%s", diff)
			}
		})
	}
}

func TestRefreshAndAcquireDeterministic(t *testing.T) {
	b := Bucket{slots: []int64{ms(t0), 0, ms(t0.Add(-2 * time.Hour)), ms(t0.Add(-time.Minute))}}
	now := t0.Add(30 * time.Minute)
	want, wantGranted, _ := b.RefreshAndAcquire(now, time.Hour)
	for i := 0; i < 10; i++ {
		got, granted, _ := b.RefreshAndAcquire(now, time.Hour)
		if !got.Equal(want) || granted != wantGranted {
			t.Fatalf("RefreshAndAcquire() #%d = (%v, %d), want (%v, %d)", i, got, granted, want, wantGranted)
		}
	}
}

// Capacity 3, 60 minute interval: three grants at t0, a denial, and slot 0 reused at t0+61m.
func TestWorkedExample(t *testing.T) {
	b := NewBucket(3)
	var granted int
	var ok bool
	for _, want := range []int{3, 2, 1} {
		b, granted, ok = b.RefreshAndAcquire(t0, time.Hour)
		if !ok || granted != want {
			t.Fatalf("RefreshAndAcquire() = (_, %d, %v), want (_, %d, true)", granted, ok, want)
		}
	}
	if _, _, ok := b.RefreshAndAcquire(t0, time.Hour); ok {
		t.Fatal("4th RefreshAndAcquire() succeeded, want exhausted")
	}

	later := t0.Add(61 * time.Minute)
	if got := b.Remaining(later, time.Hour); got != 3 {
		t.Errorf("Remaining(t0+61m) = %d, want 3", got)
	}
	b, granted, ok = b.RefreshAndAcquire(later, time.Hour)
	if !ok || granted != 3 {
		t.Fatalf("5th RefreshAndAcquire() = (_, %d, %v), want (_, 3, true)", granted, ok)
	}
	if diff := cmp.Diff([]int64{ms(later), ms(t0), ms(t0)}, b.Slots()); diff != "" {
		t.Errorf("slots diff (-want +got):\n%s", diff)
	}
}

func TestEqual(t *testing.T) {
	a := Bucket{slots: []int64{1, 2}}
	for _, tc := range []struct {
		b    Bucket
		want bool
	}{
		{b: Bucket{slots: []int64{1, 2}}, want: true},
		{b: Bucket{slots: []int64{1, 3}}, want: false},
		{b: Bucket{slots: []int64{1, 2, 0}}, want: false},
		{b: Bucket{}, want: false},
	} {
		if got := a.Equal(tc.b); got != tc.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", a, tc.b, got, tc.want)
		}
	}
}

func TestSlotsIsCopy(t *testing.T) {
	b := NewBucket(2)
	b.Slots()[0] = 42
	if got := b.Slots()[0]; got != 0 {
		t.Errorf("Slots()[0] = %d after modifying a returned copy, want 0", got)
	}
}

func TestMarshalBinary(t *testing.T) {
	b := Bucket{slots: []int64{ms(t0), 0, ms(t0.Add(time.Second))}}
	data, err := b.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary(): %v", err)
	}
	again, _ := Bucket{slots: b.Slots()}.MarshalBinary()
	if string(again) != string(data) {
		t.Errorf("MarshalBinary() of equal buckets differs: %x vs %x", data, again)
	}

	got, err := ParseBucket(data)
	if err != nil {
		t.Fatalf("ParseBucket(): %v", err)
	}
	if !got.Equal(b) {
		t.Errorf("ParseBucket(MarshalBinary(%v)) = %v", b, got)
	}
}

func TestParseBucketSkipsUnknownFields(t *testing.T) {
	data, _ := NewBucket(1).MarshalBinary()
	data = protowire.AppendTag(data, 7, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte("future"))
	b, err := ParseBucket(data)
	if err != nil {
		t.Fatalf("ParseBucket(): %v", err)
	}
	if b.Capacity() != 1 {
		t.Errorf("Capacity() = %d, want 1", b.Capacity())
	}
}

func TestParseBucketErrors(t *testing.T) {
	capacity := func(n uint64) []byte {
		b := protowire.AppendTag(nil, capacityField, protowire.VarintType)
		return protowire.AppendVarint(b, n)
	}
	slots := func(b []byte, ts ...int64) []byte {
		var packed []byte
		for _, t := range ts {
			packed = protowire.AppendVarint(packed, uint64(t))
		}
		b = protowire.AppendTag(b, slotsField, protowire.BytesType)
		return protowire.AppendBytes(b, packed)
	}

	for _, tc := range []struct {
		desc string
		data []byte
	}{
		{desc: "empty", data: nil},
		{desc: "truncatedTag", data: []byte{0xff}},
		{desc: "missingCapacity", data: slots(nil, 1)},
		{desc: "zeroCapacity", data: slots(capacity(0))},
		{desc: "hugeCapacity", data: capacity(1 << 40)},
		{desc: "tooFewSlots", data: slots(capacity(2), 1)},
		{desc: "tooManySlots", data: slots(capacity(1), 1, 2)},
		{desc: "truncatedSlots", data: append(capacity(1), byte(slotsField<<3|2), 5, 1)},
		{desc: "wrongWireType", data: protowire.AppendVarint(protowire.AppendTag(nil, slotsField, protowire.VarintType), 1)},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			if b, err := ParseBucket(tc.data); err == nil {
				t.Errorf("ParseBucket(%x) = %v, want error", tc.data, b)
			}
		})
	}
}
