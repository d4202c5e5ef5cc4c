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
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers of an encoded Bucket.
const (
	capacityField protowire.Number = 1
	slotsField    protowire.Number = 2
)

// Bucket is a fixed-capacity token bucket. Each slot holds the time (in milliseconds since the
// epoch) its token was last consumed, zero meaning never.
//
// Buckets are values: no method modifies the receiver, transitions return new Buckets. Two buckets
// are equal if they have the same capacity and the same slot values.
type Bucket struct {
	slots []int64
}

// NewBucket returns a bucket with capacity free slots. capacity must be positive.
func NewBucket(capacity int) Bucket {
	if capacity <= 0 {
		panic(fmt.Sprintf("quota: invalid bucket capacity %d", capacity))
	}
	return Bucket{slots: make([]int64, capacity)}
}

// Capacity returns the number of slots in b.
func (b Bucket) Capacity() int {
	return len(b.slots)
}

// Slots returns a copy of the slot timestamps of b.
func (b Bucket) Slots() []int64 {
	return append([]int64(nil), b.slots...)
}

// Equal reports whether b and o have the same capacity and slot values.
func (b Bucket) Equal(o Bucket) bool {
	if len(b.slots) != len(o.slots) {
		return false
	}
	for i, s := range b.slots {
		if o.slots[i] != s {
			return false
		}
	}
	return true
}

// String returns a description of b.
func (b Bucket) String() string {
	return fmt.Sprintf("Bucket{capacity: %d, slots: %v}", len(b.slots), b.slots)
}

// available reports whether a slot last used at ts may be consumed at nowMillis.
func available(ts, nowMillis, intervalMillis int64) bool {
	return ts == 0 || nowMillis-ts >= intervalMillis
}

// Remaining returns the number of slots available at now.
func (b Bucket) Remaining(now time.Time, refreshInterval time.Duration) int {
	nowMillis, intervalMillis := now.UnixMilli(), refreshInterval.Milliseconds()
	count := 0
	for _, ts := range b.slots {
		if available(ts, nowMillis, intervalMillis) {
			count++
		}
	}
	return count
}

// RefreshAndAcquire consumes the lowest-indexed available slot of b at now.
//
// It returns the resulting bucket and the number of slots that were available before the
// consumption. ok is false if no slot was available, in which case b is returned unchanged.
func (b Bucket) RefreshAndAcquire(now time.Time, refreshInterval time.Duration) (next Bucket, granted int, ok bool) {
	nowMillis, intervalMillis := now.UnixMilli(), refreshInterval.Milliseconds()

	first := -1
	for i, ts := range b.slots {
		if !available(ts, nowMillis, intervalMillis) {
			continue
		}
		if first < 0 {
			first = i
		}
		granted++
	}
	if first < 0 {
		return b, 0, false
	}

	slots := b.Slots()
	slots[first] = nowMillis
	return Bucket{slots: slots}, granted, true
}

// MarshalBinary encodes b as a protobuf message with the capacity in field 1 and the packed slots
// in field 2. Equal buckets always produce identical bytes.
func (b Bucket) MarshalBinary() ([]byte, error) {
	var packed []byte
	for _, ts := range b.slots {
		packed = protowire.AppendVarint(packed, uint64(ts))
	}

	buf := make([]byte, 0, len(packed)+16)
	buf = protowire.AppendTag(buf, capacityField, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(len(b.slots)))
	buf = protowire.AppendTag(buf, slotsField, protowire.BytesType)
	buf = protowire.AppendBytes(buf, packed)
	return buf, nil
}

// UnmarshalBinary decodes data produced by MarshalBinary into b.
func (b *Bucket) UnmarshalBinary(data []byte) error {
	var (
		capacity    uint64
		hasCapacity bool
		slots       []int64
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("bucket: bad tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == capacityField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("bucket: bad capacity: %v", protowire.ParseError(n))
			}
			capacity, hasCapacity = v, true
			data = data[n:]
		case num == slotsField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("bucket: bad slots: %v", protowire.ParseError(n))
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return fmt.Errorf("bucket: bad slot %d: %v", len(slots), protowire.ParseError(m))
				}
				slots = append(slots, int64(v))
				packed = packed[m:]
			}
			data = data[n:]
		case num == capacityField || num == slotsField:
			return fmt.Errorf("bucket: field %d has wire type %d", num, typ)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("bucket: bad field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	switch {
	case !hasCapacity:
		return errors.New("bucket: missing capacity")
	case capacity == 0 || capacity > MaxCapacity:
		return fmt.Errorf("bucket: invalid capacity %d", capacity)
	case uint64(len(slots)) != capacity:
		return fmt.Errorf("bucket: got %d slots for capacity %d", len(slots), capacity)
	}
	b.slots = slots
	return nil
}

// ParseBucket decodes a Bucket encoded by MarshalBinary.
func ParseBucket(data []byte) (Bucket, error) {
	var b Bucket
	err := b.UnmarshalBinary(data)
	return b, err
}
