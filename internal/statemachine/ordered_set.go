/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package statemachine

import "sort"

// orderedUint32Set is a user's unread set: a set with a deterministic
// ascending iteration order, since ReadN must "pop up to n unread in id
// order" and any command touching it must behave identically on every
// replica regardless of Go's randomized map iteration.
type orderedUint32Set struct {
	members map[uint32]struct{}
}

func newOrderedUint32Set() *orderedUint32Set {
	return &orderedUint32Set{members: make(map[uint32]struct{})}
}

func (s *orderedUint32Set) Add(v uint32) {
	s.members[v] = struct{}{}
}

func (s *orderedUint32Set) Remove(v uint32) {
	delete(s.members, v)
}

func (s *orderedUint32Set) Contains(v uint32) bool {
	_, ok := s.members[v]
	return ok
}

func (s *orderedUint32Set) Len() int {
	return len(s.members)
}

// Sorted returns the set's members in ascending order. Allocates fresh
// on every call; callers must not rely on reference identity.
func (s *orderedUint32Set) Sorted() []uint32 {
	out := make([]uint32, 0, len(s.members))
	for v := range s.members {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// First returns the first n members in ascending order (fewer than n if
// the set is smaller, empty if n <= 0).
func (s *orderedUint32Set) First(n int) []uint32 {
	if n <= 0 {
		return nil
	}
	all := s.Sorted()
	if n >= len(all) {
		return all
	}
	return all[:n]
}
