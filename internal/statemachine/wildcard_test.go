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

import "testing"

func TestMatchWildcard(t *testing.T) {
	tests := []struct {
		pattern, name string
		want           bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"alice", "alice", true},
		{"alice", "alicia", false},
		{"al*e", "alice", true},
		{"al*e", "ale", true},
		{"al*e", "al", false},
		{"a?ice", "alice", true},
		{"a?ice", "alicce", false},
		{"*ice", "alice", true},
		{"*ice*", "alicexyz", true},
		{"*ice*", "alicexyzicex", true},
		{"Alice", "alice", false},
		{"a**b", "aXXXb", true},
	}

	for _, tt := range tests {
		got := MatchWildcard(tt.pattern, tt.name)
		if got != tt.want {
			t.Errorf("MatchWildcard(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}
