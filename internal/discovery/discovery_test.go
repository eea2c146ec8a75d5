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

package discovery

import "testing"

func TestNodeIDFromInfo(t *testing.T) {
	got := nodeIDFromInfo([]string{"version=1", "node_id=n2", "other=x"})
	if got != "n2" {
		t.Fatalf("expected n2, got %q", got)
	}
}

func TestNodeIDFromInfoMissing(t *testing.T) {
	if got := nodeIDFromInfo([]string{"version=1"}); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestResolveIPsLiteral(t *testing.T) {
	ips, err := resolveIPs("127.0.0.1")
	if err != nil {
		t.Fatalf("resolveIPs: %v", err)
	}
	if len(ips) != 1 || ips[0].String() != "127.0.0.1" {
		t.Fatalf("unexpected ips: %v", ips)
	}
}

func TestAdvertiseDisabledIsNoop(t *testing.T) {
	s := New(Config{NodeID: "n1", RaftAddr: "127.0.0.1:9000", Enabled: false})
	if err := s.Advertise(); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	if err := s.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
