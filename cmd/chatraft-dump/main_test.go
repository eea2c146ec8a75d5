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

package main

import "testing"

func TestParseHosts(t *testing.T) {
	tests := []struct {
		name     string
		hostStr  string
		portStr  string
		expected []string
	}{
		{"single host without port", "localhost", "9191", []string{"localhost:9191"}},
		{"single host with port", "localhost:9999", "9191", []string{"localhost:9999"}},
		{"multiple hosts without ports", "node1,node2,node3", "9191", []string{"node1:9191", "node2:9191", "node3:9191"}},
		{"multiple hosts mixed ports", "node1:9191,node2,node3:9999", "9191", []string{"node1:9191", "node2:9191", "node3:9999"}},
		{"hosts with spaces", " node1 , node2 ", "9191", []string{"node1:9191", "node2:9191"}},
		{"empty string", "", "9191", []string{}},
		{"only commas", ",,", "9191", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseHosts(tt.hostStr, tt.portStr)
			if len(got) != len(tt.expected) {
				t.Fatalf("parseHosts(%q, %q) = %v, want %v", tt.hostStr, tt.portStr, got, tt.expected)
			}
			for i, h := range got {
				if h != tt.expected[i] {
					t.Errorf("parseHosts(%q, %q)[%d] = %q, want %q", tt.hostStr, tt.portStr, i, h, tt.expected[i])
				}
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		expected bool
	}{
		{"connection refused", "dial tcp: connection refused", true},
		{"connection reset", "read: connection reset by peer", true},
		{"broken pipe", "write: broken pipe", true},
		{"EOF error", "unexpected EOF", true},
		{"timeout", "i/o timeout", true},
		{"application error", "user not found", false},
		{"nil error", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.errMsg != "" {
				err = &testError{msg: tt.errMsg}
			}
			if got := isConnectionError(err); got != tt.expected {
				t.Errorf("isConnectionError(%q) = %v, want %v", tt.errMsg, got, tt.expected)
			}
		})
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		expected string
	}{
		{"bytes", 500, "500 bytes"},
		{"kilobytes", 1024, "1.00 KB"},
		{"megabytes", 1024 * 1024, "1.00 MB"},
		{"gigabytes", 1024 * 1024 * 1024, "1.00 GB"},
		{"mixed KB", 2560, "2.50 KB"},
		{"mixed MB", 5 * 1024 * 1024, "5.00 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatFileSize(tt.size); got != tt.expected {
				t.Errorf("formatFileSize(%d) = %q, want %q", tt.size, got, tt.expected)
			}
		})
	}
}

func TestIsLocalAndRemoteMode(t *testing.T) {
	origData, origHosts := *dataDir, *hosts
	defer func() { *dataDir, *hosts = origData, origHosts }()

	*dataDir, *hosts = "", ""
	if isLocalMode() || isRemoteMode() {
		t.Error("expected neither mode with both flags empty")
	}

	*dataDir = "/var/lib/chatraft/n1"
	if !isLocalMode() {
		t.Error("expected isLocalMode true when -data-dir is set")
	}

	*dataDir = ""
	*hosts = "node1,node2"
	if !isRemoteMode() {
		t.Error("expected isRemoteMode true when -hosts is set")
	}
}
