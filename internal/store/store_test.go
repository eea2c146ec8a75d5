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

package store

import (
	"testing"
)

func TestAppendAndEntries(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	entries := []LogEntry{
		{Index: 1, Term: 1, Command: []byte(`{"kind":"CreateAccount"}`)},
		{Index: 2, Term: 1, Command: []byte(`{"kind":"SendMessage"}`)},
		{Index: 3, Term: 2, Command: []byte(`{"kind":"MarkRead"}`)},
	}
	if err := d.Append(entries); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if got := d.LastIndex(); got != 3 {
		t.Errorf("LastIndex() = %d, want 3", got)
	}
	if got := d.LastTerm(); got != 2 {
		t.Errorf("LastTerm() = %d, want 2", got)
	}

	got, err := d.Entries(1, 3)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, e := range got {
		if string(e.Command) != string(entries[i].Command) {
			t.Errorf("entry %d command mismatch: got %s want %s", i, e.Command, entries[i].Command)
		}
	}
}

func TestTruncateFrom(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	d.Append([]LogEntry{
		{Index: 1, Term: 1, Command: []byte("a")},
		{Index: 2, Term: 1, Command: []byte("b")},
		{Index: 3, Term: 1, Command: []byte("c")},
	})

	if err := d.TruncateFrom(2); err != nil {
		t.Fatalf("TruncateFrom: %v", err)
	}
	if got := d.LastIndex(); got != 1 {
		t.Errorf("LastIndex() after truncate = %d, want 1", got)
	}

	if err := d.Append([]LogEntry{{Index: 2, Term: 2, Command: []byte("d")}}); err != nil {
		t.Fatalf("Append after truncate: %v", err)
	}
	entries, _ := d.Entries(1, 2)
	if len(entries) != 2 || entries[1].Term != 2 {
		t.Errorf("expected replaced entry at index 2 with term 2, got %+v", entries)
	}
}

func TestMetaPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.SaveMeta(Meta{CurrentTerm: 5, VotedFor: "n2"}); err != nil {
		t.Fatalf("SaveMeta: %v", err)
	}
	d.Append([]LogEntry{{Index: 1, Term: 5, Command: []byte("x")}})
	d.Close()

	d2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d2.Close()

	m, err := d2.LoadMeta()
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if m.CurrentTerm != 5 || m.VotedFor != "n2" {
		t.Errorf("meta did not survive reopen: %+v", m)
	}
	if d2.LastIndex() != 1 {
		t.Errorf("log did not survive reopen: LastIndex=%d", d2.LastIndex())
	}
}

func TestOpenFailsWhenAlreadyLocked(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if _, err := Open(dir); err == nil {
		t.Error("expected second Open of the same data dir to fail while the first is held")
	}
}

func TestEntryLookupMissing(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	_, ok, err := d.Entry(42)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if ok {
		t.Error("expected missing entry to report ok=false")
	}
}
