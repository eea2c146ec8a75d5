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

package session

import "testing"

func TestMintProducesDistinctTokens(t *testing.T) {
	a, err := Mint("n1", 1)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	b, err := Mint("n1", 1)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if a == b {
		t.Error("expected two mints for the same user to produce different tokens")
	}
}

func TestLoginAndValidate(t *testing.T) {
	tbl := NewTable("n1")
	tok, err := tbl.Login(7)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !tbl.Validate(7, tok) {
		t.Error("expected freshly minted token to validate")
	}
	if tbl.Validate(7, Token{}) {
		t.Error("expected a garbage token to fail validation")
	}
	if tbl.Validate(8, tok) {
		t.Error("expected token to not validate for a different user id")
	}
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	tbl := NewTable("n1")
	first, _ := tbl.Login(1)
	second, _ := tbl.Login(1)

	if tbl.Validate(1, first) {
		t.Error("expected first token to be invalidated by second login")
	}
	if !tbl.Validate(1, second) {
		t.Error("expected second token to validate")
	}
}

func TestLogout(t *testing.T) {
	tbl := NewTable("n1")
	tok, _ := tbl.Login(3)
	tbl.Logout(3)
	if tbl.Validate(3, tok) {
		t.Error("expected token to be invalid after logout")
	}
}
