/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package atom

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/krotik/quaddb/dberr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), 64)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInternIsCollisionFree(t *testing.T) {
	s := openTestStore(t)

	a1, err := s.Intern([]byte("http://example.org/alice"))
	if err != nil {
		t.Fatal(err)
	}
	a2, err := s.Intern([]byte("http://example.org/bob"))
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a2 {
		t.Error("distinct content interned to the same atom")
	}
}

func TestInternIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	a1, err := s.Intern([]byte("same value"))
	if err != nil {
		t.Fatal(err)
	}
	a2, err := s.Intern([]byte("same value"))
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Errorf("expected repeated interning of identical content to return the same atom, got %d and %d", a1, a2)
	}
}

func TestLookupRoundTrip(t *testing.T) {
	s := openTestStore(t)

	content := []byte("http://example.org/predicate")
	a, err := s.Intern(content)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Lookup(a)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("expected %q, got %q", content, got)
	}
}

func TestLookupUnknownAtom(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Lookup(999); !dberr.Is(err, dberr.KindNotFound) {
		t.Errorf("expected KindNotFound, got %v", err)
	}
	if _, err := s.Lookup(MinAtom); !dberr.Is(err, dberr.KindNotFound) {
		t.Errorf("expected the reserved sentinel atom to be rejected, got %v", err)
	}
}

func TestIDOfDoesNotIntern(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.IDOf([]byte("never interned")); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("expected IDOf to miss on content never interned")
	}

	a, err := s.Intern([]byte("now interned"))
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.IDOf([]byte("now interned"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got != a {
		t.Errorf("expected IDOf to resolve to %d, got %d (ok=%v)", a, got, ok)
	}
}

func TestInternBatch(t *testing.T) {
	s := openTestStore(t)

	atoms, err := s.InternBatch([][]byte{[]byte("a"), []byte("b"), []byte("a")})
	if err != nil {
		t.Fatal(err)
	}
	if atoms[0] != atoms[2] {
		t.Error("expected repeated content within a batch to resolve to the same atom")
	}
	if atoms[0] == atoms[1] {
		t.Error("expected distinct content within a batch to resolve to distinct atoms")
	}
}

func TestCount(t *testing.T) {
	s := openTestStore(t)

	if s.Count() != 0 {
		t.Fatalf("expected empty store to report 0 atoms, got %d", s.Count())
	}
	for i := 0; i < 5; i++ {
		if _, err := s.Intern([]byte(fmt.Sprintf("term-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if s.Count() != 5 {
		t.Errorf("expected 5 atoms, got %d", s.Count())
	}

	// Interning the same content again must not inflate the count.
	if _, err := s.Intern([]byte("term-0")); err != nil {
		t.Fatal(err)
	}
	if s.Count() != 5 {
		t.Errorf("expected count to stay at 5 after re-interning existing content, got %d", s.Count())
	}
}

func TestReopenPersistsAtomsAndCounter(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir, 64)
	if err != nil {
		t.Fatal(err)
	}
	a, err := s1.Intern([]byte("persisted term"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(dir, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.Lookup(a)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "persisted term" {
		t.Errorf("expected persisted content, got %q", got)
	}

	next, err := s2.Intern([]byte("a new term after reopen"))
	if err != nil {
		t.Fatal(err)
	}
	if next == a {
		t.Error("expected the atom counter to resume past the previously assigned atom")
	}
}

func TestInternManyForcesChunkRollover(t *testing.T) {
	s := openTestStore(t)

	// chunkSize is 64 KiB; enough distinct large values force at least one
	// chunk rollover and exercise cross-generation reads via Lookup.
	values := make([][]byte, 200)
	for i := range values {
		values[i] = []byte(fmt.Sprintf("value-%d-%s", i, bytes.Repeat([]byte("x"), 512)))
	}

	atoms, err := s.InternBatch(values)
	if err != nil {
		t.Fatal(err)
	}

	for i, a := range atoms {
		got, err := s.Lookup(a)
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if !bytes.Equal(got, values[i]) {
			t.Fatalf("value %d mismatch after rollover", i)
		}
	}
}
