/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package btree

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/krotik/quaddb/storage/pagefile"
)

func openTestTree(t *testing.T, layout EntryLayout) *Tree {
	t.Helper()

	dir := t.TempDir()
	f, err := pagefile.Open(filepath.Join(dir, "test.tdb"), 64)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })

	tree, err := Open(f, ByteCompare{}, layout)
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func key12(a, b, c uint32) []byte {
	k := make([]byte, 12)
	binary.BigEndian.PutUint32(k[0:4], a)
	binary.BigEndian.PutUint32(k[4:8], b)
	binary.BigEndian.PutUint32(k[8:12], c)
	return k
}

func TestInsertAndPointLookup(t *testing.T) {
	tree := openTestTree(t, NonTemporal)

	k := key12(1, 2, 3)
	if err := tree.Insert(k, []byte("value123"), nil); err != nil {
		t.Fatal(err)
	}

	v, _, found, err := tree.PointLookup(k)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if string(v) != "value123" {
		t.Errorf("unexpected value: %q", v)
	}

	if _, _, found, err := tree.PointLookup(key12(9, 9, 9)); err != nil {
		t.Fatal(err)
	} else if found {
		t.Error("expected missing key to not be found")
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	tree := openTestTree(t, NonTemporal)

	k := key12(1, 1, 1)
	if err := tree.Insert(k, []byte("first"), nil); err != nil {
		t.Fatal(err)
	}
	if err := tree.Insert(k, []byte("second"), nil); err != nil {
		t.Fatal(err)
	}

	v, _, _, err := tree.PointLookup(k)
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != string(padTo([]byte("first"), NonTemporal.ValueSize)) {
		t.Errorf("insert should not overwrite an existing key, got %q", v)
	}
}

func TestSplitsAcrossManyInserts(t *testing.T) {
	tree := openTestTree(t, NonTemporal)

	const n = 2000
	for i := uint32(0); i < n; i++ {
		if err := tree.Insert(key12(i, 0, 0), key12(0, 0, i)[4:], nil); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	for i := uint32(0); i < n; i++ {
		v, _, found, err := tree.PointLookup(key12(i, 0, 0))
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if !found {
			t.Fatalf("key %d not found after many splits", i)
		}
		if binary.BigEndian.Uint32(v[4:8]) != i {
			t.Fatalf("key %d has wrong value", i)
		}
	}
}

func TestRangeScanAscendingOrder(t *testing.T) {
	tree := openTestTree(t, NonTemporal)

	const n = 500
	for i := uint32(0); i < n; i++ {
		if err := tree.Insert(key12(i, 0, 0), nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	it, err := tree.RangeScan(key12(100, 0, 0), key12(199, 0, 0))
	if err != nil {
		t.Fatal(err)
	}

	var got []uint32
	for it.Advance() {
		got = append(got, binary.BigEndian.Uint32(it.Current().Key[0:4]))
	}
	if err := it.Err(); err != nil {
		t.Fatal(err)
	}

	if len(got) != 100 {
		t.Fatalf("expected 100 entries in [100,199], got %d", len(got))
	}
	for i, v := range got {
		if v != uint32(100+i) {
			t.Fatalf("range scan not in ascending order at %d: got %d", i, v)
		}
	}
}

func TestRangeScanEmptyWhenMinGreaterThanMax(t *testing.T) {
	tree := openTestTree(t, NonTemporal)

	it, err := tree.RangeScan(key12(5, 0, 0), key12(1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if it.Advance() {
		t.Error("expected no entries when min > max")
	}
}

func TestUpdateEntry(t *testing.T) {
	tree := openTestTree(t, NonTemporal)

	k := key12(1, 2, 3)
	if err := tree.Insert(k, []byte("old"), nil); err != nil {
		t.Fatal(err)
	}
	if err := tree.UpdateEntry(k, []byte("new"), nil); err != nil {
		t.Fatal(err)
	}

	v, _, _, err := tree.PointLookup(k)
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != string(padTo([]byte("new"), NonTemporal.ValueSize)) {
		t.Errorf("expected updated value, got %q", v)
	}

	if err := tree.UpdateEntry(key12(9, 9, 9), []byte("x"), nil); err == nil {
		t.Error("expected error updating a missing key")
	}
}

func TestDelete(t *testing.T) {
	tree := openTestTree(t, NonTemporal)

	k := key12(1, 2, 3)
	if err := tree.Insert(k, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := tree.Delete(k); err != nil {
		t.Fatal(err)
	}

	if _, _, found, err := tree.PointLookup(k); err != nil {
		t.Fatal(err)
	} else if found {
		t.Error("expected key to be gone after delete")
	}

	// Deleting an absent key is a no-op, not an error.
	if err := tree.Delete(k); err != nil {
		t.Errorf("deleting an absent key should not error: %v", err)
	}
}

func TestWalkVisitsEveryPage(t *testing.T) {
	tree := openTestTree(t, NonTemporal)

	const n = 1000
	for i := uint32(0); i < n; i++ {
		if err := tree.Insert(key12(i, 0, 0), nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[uint64]bool{}
	if err := tree.Walk(func(id uint64) error {
		seen[id] = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if len(seen) < 2 {
		t.Errorf("expected walk to visit multiple pages after many splits, saw %d", len(seen))
	}
	if !seen[tree.rootID()] {
		t.Error("walk did not visit the root page")
	}
}

func TestReopenPersistsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.tdb")

	f, err := pagefile.Open(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := Open(f, ByteCompare{}, NonTemporal)
	if err != nil {
		t.Fatal(err)
	}
	if err := tree.Insert(key12(42, 0, 0), []byte("persisted"), nil); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f2, err := pagefile.Open(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()
	if f2.IsNew {
		t.Fatal("reopened file should not report IsNew")
	}

	tree2, err := Open(f2, ByteCompare{}, NonTemporal)
	if err != nil {
		t.Fatal(err)
	}
	v, _, found, err := tree2.PointLookup(key12(42, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(v) != string(padTo([]byte("persisted"), NonTemporal.ValueSize)) {
		t.Fatal("expected data to survive a close/reopen cycle")
	}
}
