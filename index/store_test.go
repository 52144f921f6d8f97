/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package index

import (
	"testing"

	"github.com/krotik/quaddb/keymodel"
)

func openNonTemporal(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), false, 64, keymodel.SystemClock{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func openTemporal(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), true, 64, keymodel.SystemClock{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func drain(it *ResultIterator) ([]Result, error) {
	var out []Result
	for it.Advance() {
		out = append(out, it.Current())
	}
	return out, it.Err()
}

func TestInsertTripleAndQueryGround(t *testing.T) {
	s := openNonTemporal(t)

	if err := s.InsertTriple(1, 2, 3); err != nil {
		t.Fatal(err)
	}

	it, err := s.Query(Bound(1), Bound(2), Bound(3), nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := drain(it)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Subject != 1 || results[0].Predicate != 2 || results[0].Object != 3 {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestInsertTripleIsIdempotent(t *testing.T) {
	s := openNonTemporal(t)

	if err := s.InsertTriple(1, 2, 3); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertTriple(1, 2, 3); err != nil {
		t.Fatal(err)
	}

	triples, _ := s.Statistics()
	if triples != 1 {
		t.Errorf("expected idempotent insert to leave triple count at 1, got %d", triples)
	}
}

func TestDeleteTriple(t *testing.T) {
	s := openNonTemporal(t)

	if err := s.InsertTriple(1, 2, 3); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTriple(1, 2, 3); err != nil {
		t.Fatal(err)
	}

	it, err := s.Query(Bound(1), Bound(2), Bound(3), nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := drain(it)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %d", len(results))
	}
}

func TestQueryUnboundObjectScansByPredicate(t *testing.T) {
	s := openNonTemporal(t)

	if err := s.InsertTriple(1, 10, 100); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertTriple(2, 10, 200); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertTriple(3, 20, 300); err != nil {
		t.Fatal(err)
	}

	it, err := s.Query(Unbound, Bound(10), Unbound, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := drain(it)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results for predicate 10, got %d", len(results))
	}
}

func TestTemporalStoreRejectsNonTemporalOps(t *testing.T) {
	s := openTemporal(t)

	if err := s.InsertTriple(1, 2, 3); err == nil {
		t.Error("expected InsertTriple to be rejected on a temporal store")
	}
	if err := s.DeleteTriple(1, 2, 3); err == nil {
		t.Error("expected DeleteTriple to be rejected on a temporal store")
	}
}

func TestNonTemporalStoreRejectsTemporalOps(t *testing.T) {
	s := openNonTemporal(t)

	if err := s.InsertTemporal(1, 2, 3, 0, 100); err == nil {
		t.Error("expected InsertTemporal to be rejected on a non-temporal store")
	}
}

func TestInsertTemporalAsOfQuery(t *testing.T) {
	s := openTemporal(t)

	if err := s.InsertTemporal(1, 2, 3, 100, 200); err != nil {
		t.Fatal(err)
	}

	pred := keymodel.ForAsOf(150)
	it, err := s.Query(Bound(1), Bound(2), Bound(3), &pred)
	if err != nil {
		t.Fatal(err)
	}
	results, err := drain(it)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result at AsOf(150), got %d", len(results))
	}

	outside := keymodel.ForAsOf(50)
	it2, err := s.Query(Bound(1), Bound(2), Bound(3), &outside)
	if err != nil {
		t.Fatal(err)
	}
	results2, err := drain(it2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results2) != 0 {
		t.Errorf("expected 0 results at AsOf(50) outside the interval, got %d", len(results2))
	}
}

func TestInsertTemporalRejectsZeroWidthInterval(t *testing.T) {
	s := openTemporal(t)

	if err := s.InsertTemporal(1, 2, 3, 100, 100); err == nil {
		t.Error("expected zero-width valid-time interval to be rejected")
	}
}

func TestInsertTemporalTruncatesOverlappingVersion(t *testing.T) {
	s := openTemporal(t)

	if err := s.InsertTemporal(1, 2, 3, 100, keymodel.MaxTime); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertTemporal(1, 2, 3, 300, 400); err != nil {
		t.Fatal(err)
	}

	allTime := keymodel.ForAllTime()
	it, err := s.Query(Bound(1), Bound(2), Bound(3), &allTime)
	if err != nil {
		t.Fatal(err)
	}
	results, err := drain(it)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 versions after truncation, got %d", len(results))
	}

	var sawTruncated bool
	for _, r := range results {
		if r.ValidFrom == 100 && r.ValidTo == 300 {
			sawTruncated = true
		}
	}
	if !sawTruncated {
		t.Errorf("expected the original open-ended version to be truncated to valid_to=300, got %+v", results)
	}
}

func TestDeleteTemporalVersionTombstones(t *testing.T) {
	s := openTemporal(t)

	if err := s.InsertTemporal(1, 2, 3, 100, 200); err != nil {
		t.Fatal(err)
	}

	allTime := keymodel.ForAllTime()
	it, err := s.Query(Bound(1), Bound(2), Bound(3), &allTime)
	if err != nil {
		t.Fatal(err)
	}
	results, err := drain(it)
	if err != nil || len(results) != 1 {
		t.Fatalf("expected 1 version before delete, got %d (%v)", len(results), err)
	}
	v := results[0]

	if err := s.DeleteTemporalVersion(1, 2, 3, v.ValidFrom, v.ValidTo, v.TxTime); err != nil {
		t.Fatal(err)
	}

	it2, err := s.Query(Bound(1), Bound(2), Bound(3), &allTime)
	if err != nil {
		t.Fatal(err)
	}
	results2, err := drain(it2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results2) != 0 {
		t.Errorf("expected tombstoned version to be excluded even under AllTime, got %d", len(results2))
	}
}

func TestDeleteTemporalVersionNotFound(t *testing.T) {
	s := openTemporal(t)

	if err := s.DeleteTemporalVersion(1, 2, 3, 0, 100, 0); err == nil {
		t.Error("expected deleting a nonexistent version to fail")
	}
}

func TestScanOrphansCoversEveryRotation(t *testing.T) {
	s := openNonTemporal(t)

	if err := s.InsertTriple(1, 2, 3); err != nil {
		t.Fatal(err)
	}

	reports, err := s.ScanOrphans()
	if err != nil {
		t.Fatal(err)
	}

	for _, kind := range []keymodel.IndexKind{keymodel.IndexSPO, keymodel.IndexPOS, keymodel.IndexOSP} {
		report, ok := reports[kind]
		if !ok {
			t.Fatalf("expected a report for rotation %v", kind)
		}
		if len(report.OrphanedPages) != 0 {
			t.Errorf("rotation %v: expected no orphans after a single insert, got %v", kind, report.OrphanedPages)
		}
	}
}
