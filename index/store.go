/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package index

import (
	"os"
	"path/filepath"

	"github.com/krotik/quaddb/btree"
	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/keymodel"
	"github.com/krotik/quaddb/recovery"
	"github.com/krotik/quaddb/storage/pagefile"

	"github.com/krotik/common/logutil"
)

/*
Store owns the multiple B+Tree instances of one Multi-Index Store: three
rotations (SPO/POS/OSP) when temporal support is off, or four
(SPOT/POST/OSPT/TSPO) when it is on. All indexes see identical logical
sets: every insert fans out to every tree via errgroup, and a partial
failure is rolled back across whichever rotations already succeeded
(see FanoutRollback) so the trees never disagree.
*/
type Store struct {
	temporal bool
	clock    keymodel.Clock
	log      logutil.Logger

	trees map[keymodel.IndexKind]*btree.Tree
	files map[keymodel.IndexKind]*pagefile.File

	Cardinality *CardinalityCounters
}

/*
Open opens (or initializes) a Multi-Index Store rooted at dir. temporal
selects the SPOT/POST/OSPT/TSPO tree set instead of SPO/POS/OSP. An
optional logger, if given, receives the orphan-page reconciliation
report that Open runs over every rotation before returning (spec §4.8:
"an orphaned-page reconciliation pass run at open").
*/
func Open(dir string, temporal bool, cacheCapacity int, clock keymodel.Clock, logger ...logutil.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, err
	}

	kinds := []keymodel.IndexKind{keymodel.IndexSPO, keymodel.IndexPOS, keymodel.IndexOSP}
	layout := btree.NonTemporal
	if temporal {
		kinds = []keymodel.IndexKind{keymodel.IndexSPOT, keymodel.IndexPOST, keymodel.IndexOSPT, keymodel.IndexTSPO}
		layout = btree.Temporal
	}

	var log logutil.Logger
	if len(logger) > 0 {
		log = logger[0]
	}

	s := &Store{
		temporal:    temporal,
		clock:       clock,
		log:         log,
		trees:       make(map[keymodel.IndexKind]*btree.Tree, len(kinds)),
		files:       make(map[keymodel.IndexKind]*pagefile.File, len(kinds)),
		Cardinality: NewCardinalityCounters(),
	}

	for _, kind := range kinds {
		path := filepath.Join(dir, kind.String()+".tdb")
		f, err := pagefile.Open(path, cacheCapacity)
		if err != nil {
			return nil, err
		}
		t, err := btree.Open(f, btree.ByteCompare{}, layout)
		if err != nil {
			return nil, err
		}
		s.files[kind] = f
		s.trees[kind] = t
	}

	reports, err := s.ScanOrphans()
	if err != nil {
		return nil, err
	}
	for kind, report := range reports {
		recovery.LogReport(s.log, kind.String(), report)
	}

	return s, nil
}

/*
ScanOrphans runs the orphan-page reconciliation pass of spec §4.8 over
every index rotation, returning one Report per rotation. Orphaned pages
are only logged, never eagerly reclaimed here.
*/
func (s *Store) ScanOrphans() (map[keymodel.IndexKind]recovery.Report, error) {
	reports := make(map[keymodel.IndexKind]recovery.Report, len(s.trees))

	for kind, tree := range s.trees {
		file := s.files[kind]

		freeList, err := recovery.CollectFreeList(file)
		if err != nil {
			return nil, err
		}
		report, err := recovery.ScanOrphans(int(file.PageCount()), freeList, []*btree.Tree{tree})
		if err != nil {
			return nil, err
		}
		reports[kind] = report
	}

	return reports, nil
}

/*
Temporal reports whether this store maintains the temporal tree set.
*/
func (s *Store) Temporal() bool { return s.temporal }

func (s *Store) tree(kind keymodel.IndexKind) *btree.Tree { return s.trees[kind] }

/*
InsertTriple inserts a ground (s, p, o) triple into every non-temporal
index. Idempotent: repeated inserts of the same triple do not change the
triple count (spec's Invariant 4).
*/
func (s *Store) InsertTriple(sub, pred, obj uint32) error {
	if s.temporal {
		return dberr.New(dberr.KindInvalidInput, "store is configured for temporal triples")
	}

	spo := keymodel.EncodeSPO(sub, pred, obj)
	pos := keymodel.EncodePOS(sub, pred, obj)
	osp := keymodel.EncodeOSP(sub, pred, obj)

	if _, _, found, err := s.trees[keymodel.IndexSPO].PointLookup(spo); err != nil {
		return err
	} else if found {
		return nil
	}

	ops := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPO: func() error { return s.trees[keymodel.IndexSPO].Insert(spo, nil, nil) },
		keymodel.IndexPOS: func() error { return s.trees[keymodel.IndexPOS].Insert(pos, nil, nil) },
		keymodel.IndexOSP: func() error { return s.trees[keymodel.IndexOSP].Insert(osp, nil, nil) },
	}
	compensate := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPO: func() error { return s.trees[keymodel.IndexSPO].Delete(spo) },
		keymodel.IndexPOS: func() error { return s.trees[keymodel.IndexPOS].Delete(pos) },
		keymodel.IndexOSP: func() error { return s.trees[keymodel.IndexOSP].Delete(osp) },
	}
	if err := FanoutRollback(ops, compensate); err != nil {
		return err
	}

	s.Cardinality.Observe(pred, obj)
	return nil
}

/*
DeleteTriple removes a ground (s, p, o) triple from every non-temporal
index.
*/
func (s *Store) DeleteTriple(sub, pred, obj uint32) error {
	if s.temporal {
		return dberr.New(dberr.KindInvalidInput, "store is configured for temporal triples")
	}

	spo := keymodel.EncodeSPO(sub, pred, obj)
	pos := keymodel.EncodePOS(sub, pred, obj)
	osp := keymodel.EncodeOSP(sub, pred, obj)

	ops := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPO: func() error { return s.trees[keymodel.IndexSPO].Delete(spo) },
		keymodel.IndexPOS: func() error { return s.trees[keymodel.IndexPOS].Delete(pos) },
		keymodel.IndexOSP: func() error { return s.trees[keymodel.IndexOSP].Delete(osp) },
	}
	compensate := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPO: func() error { return s.trees[keymodel.IndexSPO].Insert(spo, nil, nil) },
		keymodel.IndexPOS: func() error { return s.trees[keymodel.IndexPOS].Insert(pos, nil, nil) },
		keymodel.IndexOSP: func() error { return s.trees[keymodel.IndexOSP].Insert(osp, nil, nil) },
	}
	if err := FanoutRollback(ops, compensate); err != nil {
		return err
	}

	s.Cardinality.Unobserve(pred, obj)
	return nil
}

/*
Flush fences every dirty page of every underlying tree file to disk
without closing it, for the top-level store's periodic checkpoint.
*/
func (s *Store) Flush() error {
	for _, f := range s.files {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	return nil
}

/*
Close closes every underlying tree file.
*/
func (s *Store) Close() error {
	for _, f := range s.files {
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

/*
Statistics returns the current triple count, taken from the in-memory
cardinality counters (so it covers only inserts and deletes made since
Open), and a byte total that is always 0.
*/
func (s *Store) Statistics() (triples uint64, bytes int64) {
	triples = s.Cardinality.Total()
	return
}
