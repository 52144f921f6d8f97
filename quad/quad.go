/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package quad layers the named-graph dimension of spec §4.9 (C9) over the
triple-keyed Multi-Index Store. Both conformant implementation options
are supported behind GraphMode: a unified tree with a graph field
prefixed to the composite key, or one store per named graph, grounded
directly on DiskGraphStorage's partition-by-name idiom
(graphstorage/diskgraphstorage.go).
*/
package quad

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/krotik/quaddb/btree"
	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/index"
	"github.com/krotik/quaddb/keymodel"
	"github.com/krotik/quaddb/recovery"
	"github.com/krotik/quaddb/storage/pagefile"

	"github.com/krotik/common/logutil"
)

/*
GraphMode selects how the graph dimension is represented.
*/
type GraphMode int

const (
	// GraphModeUnified prefixes the composite key with a 4-byte graph
	// field, so a single tree set serves every named graph.
	GraphModeUnified GraphMode = iota
	// GraphModePartitioned opens one Multi-Index Store per named graph.
	GraphModePartitioned
)

// DefaultGraph is the reserved atom naming the default graph: atom 0,
// which the atom store never assigns to content. Stores configured
// without named graphs fix every quad to this graph.
const DefaultGraph uint32 = 0

/*
Store is the quad-aware facade over the graph dimension. Exactly one of
its two backing shapes is active, chosen at Open by mode.
*/
type Store struct {
	mu sync.Mutex

	dir                string
	mode               GraphMode
	temporal           bool
	cacheCapacity      int
	clock              keymodel.Clock
	namedGraphsEnabled bool
	log                logutil.Logger

	// GraphModeUnified backing: a single set of graph-prefixed trees.
	unifiedFiles map[keymodel.IndexKind]*pagefile.File
	unifiedTrees map[keymodel.IndexKind]*btree.Tree
	cardinality  *index.CardinalityCounters

	// GraphModePartitioned backing: one Multi-Index Store per graph atom.
	partitions map[uint32]*index.Store
	names      map[uint32]string
}

/*
Open opens (or initializes) a quad-layer store rooted at dir.
*/
func Open(dir string, mode GraphMode, namedGraphsEnabled, temporal bool, cacheCapacity int, clock keymodel.Clock, logger ...logutil.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, err
	}

	var log logutil.Logger
	if len(logger) > 0 {
		log = logger[0]
	}

	s := &Store{
		dir:                dir,
		mode:               mode,
		temporal:           temporal,
		cacheCapacity:      cacheCapacity,
		clock:              clock,
		namedGraphsEnabled: namedGraphsEnabled,
		log:                log,
		partitions:         make(map[uint32]*index.Store),
		names:              make(map[uint32]string),
		cardinality:        index.NewCardinalityCounters(),
	}

	if mode == GraphModeUnified {
		if err := s.openUnified(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if _, err := s.partitionFor(DefaultGraph, "default"); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) openUnified() error {
	kinds := []keymodel.IndexKind{keymodel.IndexSPO, keymodel.IndexPOS, keymodel.IndexOSP}
	layout := gspoLayout
	if s.temporal {
		kinds = []keymodel.IndexKind{keymodel.IndexSPOT, keymodel.IndexPOST, keymodel.IndexOSPT}
		layout = gspotLayout
	}

	s.unifiedFiles = make(map[keymodel.IndexKind]*pagefile.File, len(kinds))
	s.unifiedTrees = make(map[keymodel.IndexKind]*btree.Tree, len(kinds))

	for _, kind := range kinds {
		path := filepath.Join(s.dir, "g"+kind.String()+".tdb")
		f, err := pagefile.Open(path, s.cacheCapacity)
		if err != nil {
			return err
		}
		t, err := btree.Open(f, btree.ByteCompare{}, layout)
		if err != nil {
			return err
		}
		s.unifiedFiles[kind] = f
		s.unifiedTrees[kind] = t
	}

	for kind, tree := range s.unifiedTrees {
		freeList, err := recovery.CollectFreeList(s.unifiedFiles[kind])
		if err != nil {
			return err
		}
		report, err := recovery.ScanOrphans(int(s.unifiedFiles[kind].PageCount()), freeList, []*btree.Tree{tree})
		if err != nil {
			return err
		}
		recovery.LogReport(s.log, "g"+kind.String(), report)
	}

	return nil
}

func (s *Store) partitionFor(graph uint32, name string) (*index.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.partitions[graph]; ok {
		return st, nil
	}

	st, err := index.Open(filepath.Join(s.dir, "graphs", name), s.temporal, s.cacheCapacity, s.clock, s.log)
	if err != nil {
		return nil, err
	}
	s.partitions[graph] = st
	s.names[graph] = name
	return st, nil
}

/*
IndexStoreFor returns the underlying *index.Store for a named graph.
Only meaningful in GraphModePartitioned, since GraphModeUnified keeps no
per-graph *index.Store at all (its trees are graph-prefixed and shared
across every graph) — callers needing direct index-layer access, such
as the patch executor, must run against a partitioned-mode quad store.
*/
func (s *Store) IndexStoreFor(graph uint32, graphName string) (*index.Store, error) {
	if s.mode != GraphModePartitioned {
		return nil, dberr.New(dberr.KindInvalidInput, "direct index-store access requires GraphModePartitioned")
	}
	return s.partitionFor(graph, graphName)
}

func (s *Store) checkGraphAllowed(graph uint32) error {
	if !s.namedGraphsEnabled && graph != DefaultGraph {
		return dberr.New(dberr.KindInvalidInput, "store is not configured with named graphs")
	}
	return nil
}

/*
Insert adds a ground (s, p, o) triple to graph.
*/
func (s *Store) Insert(sub, pred, obj, graph uint32, graphName string) error {
	if err := s.checkGraphAllowed(graph); err != nil {
		return err
	}

	if s.mode == GraphModePartitioned {
		st, err := s.partitionFor(graph, graphName)
		if err != nil {
			return err
		}
		return st.InsertTriple(sub, pred, obj)
	}
	if s.temporal {
		return dberr.New(dberr.KindInvalidInput, "store is configured for temporal triples")
	}

	spo := encodeGSPO(graph, sub, pred, obj)
	pos := encodeGPOS(graph, sub, pred, obj)
	osp := encodeGOSP(graph, sub, pred, obj)

	if _, _, found, err := s.unifiedTrees[keymodel.IndexSPO].PointLookup(spo); err != nil {
		return err
	} else if found {
		return nil
	}

	ops := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPO: func() error { return s.unifiedTrees[keymodel.IndexSPO].Insert(spo, nil, nil) },
		keymodel.IndexPOS: func() error { return s.unifiedTrees[keymodel.IndexPOS].Insert(pos, nil, nil) },
		keymodel.IndexOSP: func() error { return s.unifiedTrees[keymodel.IndexOSP].Insert(osp, nil, nil) },
	}
	compensate := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPO: func() error { return s.unifiedTrees[keymodel.IndexSPO].Delete(spo) },
		keymodel.IndexPOS: func() error { return s.unifiedTrees[keymodel.IndexPOS].Delete(pos) },
		keymodel.IndexOSP: func() error { return s.unifiedTrees[keymodel.IndexOSP].Delete(osp) },
	}
	if err := index.FanoutRollback(ops, compensate); err != nil {
		return err
	}
	s.cardinality.Observe(pred, obj)
	return nil
}

/*
InsertTemporal adds a bitemporal (s, p, o) quad valid over [validFrom,
validTo) to graph.
*/
func (s *Store) InsertTemporal(sub, pred, obj, graph uint32, graphName string, validFrom, validTo int64) error {
	if err := s.checkGraphAllowed(graph); err != nil {
		return err
	}
	if err := keymodel.ValidateInterval(validFrom, validTo); err != nil {
		return err
	}

	if s.mode == GraphModePartitioned {
		st, err := s.partitionFor(graph, graphName)
		if err != nil {
			return err
		}
		return st.InsertTemporal(sub, pred, obj, validFrom, validTo)
	}
	if !s.temporal {
		return dberr.New(dberr.KindInvalidInput, "store is not configured for temporal triples")
	}

	now := keymodel.NowMillis(s.clock)
	meta := keymodel.EncodeMetadata(keymodel.Metadata{CreatedAt: now, ModifiedAt: now, Version: 1})

	spot := encodeGSPOT(graph, sub, pred, obj, validFrom, validTo, now)
	post := encodeGPOST(graph, sub, pred, obj, validFrom, validTo, now)
	ospt := encodeGOSPT(graph, sub, pred, obj, validFrom, validTo, now)

	ops := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPOT: func() error { return s.unifiedTrees[keymodel.IndexSPOT].Insert(spot, nil, meta) },
		keymodel.IndexPOST: func() error { return s.unifiedTrees[keymodel.IndexPOST].Insert(post, nil, meta) },
		keymodel.IndexOSPT: func() error { return s.unifiedTrees[keymodel.IndexOSPT].Insert(ospt, nil, meta) },
	}
	compensate := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPOT: func() error { return s.unifiedTrees[keymodel.IndexSPOT].Delete(spot) },
		keymodel.IndexPOST: func() error { return s.unifiedTrees[keymodel.IndexPOST].Delete(post) },
		keymodel.IndexOSPT: func() error { return s.unifiedTrees[keymodel.IndexOSPT].Delete(ospt) },
	}
	if err := index.FanoutRollback(ops, compensate); err != nil {
		return err
	}
	s.cardinality.Observe(pred, obj)
	return nil
}

/*
Query matches (s?, p?, o?) within a bound graph. Unbound-graph union
queries are composed by the caller (query.Union) over one Query call per
known graph, since neither backing shape indexes "any graph" as a
contiguous range.
*/
func (s *Store) Query(sub, pred, obj index.BoundTerm, graph uint32, graphName string, temporalPred *keymodel.TemporalPredicate) (*ResultIterator, error) {
	if err := s.checkGraphAllowed(graph); err != nil {
		return nil, err
	}
	if temporalPred != nil && temporalPred.Kind == keymodel.Current {
		resolved := temporalPred.Resolve(s.clock)
		temporalPred = &resolved
	}

	if s.mode == GraphModePartitioned {
		st, err := s.partitionFor(graph, graphName)
		if err != nil {
			return nil, err
		}
		inner, err := st.Query(sub, pred, obj, temporalPred)
		if err != nil {
			return nil, err
		}
		return &ResultIterator{partitioned: inner, fixedGraph: graph}, nil
	}

	return s.queryUnified(sub, pred, obj, graph, temporalPred)
}

/*
Statistics returns the total triple count observed across every graph
this quad store has inserted into.
*/
func (s *Store) Statistics() uint64 {
	if s.mode == GraphModeUnified {
		return s.cardinality.Total()
	}
	var total uint64
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.partitions {
		t, _ := st.Statistics()
		total += t
	}
	return total
}

/*
Flush fences every dirty page of every underlying store to disk without
closing it, for the top-level store's periodic checkpoint (spec's
WAL-style checkpoint discipline).
*/
func (s *Store) Flush() error {
	if s.mode == GraphModeUnified {
		for _, f := range s.unifiedFiles {
			if err := f.Flush(); err != nil {
				return err
			}
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.partitions {
		if err := st.Flush(); err != nil {
			return err
		}
	}
	return nil
}

/*
Close closes every open underlying store.
*/
func (s *Store) Close() error {
	if s.mode == GraphModeUnified {
		for _, f := range s.unifiedFiles {
			if err := f.Close(); err != nil {
				return err
			}
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.partitions {
		if err := st.Close(); err != nil {
			return err
		}
	}
	return nil
}
