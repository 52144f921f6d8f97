/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package quad

import (
	"github.com/krotik/quaddb/btree"
	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/index"
	"github.com/krotik/quaddb/keymodel"
)

/*
Result is one matching quad returned by a unified-mode Query, decoded
back to canonical (graph, s, p, o) form plus, for temporal stores, the
version's valid-time interval and metadata.
*/
type Result struct {
	Graph                      uint32
	Subject, Predicate, Object uint32
	ValidFrom, ValidTo, TxTime int64
	Meta                       keymodel.Metadata
}

/*
ResultIterator streams unified-mode Query results in the chosen index's
ascending composite-key order, the graph field being the outermost
sort key.
*/
type ResultIterator struct {
	inner     *btree.RangeIterator
	kind      keymodel.IndexKind
	temporal  bool
	predicate *keymodel.TemporalPredicate
	cur       Result

	// partitioned is set instead of inner when this iterator wraps a
	// per-graph index.Store's own ResultIterator (GraphModePartitioned);
	// fixedGraph supplies the graph atom, which the partitioned backing
	// never encodes since it has no graph field at all.
	partitioned *index.ResultIterator
	fixedGraph  uint32
}

/*
Advance moves to the next matching entry, applying the temporal
predicate (if any) at enumeration time.
*/
func (it *ResultIterator) Advance() bool {
	if it.partitioned != nil {
		if !it.partitioned.Advance() {
			return false
		}
		r := it.partitioned.Current()
		it.cur = Result{
			Graph:     it.fixedGraph,
			Subject:   r.Subject,
			Predicate: r.Predicate,
			Object:    r.Object,
			ValidFrom: r.ValidFrom,
			ValidTo:   r.ValidTo,
			TxTime:    r.TxTime,
			Meta:      r.Meta,
		}
		return true
	}

	for it.inner.Advance() {
		e := it.inner.Current()
		graph, inner := decodeGraphKey(e.Key)

		var r Result
		r.Graph = graph
		if it.temporal {
			switch it.kind {
			case keymodel.IndexSPOT:
				r.Subject, r.Predicate, r.Object, r.ValidFrom, r.ValidTo, r.TxTime = keymodel.DecodeSPOT(inner)
			case keymodel.IndexPOST:
				r.Subject, r.Predicate, r.Object, r.ValidFrom, r.ValidTo, r.TxTime = keymodel.DecodePOST(inner)
			case keymodel.IndexOSPT:
				r.Subject, r.Predicate, r.Object, r.ValidFrom, r.ValidTo, r.TxTime = keymodel.DecodeOSPT(inner)
			}
			r.Meta = keymodel.DecodeMetadata(e.Meta)

			if it.predicate != nil && !it.predicate.Accept(r.ValidFrom, r.ValidTo, r.Meta.Tombstone) {
				continue
			}
		} else {
			switch it.kind {
			case keymodel.IndexSPO:
				r.Subject, r.Predicate, r.Object = keymodel.DecodeSPO(inner)
			case keymodel.IndexPOS:
				r.Subject, r.Predicate, r.Object = keymodel.DecodePOS(inner)
			case keymodel.IndexOSP:
				r.Subject, r.Predicate, r.Object = keymodel.DecodeOSP(inner)
			}
		}

		it.cur = r
		return true
	}
	return false
}

/*
Current returns the result the last successful Advance moved to.
*/
func (it *ResultIterator) Current() Result { return it.cur }

/*
Err returns the first error encountered during iteration, if any.
*/
func (it *ResultIterator) Err() error {
	if it.partitioned != nil {
		return it.partitioned.Err()
	}
	return it.inner.Err()
}

/*
queryUnified answers a Query against the graph-prefixed unified tree set.
graph is always bound here (checkGraphAllowed rejects unbound
default-graph mismatches upstream), so it brackets to a single value on
both ends of the range, the same rule the plain Multi-Index Store
applies to a bound s/p/o position.
*/
func (s *Store) queryUnified(sub, pred, obj index.BoundTerm, graph uint32, temporalPred *keymodel.TemporalPredicate) (*ResultIterator, error) {
	minS, maxS := boundsFor(sub)
	minP, maxP := boundsFor(pred)
	minO, maxO := boundsFor(obj)

	mask := index.BoundMask(0)
	if sub.Bound {
		mask |= index.BoundS
	}
	if pred.Bound {
		mask |= index.BoundP
	}
	if obj.Bound {
		mask |= index.BoundO
	}

	if !s.temporal {
		kind := index.ChooseIndex(mask, false, false)
		tree, ok := s.unifiedTrees[kind]
		if !ok {
			return nil, dberr.Errorf(dberr.KindInvalidInput, "graph index %v not maintained by this store", kind)
		}

		var minKey, maxKey []byte
		switch kind {
		case keymodel.IndexSPO:
			minKey, maxKey = encodeGSPO(graph, minS, minP, minO), encodeGSPO(graph, maxS, maxP, maxO)
		case keymodel.IndexPOS:
			minKey, maxKey = encodeGPOS(graph, minS, minP, minO), encodeGPOS(graph, maxS, maxP, maxO)
		case keymodel.IndexOSP:
			minKey, maxKey = encodeGOSP(graph, minS, minP, minO), encodeGOSP(graph, maxS, maxP, maxO)
		}

		inner, err := tree.RangeScan(minKey, maxKey)
		if err != nil {
			return nil, err
		}
		return &ResultIterator{inner: inner, kind: kind, temporal: false}, nil
	}

	timeRangeBound := temporalPred != nil && temporalPred.Kind != keymodel.AllTime
	kind := index.ChooseIndex(mask, true, timeRangeBound)
	if kind == keymodel.IndexTSPO {
		// The unified graph-prefixed layer keeps no TSPO rotation: a
		// fully unbound s/p/o scan with a time-range bound is rare under
		// named graphs, so POST (predicate-first) is used as the
		// fallback order instead of adding a fifth per-graph tree.
		kind = keymodel.IndexPOST
	}
	tree, ok := s.unifiedTrees[kind]
	if !ok {
		return nil, dberr.Errorf(dberr.KindInvalidInput, "graph index %v not maintained by this store", kind)
	}

	var minKey, maxKey []byte
	switch kind {
	case keymodel.IndexSPOT:
		minKey = encodeGSPOT(graph, minS, minP, minO, keymodel.MinTime, keymodel.MinTime, keymodel.MinTime)
		maxKey = encodeGSPOT(graph, maxS, maxP, maxO, keymodel.MaxTime, keymodel.MaxTime, keymodel.MaxTime)
	case keymodel.IndexPOST:
		minKey = encodeGPOST(graph, minS, minP, minO, keymodel.MinTime, keymodel.MinTime, keymodel.MinTime)
		maxKey = encodeGPOST(graph, maxS, maxP, maxO, keymodel.MaxTime, keymodel.MaxTime, keymodel.MaxTime)
	case keymodel.IndexOSPT:
		minKey = encodeGOSPT(graph, minS, minP, minO, keymodel.MinTime, keymodel.MinTime, keymodel.MinTime)
		maxKey = encodeGOSPT(graph, maxS, maxP, maxO, keymodel.MaxTime, keymodel.MaxTime, keymodel.MaxTime)
	}

	inner, err := tree.RangeScan(minKey, maxKey)
	if err != nil {
		return nil, err
	}
	return &ResultIterator{inner: inner, kind: kind, temporal: true, predicate: temporalPred}, nil
}

func boundsFor(t index.BoundTerm) (min, max uint32) {
	if t.Bound {
		return t.Atom, t.Atom
	}
	return keymodel.MinAtom, keymodel.MaxAtom
}
