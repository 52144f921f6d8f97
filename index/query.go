/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package index

import (
	"github.com/krotik/quaddb/btree"
	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/keymodel"
)

/*
BoundTerm is one position of a triple pattern as seen by the index
layer: either bound to a concrete atom or unbound (wildcard).
*/
type BoundTerm struct {
	Bound bool
	Atom  uint32
}

/*
Bound wraps a concrete atom as a bound term.
*/
func Bound(atom uint32) BoundTerm { return BoundTerm{Bound: true, Atom: atom} }

/*
Unbound is the wildcard term.
*/
var Unbound = BoundTerm{}

func (t BoundTerm) mask(bit BoundMask) BoundMask {
	if t.Bound {
		return bit
	}
	return 0
}

/*
Result is one matching entry returned by Query, decoded back to
canonical (s, p, o) form plus, for temporal stores, the version's
valid-time interval and metadata.
*/
type Result struct {
	Subject, Predicate, Object uint32
	ValidFrom, ValidTo, TxTime int64
	Meta                       keymodel.Metadata
}

/*
ResultIterator streams Query results in the chosen index's ascending
composite-key order (spec §5, "results are emitted in ascending
composite-key order of the chosen index").
*/
type ResultIterator struct {
	inner     *btree.RangeIterator
	kind      keymodel.IndexKind
	temporal  bool
	predicate *keymodel.TemporalPredicate
	cur       Result
}

/*
Advance moves to the next matching entry, applying the temporal
predicate (if any) at enumeration time. It returns false when the scan
is exhausted or on error (check Err).
*/
func (it *ResultIterator) Advance() bool {
	for it.inner.Advance() {
		e := it.inner.Current()

		var r Result
		if it.temporal {
			switch it.kind {
			case keymodel.IndexSPOT:
				r.Subject, r.Predicate, r.Object, r.ValidFrom, r.ValidTo, r.TxTime = keymodel.DecodeSPOT(e.Key)
			case keymodel.IndexPOST:
				r.Subject, r.Predicate, r.Object, r.ValidFrom, r.ValidTo, r.TxTime = keymodel.DecodePOST(e.Key)
			case keymodel.IndexOSPT:
				r.Subject, r.Predicate, r.Object, r.ValidFrom, r.ValidTo, r.TxTime = keymodel.DecodeOSPT(e.Key)
			case keymodel.IndexTSPO:
				r.Subject, r.Predicate, r.Object, r.ValidFrom, r.ValidTo, r.TxTime = keymodel.DecodeTSPO(e.Key)
			}
			r.Meta = keymodel.DecodeMetadata(e.Meta)

			p := keymodel.ForAllTime()
			if it.predicate != nil {
				p = *it.predicate
			}
			if !p.Accept(r.ValidFrom, r.ValidTo, r.Meta.Tombstone) {
				continue
			}
		} else {
			switch it.kind {
			case keymodel.IndexSPO:
				r.Subject, r.Predicate, r.Object = keymodel.DecodeSPO(e.Key)
			case keymodel.IndexPOS:
				r.Subject, r.Predicate, r.Object = keymodel.DecodePOS(e.Key)
			case keymodel.IndexOSP:
				r.Subject, r.Predicate, r.Object = keymodel.DecodeOSP(e.Key)
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
func (it *ResultIterator) Err() error { return it.inner.Err() }

/*
Query selects the best index for (s, p, o) per spec §4.4's deterministic
table, constructs the bracketing (min_key, max_key) and returns a
streaming result iterator. pred, when the store is temporal, filters
each candidate at enumeration time; a nil pred means AllTime.
*/
func (s *Store) Query(sub, pred, obj BoundTerm, temporalPred *keymodel.TemporalPredicate) (*ResultIterator, error) {
	if temporalPred != nil && temporalPred.Kind == keymodel.Current {
		resolved := temporalPred.Resolve(s.clock)
		temporalPred = &resolved
	}

	mask := sub.mask(BoundS) | pred.mask(BoundP) | obj.mask(BoundO)
	timeRangeBound := temporalPred != nil && temporalPred.Kind != keymodel.AllTime

	kind := ChooseIndex(mask, s.temporal, timeRangeBound)
	tree, ok := s.trees[kind]
	if !ok {
		return nil, dberr.Errorf(dberr.KindInvalidInput, "index %v not maintained by this store", kind)
	}

	minS, maxS := boundsFor(sub)
	minP, maxP := boundsFor(pred)
	minO, maxO := boundsFor(obj)

	var minKey, maxKey []byte
	if !s.temporal {
		switch kind {
		case keymodel.IndexSPO:
			minKey, maxKey = keymodel.EncodeSPO(minS, minP, minO), keymodel.EncodeSPO(maxS, maxP, maxO)
		case keymodel.IndexPOS:
			minKey, maxKey = keymodel.EncodePOS(minS, minP, minO), keymodel.EncodePOS(maxS, maxP, maxO)
		case keymodel.IndexOSP:
			minKey, maxKey = keymodel.EncodeOSP(minS, minP, minO), keymodel.EncodeOSP(maxS, maxP, maxO)
		}
	} else {
		minT, maxT := keymodel.MinTime, keymodel.MaxTime
		if temporalPred != nil {
			switch temporalPred.Kind {
			case keymodel.AsOf:
				minT, maxT = keymodel.MinTime, keymodel.MaxTime
			case keymodel.Range:
				minT, maxT = keymodel.MinTime, temporalPred.Hi
			}
		}
		switch kind {
		case keymodel.IndexSPOT:
			minKey = keymodel.EncodeSPOT(minS, minP, minO, keymodel.MinTime, keymodel.MinTime, keymodel.MinTime)
			maxKey = keymodel.EncodeSPOT(maxS, maxP, maxO, keymodel.MaxTime, keymodel.MaxTime, keymodel.MaxTime)
		case keymodel.IndexPOST:
			minKey = keymodel.EncodePOST(minS, minP, minO, keymodel.MinTime, keymodel.MinTime, keymodel.MinTime)
			maxKey = keymodel.EncodePOST(maxS, maxP, maxO, keymodel.MaxTime, keymodel.MaxTime, keymodel.MaxTime)
		case keymodel.IndexOSPT:
			minKey = keymodel.EncodeOSPT(minS, minP, minO, keymodel.MinTime, keymodel.MinTime, keymodel.MinTime)
			maxKey = keymodel.EncodeOSPT(maxS, maxP, maxO, keymodel.MaxTime, keymodel.MaxTime, keymodel.MaxTime)
		case keymodel.IndexTSPO:
			minKey = keymodel.EncodeTSPO(keymodel.MinAtom, keymodel.MinAtom, keymodel.MinAtom, minT, keymodel.MinTime, keymodel.MinTime)
			maxKey = keymodel.EncodeTSPO(keymodel.MaxAtom, keymodel.MaxAtom, keymodel.MaxAtom, maxT, keymodel.MaxTime, keymodel.MaxTime)
		}
	}

	inner, err := tree.RangeScan(minKey, maxKey)
	if err != nil {
		return nil, err
	}

	return &ResultIterator{inner: inner, kind: kind, temporal: s.temporal, predicate: temporalPred}, nil
}

func boundsFor(t BoundTerm) (min, max uint32) {
	if t.Bound {
		return t.Atom, t.Atom
	}
	return keymodel.MinAtom, keymodel.MaxAtom
}
