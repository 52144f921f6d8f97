/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package index implements the Multi-Index Store (spec §4.4, C4): the
coordinated set of B+Trees maintaining every rotation of the composite
key, deterministic index selection, and per-predicate/per-object
cardinality counters consumed by the query layer's BGP reordering.
*/
package index

import "github.com/krotik/quaddb/keymodel"

/*
BoundMask records which of subject/predicate/object are bound (present,
not a "?..." variable) in a triple pattern.
*/
type BoundMask uint8

const (
	BoundS BoundMask = 1 << iota
	BoundP
	BoundO
)

/*
ChooseIndex transcribes spec §4.4's index-selection table exactly. temporal
selects between the 3-tree non-temporal set (SPO/POS/OSP) and the 4-tree
temporal set (SPOT/POST/OSPT/TSPO). timeRangeBound is only consulted for
the "none bound" row, where a temporal store distinguishes a pure
time-range scan (TSPO) from a full scan (SPOT).
*/
func ChooseIndex(bound BoundMask, temporal bool, timeRangeBound bool) keymodel.IndexKind {
	switch bound {
	case BoundS | BoundP | BoundO, BoundS | BoundP, BoundS:
		if temporal {
			return keymodel.IndexSPOT
		}
		return keymodel.IndexSPO
	case BoundS | BoundO, BoundO:
		if temporal {
			return keymodel.IndexOSPT
		}
		return keymodel.IndexOSP
	case BoundP | BoundO, BoundP:
		if temporal {
			return keymodel.IndexPOST
		}
		return keymodel.IndexPOS
	case 0:
		if !temporal {
			return keymodel.IndexSPO
		}
		if timeRangeBound {
			return keymodel.IndexTSPO
		}
		return keymodel.IndexSPOT
	}
	// Unreachable: BoundMask only has three bits, all 8 combinations are
	// covered above.
	return keymodel.IndexSPO
}
