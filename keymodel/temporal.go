/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package keymodel

import "github.com/krotik/quaddb/btree"

/*
PredicateKind names one of the four temporal query predicates of spec
§4.5.
*/
type PredicateKind int

const (
	AsOf PredicateKind = iota
	Range
	AllTime
	Current
)

/*
TemporalPredicate is applied to each candidate entry at enumeration time.
At is used by AsOf and (resolved from the injected Clock) by Current; Lo
and Hi are used by Range.
*/
type TemporalPredicate struct {
	Kind PredicateKind
	At   int64
	Lo   int64
	Hi   int64
}

/*
ForAsOf builds an AsOf(t) predicate.
*/
func ForAsOf(t int64) TemporalPredicate { return TemporalPredicate{Kind: AsOf, At: t} }

/*
ForRange builds a Range(lo, hi) predicate.
*/
func ForRange(lo, hi int64) TemporalPredicate { return TemporalPredicate{Kind: Range, Lo: lo, Hi: hi} }

/*
ForAllTime builds an AllTime predicate.
*/
func ForAllTime() TemporalPredicate { return TemporalPredicate{Kind: AllTime} }

/*
ForCurrent builds a Current predicate, resolved against clock at
evaluation time via Resolve.
*/
func ForCurrent() TemporalPredicate { return TemporalPredicate{Kind: Current} }

/*
Resolve substitutes Current's "now" with a concrete instant taken from
clock, so AsOf's fixed-point logic can be reused unconditionally.
*/
func (p TemporalPredicate) Resolve(clock Clock) TemporalPredicate {
	if p.Kind == Current {
		return ForAsOf(NowMillis(clock))
	}
	return p
}

/*
Accept applies the predicate to one candidate entry's valid-time interval
and tombstone flag, per the table in spec §4.5. Resolve must be called
first if Kind is Current.
*/
func (p TemporalPredicate) Accept(validFrom, validTo int64, tombstone bool) bool {
	if tombstone {
		return false
	}
	switch p.Kind {
	case AsOf:
		return validFrom <= p.At && p.At < validTo
	case Range:
		return validFrom < p.Hi && validTo > p.Lo
	case AllTime:
		return true
	case Current:
		// Accept must only be called after Resolve; an unresolved Current
		// rejects every entry rather than silently accepting everything.
		return false
	}
	return false
}

/*
Metadata is the decoded form of a temporal entry's 24-byte per-entry
metadata block (btree.Temporal.MetaSize), carrying created_at,
modified_at, a monotonically increasing version and the tombstone flag.
*/
type Metadata struct {
	CreatedAt  int64
	ModifiedAt int64
	Version    uint32
	Tombstone  bool
}

/*
EncodeMetadata packs m into the 24-byte wire form stored alongside each
temporal leaf entry.
*/
func EncodeMetadata(m Metadata) []byte {
	b := make([]byte, 24)
	putTime(b[btree.MetaOffCreatedAt:], m.CreatedAt)
	putTime(b[btree.MetaOffModifiedAt:], m.ModifiedAt)
	putAtom(b[btree.MetaOffVersion:], m.Version)
	if m.Tombstone {
		b[btree.MetaOffTombstone] = 1
	}
	return b
}

/*
DecodeMetadata inverts EncodeMetadata.
*/
func DecodeMetadata(b []byte) Metadata {
	return Metadata{
		CreatedAt:  getTime(b[btree.MetaOffCreatedAt:]),
		ModifiedAt: getTime(b[btree.MetaOffModifiedAt:]),
		Version:    getAtom(b[btree.MetaOffVersion:]),
		Tombstone:  b[btree.MetaOffTombstone] != 0,
	}
}
