/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package btree implements the ordered, mmap-backed B+Tree storage engine
that every index of the Multi-Index Store is built from. One Tree
instance owns one pagefile.File; separate non-temporal and temporal key
flavors are expressed as two Comparator/EntryLayout pairs over the same
tree machinery, per the "factor the common B+Tree machinery over a
key-comparator and entry-layout parameterization" design note this
package follows.
*/
package btree

import "bytes"

/*
Comparator orders two fixed-width composite keys. Compare must behave
like bytes.Compare when the encoding is big-endian, which is a
requirement on every key flavor this engine stores.
*/
type Comparator interface {
	Compare(a, b []byte) int
}

/*
ByteCompare is the default Comparator: plain lexicographic (memcmp)
comparison, correct for any big-endian fixed-width composite key.
*/
type ByteCompare struct{}

/*
Compare implements Comparator.
*/
func (ByteCompare) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

/*
EntryLayout describes the fixed-width shape of entries stored in a tree's
leaves. KeySize is the width of the composite key. ValueSize is the width
of the caller-defined payload. MetaSize is extra caller-defined per-entry
metadata (used by temporal trees for created-at/modified-at/version/
tombstone; zero for non-temporal trees).

Internal (non-leaf) nodes always store Key+8-byte child pointer entries,
regardless of MetaSize, since internal nodes never carry payload or
metadata.
*/
type EntryLayout struct {
	KeySize   int
	ValueSize int
	MetaSize  int
}

/*
LeafEntrySize is the width in bytes of one leaf entry.
*/
func (l EntryLayout) LeafEntrySize() int {
	return l.KeySize + l.ValueSize + l.MetaSize
}

/*
InternalEntrySize is the width in bytes of one internal-node entry
(separator key + right-child page id).
*/
func (l EntryLayout) InternalEntrySize() int {
	return l.KeySize + 8
}

/*
NonTemporal is the (subject,predicate,object) key layout: a 12-byte key,
an 8-byte value, no metadata.
*/
var NonTemporal = EntryLayout{KeySize: 12, ValueSize: 8, MetaSize: 0}

/*
Temporal is the bitemporal key layout: subject+predicate+object (12
bytes) plus valid_from/valid_to/transaction_time (8 bytes each, 24 bytes
total) for a 36-byte key, an 8-byte value and a 24-byte per-entry
metadata block (created_at int64, modified_at int64, version uint32,
tombstone flag byte, 3 bytes padding).

The specification's approximate byte counts ("32 bytes", "16 bytes of
per-entry metadata") undercount the fields they themselves enumerate; the
layout below keeps every named field at a semantically correct width
instead of trimming a field to hit the approximate total (see DESIGN.md).
*/
var Temporal = EntryLayout{KeySize: 36, ValueSize: 8, MetaSize: 24}

// Metadata field offsets within a temporal entry's metadata block.
const (
	MetaOffCreatedAt  = 0
	MetaOffModifiedAt = 8
	MetaOffVersion    = 16
	MetaOffTombstone  = 20
)
