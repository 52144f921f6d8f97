/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package keymodel

import (
	"encoding/binary"
	"math"

	"github.com/krotik/quaddb/dberr"
)

// MinAtom is the reserved sentinel "minimum" atom (spec §3, Atoms).
const MinAtom uint32 = 0

// MaxAtom is the reserved sentinel "maximum" atom, used as the unbound
// upper wildcard when constructing search-key ranges.
const MaxAtom uint32 = math.MaxUint32

// MinTime and MaxTime bracket the full range of millisecond-epoch
// temporal fields, used as unbound wildcards in range construction.
const (
	MinTime int64 = 0
	MaxTime int64 = math.MaxInt64
)

/*
IndexKind names one of the field-rotation orderings a Multi-Index Store
maintains. Each is a distinct B+Tree over the same logical data.
*/
type IndexKind int

const (
	IndexSPO IndexKind = iota
	IndexPOS
	IndexOSP
	IndexSPOT
	IndexPOST
	IndexOSPT
	IndexTSPO
)

/*
String returns the index's short name, as used in log lines and test
failure messages.
*/
func (k IndexKind) String() string {
	switch k {
	case IndexSPO:
		return "SPO"
	case IndexPOS:
		return "POS"
	case IndexOSP:
		return "OSP"
	case IndexSPOT:
		return "SPOT"
	case IndexPOST:
		return "POST"
	case IndexOSPT:
		return "OSPT"
	case IndexTSPO:
		return "TSPO"
	}
	return "?"
}

/*
Temporal reports whether this index rotation carries the three temporal
fields (valid_from, valid_to, transaction_time).
*/
func (k IndexKind) Temporal() bool {
	return k >= IndexSPOT
}

func putAtom(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func getAtom(b []byte) uint32    { return binary.BigEndian.Uint32(b) }
func putTime(b []byte, v int64)  { binary.BigEndian.PutUint64(b, uint64(v)) }
func getTime(b []byte) int64     { return int64(binary.BigEndian.Uint64(b)) }

// --- Non-temporal (12-byte) composite keys -------------------------------

/*
EncodeSPO writes the 12-byte (subject, predicate, object) composite key,
big-endian, so memcmp order equals (s, p, o) lexicographic order.
*/
func EncodeSPO(s, p, o uint32) []byte {
	k := make([]byte, 12)
	putAtom(k[0:4], s)
	putAtom(k[4:8], p)
	putAtom(k[8:12], o)
	return k
}

/*
DecodeSPO inverts EncodeSPO.
*/
func DecodeSPO(k []byte) (s, p, o uint32) {
	return getAtom(k[0:4]), getAtom(k[4:8]), getAtom(k[8:12])
}

/*
EncodePOS writes the 12-byte (predicate, object, subject) rotation.
*/
func EncodePOS(s, p, o uint32) []byte {
	k := make([]byte, 12)
	putAtom(k[0:4], p)
	putAtom(k[4:8], o)
	putAtom(k[8:12], s)
	return k
}

/*
DecodePOS inverts EncodePOS.
*/
func DecodePOS(k []byte) (s, p, o uint32) {
	p = getAtom(k[0:4])
	o = getAtom(k[4:8])
	s = getAtom(k[8:12])
	return
}

/*
EncodeOSP writes the 12-byte (object, subject, predicate) rotation.
*/
func EncodeOSP(s, p, o uint32) []byte {
	k := make([]byte, 12)
	putAtom(k[0:4], o)
	putAtom(k[4:8], s)
	putAtom(k[8:12], p)
	return k
}

/*
DecodeOSP inverts EncodeOSP.
*/
func DecodeOSP(k []byte) (s, p, o uint32) {
	o = getAtom(k[0:4])
	s = getAtom(k[4:8])
	p = getAtom(k[8:12])
	return
}

// --- Bitemporal (36-byte) composite keys ---------------------------------
//
// Each rotation places its leading atom fields first, then the three
// temporal fields in (valid_from, valid_to, transaction_time) order,
// except TSPO, whose defining property is that valid_from leads the
// whole key so a pure time-range scan (no bound atoms) is a single
// contiguous range.

/*
EncodeSPOT writes the 36-byte (s, p, o, valid_from, valid_to, tx_time) key.
*/
func EncodeSPOT(s, p, o uint32, validFrom, validTo, txTime int64) []byte {
	k := make([]byte, 36)
	putAtom(k[0:4], s)
	putAtom(k[4:8], p)
	putAtom(k[8:12], o)
	putTime(k[12:20], validFrom)
	putTime(k[20:28], validTo)
	putTime(k[28:36], txTime)
	return k
}

/*
DecodeSPOT inverts EncodeSPOT.
*/
func DecodeSPOT(k []byte) (s, p, o uint32, validFrom, validTo, txTime int64) {
	s, p, o = getAtom(k[0:4]), getAtom(k[4:8]), getAtom(k[8:12])
	validFrom, validTo, txTime = getTime(k[12:20]), getTime(k[20:28]), getTime(k[28:36])
	return
}

/*
EncodePOST writes the 36-byte (p, o, s, valid_from, valid_to, tx_time) key.
*/
func EncodePOST(s, p, o uint32, validFrom, validTo, txTime int64) []byte {
	k := make([]byte, 36)
	putAtom(k[0:4], p)
	putAtom(k[4:8], o)
	putAtom(k[8:12], s)
	putTime(k[12:20], validFrom)
	putTime(k[20:28], validTo)
	putTime(k[28:36], txTime)
	return k
}

/*
DecodePOST inverts EncodePOST.
*/
func DecodePOST(k []byte) (s, p, o uint32, validFrom, validTo, txTime int64) {
	p = getAtom(k[0:4])
	o = getAtom(k[4:8])
	s = getAtom(k[8:12])
	validFrom, validTo, txTime = getTime(k[12:20]), getTime(k[20:28]), getTime(k[28:36])
	return
}

/*
EncodeOSPT writes the 36-byte (o, s, p, valid_from, valid_to, tx_time) key.
*/
func EncodeOSPT(s, p, o uint32, validFrom, validTo, txTime int64) []byte {
	k := make([]byte, 36)
	putAtom(k[0:4], o)
	putAtom(k[4:8], s)
	putAtom(k[8:12], p)
	putTime(k[12:20], validFrom)
	putTime(k[20:28], validTo)
	putTime(k[28:36], txTime)
	return k
}

/*
DecodeOSPT inverts EncodeOSPT.
*/
func DecodeOSPT(k []byte) (s, p, o uint32, validFrom, validTo, txTime int64) {
	o = getAtom(k[0:4])
	s = getAtom(k[4:8])
	p = getAtom(k[8:12])
	validFrom, validTo, txTime = getTime(k[12:20]), getTime(k[20:28]), getTime(k[28:36])
	return
}

/*
EncodeTSPO writes the 36-byte (valid_from, s, p, o, valid_to, tx_time)
key: valid_from leads so an unbound time-range query (no bound atoms) is
a single contiguous scan over this index.
*/
func EncodeTSPO(s, p, o uint32, validFrom, validTo, txTime int64) []byte {
	k := make([]byte, 36)
	putTime(k[0:8], validFrom)
	putAtom(k[8:12], s)
	putAtom(k[12:16], p)
	putAtom(k[16:20], o)
	putTime(k[20:28], validTo)
	putTime(k[28:36], txTime)
	return k
}

/*
DecodeTSPO inverts EncodeTSPO.
*/
func DecodeTSPO(k []byte) (s, p, o uint32, validFrom, validTo, txTime int64) {
	validFrom = getTime(k[0:8])
	s = getAtom(k[8:12])
	p = getAtom(k[12:16])
	o = getAtom(k[16:20])
	validTo = getTime(k[20:28])
	txTime = getTime(k[28:36])
	return
}

/*
ValidateInterval rejects a zero-width valid-time interval, per spec §8's
boundary case "Temporal insert with valid_from == valid_to: rejected as
InvalidInput".
*/
func ValidateInterval(validFrom, validTo int64) error {
	if validFrom == validTo {
		return dberr.New(dberr.KindInvalidInput, "zero-width valid-time interval")
	}
	if validFrom > validTo {
		return dberr.Errorf(dberr.KindInvalidInput, "valid_from %d after valid_to %d", validFrom, validTo)
	}
	return nil
}
