/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package quad

import (
	"encoding/binary"

	"github.com/krotik/quaddb/btree"
	"github.com/krotik/quaddb/keymodel"
)

// gspoLayout and gspotLayout are the unified-mode key shapes: a 4-byte
// graph atom prefixed ahead of the plain SPO/SPOT composite key, per
// spec §4.9 option (b) ("a single tree with an extra 4-byte graph field
// prefixed to the composite key").
var (
	gspoLayout  = btree.EntryLayout{KeySize: 16, ValueSize: 8, MetaSize: 0}
	gspotLayout = btree.EntryLayout{KeySize: 40, ValueSize: 8, MetaSize: 24}
)

func encodeGraphKey(graph uint32, inner []byte) []byte {
	k := make([]byte, 4+len(inner))
	binary.BigEndian.PutUint32(k[0:4], graph)
	copy(k[4:], inner)
	return k
}

func decodeGraphKey(k []byte) (graph uint32, inner []byte) {
	return binary.BigEndian.Uint32(k[0:4]), k[4:]
}

func encodeGSPO(graph, s, p, o uint32) []byte {
	return encodeGraphKey(graph, keymodel.EncodeSPO(s, p, o))
}

func encodeGPOS(graph, s, p, o uint32) []byte {
	return encodeGraphKey(graph, keymodel.EncodePOS(s, p, o))
}

func encodeGOSP(graph, s, p, o uint32) []byte {
	return encodeGraphKey(graph, keymodel.EncodeOSP(s, p, o))
}

func encodeGSPOT(graph, s, p, o uint32, vf, vt, tx int64) []byte {
	return encodeGraphKey(graph, keymodel.EncodeSPOT(s, p, o, vf, vt, tx))
}

func encodeGPOST(graph, s, p, o uint32, vf, vt, tx int64) []byte {
	return encodeGraphKey(graph, keymodel.EncodePOST(s, p, o, vf, vt, tx))
}

func encodeGOSPT(graph, s, p, o uint32, vf, vt, tx int64) []byte {
	return encodeGraphKey(graph, keymodel.EncodeOSPT(s, p, o, vf, vt, tx))
}
