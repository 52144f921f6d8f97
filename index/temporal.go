/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package index

import (
	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/keymodel"
)

/*
version is one decoded entry from the SPOT tree, used internally by the
truncation scan.
*/
type version struct {
	validFrom, validTo, txTime int64
	meta                       keymodel.Metadata
}

func (s *Store) versionsFor(sub, pred, obj uint32) ([]version, error) {
	min := keymodel.EncodeSPOT(sub, pred, obj, keymodel.MinTime, keymodel.MinTime, keymodel.MinTime)
	max := keymodel.EncodeSPOT(sub, pred, obj, keymodel.MaxTime, keymodel.MaxTime, keymodel.MaxTime)

	it, err := s.trees[keymodel.IndexSPOT].RangeScan(min, max)
	if err != nil {
		return nil, err
	}

	var out []version
	for it.Advance() {
		e := it.Current()
		_, _, _, vf, vt, tx := keymodel.DecodeSPOT(e.Key)
		out = append(out, version{validFrom: vf, validTo: vt, txTime: tx, meta: keymodel.DecodeMetadata(e.Meta)})
	}
	return out, it.Err()
}

func (s *Store) writeAllRotations(sub, pred, obj uint32, validFrom, validTo, txTime int64, meta keymodel.Metadata) error {
	metaBytes := keymodel.EncodeMetadata(meta)

	spot := keymodel.EncodeSPOT(sub, pred, obj, validFrom, validTo, txTime)
	post := keymodel.EncodePOST(sub, pred, obj, validFrom, validTo, txTime)
	ospt := keymodel.EncodeOSPT(sub, pred, obj, validFrom, validTo, txTime)
	tspo := keymodel.EncodeTSPO(sub, pred, obj, validFrom, validTo, txTime)

	ops := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPOT: func() error { return s.trees[keymodel.IndexSPOT].Insert(spot, nil, metaBytes) },
		keymodel.IndexPOST: func() error { return s.trees[keymodel.IndexPOST].Insert(post, nil, metaBytes) },
		keymodel.IndexOSPT: func() error { return s.trees[keymodel.IndexOSPT].Insert(ospt, nil, metaBytes) },
		keymodel.IndexTSPO: func() error { return s.trees[keymodel.IndexTSPO].Insert(tspo, nil, metaBytes) },
	}
	compensate := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPOT: func() error { return s.trees[keymodel.IndexSPOT].Delete(spot) },
		keymodel.IndexPOST: func() error { return s.trees[keymodel.IndexPOST].Delete(post) },
		keymodel.IndexOSPT: func() error { return s.trees[keymodel.IndexOSPT].Delete(ospt) },
		keymodel.IndexTSPO: func() error { return s.trees[keymodel.IndexTSPO].Delete(tspo) },
	}
	return FanoutRollback(ops, compensate)
}

// deleteAllRotations removes one exact version from every temporal
// rotation. meta is the version's metadata block as it stood before the
// delete, needed to restore the identical bytes if a partial failure
// forces a rollback.
func (s *Store) deleteAllRotations(sub, pred, obj uint32, validFrom, validTo, txTime int64, meta keymodel.Metadata) error {
	spot := keymodel.EncodeSPOT(sub, pred, obj, validFrom, validTo, txTime)
	post := keymodel.EncodePOST(sub, pred, obj, validFrom, validTo, txTime)
	ospt := keymodel.EncodeOSPT(sub, pred, obj, validFrom, validTo, txTime)
	tspo := keymodel.EncodeTSPO(sub, pred, obj, validFrom, validTo, txTime)
	metaBytes := keymodel.EncodeMetadata(meta)

	ops := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPOT: func() error { return s.trees[keymodel.IndexSPOT].Delete(spot) },
		keymodel.IndexPOST: func() error { return s.trees[keymodel.IndexPOST].Delete(post) },
		keymodel.IndexOSPT: func() error { return s.trees[keymodel.IndexOSPT].Delete(ospt) },
		keymodel.IndexTSPO: func() error { return s.trees[keymodel.IndexTSPO].Delete(tspo) },
	}
	compensate := map[keymodel.IndexKind]func() error{
		keymodel.IndexSPOT: func() error { return s.trees[keymodel.IndexSPOT].Insert(spot, nil, metaBytes) },
		keymodel.IndexPOST: func() error { return s.trees[keymodel.IndexPOST].Insert(post, nil, metaBytes) },
		keymodel.IndexOSPT: func() error { return s.trees[keymodel.IndexOSPT].Insert(ospt, nil, metaBytes) },
		keymodel.IndexTSPO: func() error { return s.trees[keymodel.IndexTSPO].Insert(tspo, nil, metaBytes) },
	}
	return FanoutRollback(ops, compensate)
}

/*
truncateOverlapping implements spec §4.5's non-destructive-history rule:
"On insert with identical SPO whose prior version's valid_to overlaps
the new valid_from, the prior entry's valid_to is truncated to the new
valid_from and its modified_at stamped." validTo is part of the
composite key in every temporal rotation, so truncation is a
delete-and-reinsert under the new key, not an in-place value update.
*/
func (s *Store) truncateOverlapping(sub, pred, obj uint32, newValidFrom, now int64) error {
	versions, err := s.versionsFor(sub, pred, obj)
	if err != nil {
		return err
	}

	for _, v := range versions {
		if v.meta.Tombstone {
			continue
		}
		if !(v.validFrom <= newValidFrom && newValidFrom < v.validTo) {
			continue
		}

		if err := s.deleteAllRotations(sub, pred, obj, v.validFrom, v.validTo, v.txTime, v.meta); err != nil {
			return err
		}

		truncated := keymodel.Metadata{
			CreatedAt:  v.meta.CreatedAt,
			ModifiedAt: now,
			Version:    v.meta.Version + 1,
			Tombstone:  false,
		}
		if err := s.writeAllRotations(sub, pred, obj, v.validFrom, newValidFrom, v.txTime, truncated); err != nil {
			return err
		}
	}

	return nil
}

/*
InsertTemporal adds a bitemporal fact. validFrom == validTo is rejected
as InvalidInput (spec §8 boundary case); any prior overlapping version
for the same (s, p, o) is truncated first (spec §4.5).
*/
func (s *Store) InsertTemporal(sub, pred, obj uint32, validFrom, validTo int64) error {
	if !s.temporal {
		return dberr.New(dberr.KindInvalidInput, "store is not configured for temporal triples")
	}
	if err := keymodel.ValidateInterval(validFrom, validTo); err != nil {
		return err
	}

	now := keymodel.NowMillis(s.clock)

	if err := s.truncateOverlapping(sub, pred, obj, validFrom, now); err != nil {
		return err
	}

	meta := keymodel.Metadata{CreatedAt: now, ModifiedAt: now, Version: 1, Tombstone: false}
	if err := s.writeAllRotations(sub, pred, obj, validFrom, validTo, now, meta); err != nil {
		return err
	}

	s.Cardinality.Observe(pred, obj)
	return nil
}

/*
AddCurrent adds a fact valid from now to the open-ended future (spec
§4.5's add_current).
*/
func (s *Store) AddCurrent(sub, pred, obj uint32) error {
	now := keymodel.NowMillis(s.clock)
	return s.InsertTemporal(sub, pred, obj, now, keymodel.MaxTime)
}

/*
DeleteTemporalVersion tombstones one exact (s, p, o, validFrom, validTo,
txTime) version rather than removing it outright, preserving audit
history.
*/
func (s *Store) DeleteTemporalVersion(sub, pred, obj uint32, validFrom, validTo, txTime int64) error {
	if !s.temporal {
		return dberr.New(dberr.KindInvalidInput, "store is not configured for temporal triples")
	}

	versions, err := s.versionsFor(sub, pred, obj)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if v.validFrom != validFrom || v.validTo != validTo || v.txTime != txTime {
			continue
		}
		if err := s.deleteAllRotations(sub, pred, obj, v.validFrom, v.validTo, v.txTime, v.meta); err != nil {
			return err
		}
		tombstoned := v.meta
		tombstoned.Tombstone = true
		tombstoned.ModifiedAt = keymodel.NowMillis(s.clock)
		if err := s.writeAllRotations(sub, pred, obj, v.validFrom, v.validTo, v.txTime, tombstoned); err != nil {
			return err
		}
		s.Cardinality.Unobserve(pred, obj)
		return nil
	}

	return dberr.New(dberr.KindNotFound, "temporal version not found")
}
