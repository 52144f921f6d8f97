/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package recovery

import (
	"github.com/krotik/quaddb/btree"
	"github.com/krotik/quaddb/storage/pagefile"

	"github.com/krotik/common/logutil"
	"github.com/krotik/common/stringutil"
	"github.com/krotik/common/timeutil"
)

/*
Report summarizes an orphan-page scan: pages allocated in the file that
are reachable from none of the given trees and are not already on the
free list. Orphaned pages are only reported and logged; nothing
reclaims them, since page allocation reuses only pages that are on the
free list. ScannedAt is a millisecond epoch string
stamped at scan time, so a sequence of reports can be ordered without
each caller parsing a time.Time back out of the log line.
*/
type Report struct {
	TotalPages     int
	ReachablePages int
	OrphanedPages  []uint64
	ScannedAt      string
}

/*
CollectFreeList reads pf's free page list into the set shape ScanOrphans
expects.
*/
func CollectFreeList(pf *pagefile.File) (map[uint64]bool, error) {
	ids, err := pf.FreeListPageIDs()
	if err != nil {
		return nil, err
	}
	set := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

/*
ScanOrphans walks every tree in trees, unions their reachable page sets,
and reports any page in [1, totalPages) absent from that union and from
freeListPages. Page 0 (the metadata page) is never considered an orphan.
*/
func ScanOrphans(totalPages int, freeListPages map[uint64]bool, trees []*btree.Tree) (Report, error) {
	reachable := map[uint64]bool{0: true}

	for _, t := range trees {
		if t == nil {
			continue
		}
		if err := t.Walk(func(id uint64) error {
			reachable[id] = true
			return nil
		}); err != nil {
			return Report{}, err
		}
	}

	report := Report{TotalPages: totalPages, ReachablePages: len(reachable), ScannedAt: timeutil.MakeTimestamp()}

	for id := uint64(1); id < uint64(totalPages); id++ {
		if reachable[id] || freeListPages[id] {
			continue
		}
		report.OrphanedPages = append(report.OrphanedPages, id)
	}

	return report, nil
}

/*
LogReport writes a one-line summary of a scan to logger, if non-nil.
*/
func LogReport(logger logutil.Logger, name string, r Report) {
	if logger == nil {
		return
	}
	if len(r.OrphanedPages) == 0 {
		logger.Info("recovery scan ", name, " at ", r.ScannedAt, ": ", r.ReachablePages, "/", r.TotalPages, " pages reachable, no orphans")
		return
	}
	logger.Warning("recovery scan ", name, " at ", r.ScannedAt, ": ", len(r.OrphanedPages),
		" orphaned page", stringutil.Plural(len(r.OrphanedPages)), " found (not reclaimed)")
}
