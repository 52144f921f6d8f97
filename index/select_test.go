/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package index

import (
	"testing"

	"github.com/krotik/quaddb/keymodel"
)

func TestChooseIndexNonTemporal(t *testing.T) {
	cases := []struct {
		mask BoundMask
		want keymodel.IndexKind
	}{
		{BoundS | BoundP | BoundO, keymodel.IndexSPO},
		{BoundS | BoundP, keymodel.IndexSPO},
		{BoundS, keymodel.IndexSPO},
		{BoundS | BoundO, keymodel.IndexOSP},
		{BoundO, keymodel.IndexOSP},
		{BoundP | BoundO, keymodel.IndexPOS},
		{BoundP, keymodel.IndexPOS},
		{0, keymodel.IndexSPO},
	}
	for _, c := range cases {
		got := ChooseIndex(c.mask, false, false)
		if got != c.want {
			t.Errorf("mask %03b: expected %v, got %v", c.mask, c.want, got)
		}
	}
}

func TestChooseIndexTemporal(t *testing.T) {
	cases := []struct {
		mask           BoundMask
		timeRangeBound bool
		want           keymodel.IndexKind
	}{
		{BoundS | BoundP | BoundO, false, keymodel.IndexSPOT},
		{BoundS, false, keymodel.IndexSPOT},
		{BoundO, false, keymodel.IndexOSPT},
		{BoundP, false, keymodel.IndexPOST},
		{0, false, keymodel.IndexSPOT},
		{0, true, keymodel.IndexTSPO},
	}
	for _, c := range cases {
		got := ChooseIndex(c.mask, true, c.timeRangeBound)
		if got != c.want {
			t.Errorf("mask %03b timeRangeBound=%v: expected %v, got %v", c.mask, c.timeRangeBound, c.want, got)
		}
	}
}
