/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package index

import (
	"context"
	"sync"

	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/keymodel"

	"golang.org/x/sync/errgroup"
)

/*
FanoutRollback runs every op in ops concurrently, one per index rotation.
If every op succeeds it returns nil, leaving all rotations agreeing on
the new state. If any op fails, every rotation whose op already
succeeded is undone by calling its matching entry in compensate before
the error is returned, so a partial failure leaves every tree agreeing
on the pre-call state instead of some rotations applying the write and
others not (spec's index agreement property). Exported so the quad
layer's unified-mode tree fan-out (quad/quad.go) can share the same
rollback discipline instead of a bare errgroup.
*/
func FanoutRollback(ops, compensate map[keymodel.IndexKind]func() error) error {
	var mu sync.Mutex
	succeeded := make([]keymodel.IndexKind, 0, len(ops))

	g, _ := errgroup.WithContext(context.Background())
	for kind, op := range ops {
		kind, op := kind, op
		g.Go(func() error {
			if err := op(); err != nil {
				return err
			}
			mu.Lock()
			succeeded = append(succeeded, kind)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		return nil
	}

	for _, kind := range succeeded {
		undo, ok := compensate[kind]
		if !ok {
			continue
		}
		if uerr := undo(); uerr != nil {
			// The rotation that already applied its write can no longer be
			// brought back in line by a second write; this is no longer
			// the original failure but the rotations actively disagreeing.
			return dberr.Errorf(dberr.KindCorruption, "rollback after failed write (%v) also failed: %v", err, uerr)
		}
	}

	return err
}
