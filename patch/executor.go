/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package patch implements the N3 Patch Executor (spec §4.7, C7): the
7-step evaluate/substitute/commit-or-rollback algorithm that applies a
WHERE-scoped bag of DELETE/INSERT triple templates against a graph.
Batch/rollback discipline is grounded on graph/trans.go's Trans, which
buffers stores and removes in memory and only touches the storage
layer's write path when Commit is called — Executor.Apply does the
same, buffering resolved ground triples and only calling into the index
layer once every step has succeeded.
*/
package patch

import (
	"github.com/google/uuid"

	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/index"
	"github.com/krotik/quaddb/query"
	"github.com/krotik/quaddb/recovery"

	"github.com/krotik/common/stringutil"
)

/*
Triple is a DELETE/INSERT template: each position is either a ground
Term or a variable Term resolved from the WHERE binding being applied.
*/
type Triple struct {
	Subject, Predicate, Object query.Term
}

/*
ParsedPatch is a patch already split into its WHERE clause and its
DELETE/INSERT template lists (parsing N3 patch syntax itself is out of
scope; a caller-supplied parser produces this).
*/
type ParsedPatch struct {
	Where   []query.Term3
	Deletes []Triple
	Inserts []Triple
}

/*
Result reports what a patch actually did.
*/
type Result struct {
	Deleted, Inserted int
	TxID              uuid.UUID
}

/*
tripleStore is the surface Executor needs from the underlying Multi-Index
Store: query.Store's read path (for evaluating WHERE) plus the ground
write path Apply commits through. *index.Store satisfies this
implicitly; the interface exists so tests can wrap a real store with one
that fails a chosen write, to exercise commit's rollback.
*/
type tripleStore interface {
	query.Store
	InsertTriple(sub, pred, obj uint32) error
	DeleteTriple(sub, pred, obj uint32) error
}

/*
Executor applies parsed patches against one Multi-Index Store, guarded
by a single-writer lock.
*/
type Executor struct {
	store tripleStore
	card  *index.CardinalityCounters
	lock  *recovery.WriteLock
}

/*
NewExecutor builds an Executor over st, using lock as the single-writer
guard shared with any other writer of the same store.
*/
func NewExecutor(st tripleStore, card *index.CardinalityCounters, lock *recovery.WriteLock) *Executor {
	return &Executor{store: st, card: card, lock: lock}
}

/*
Apply runs the 7-step algorithm (spec §4.7). Readers are not blocked by
Apply. Commit's inserts and deletes become visible one triple at a time,
so a concurrent reader can observe a partly applied patch.
*/
func (e *Executor) Apply(p ParsedPatch) (Result, error) {
	if err := e.lock.Acquire(); err != nil {
		return Result{}, err
	}
	defer e.lock.Release()

	if len(p.Where) == 0 && (containsVar(p.Deletes) || containsVar(p.Inserts)) {
		return Result{}, dberr.New(dberr.KindInvalidInput, "patch has unbound variables and no WHERE clause")
	}

	bindings, err := e.evalWhere(p.Where)
	if err != nil {
		return Result{}, err
	}
	if len(bindings) == 0 {
		bindings = []query.Solution{{}}
	}

	batch := newBatch()

	for _, b := range bindings {
		for _, tpl := range p.Deletes {
			s, p2, o, ok := ground(tpl, b)
			if !ok {
				continue
			}
			batch.deletes = append(batch.deletes, triple{s, p2, o})
		}
	}
	for _, b := range bindings {
		for _, tpl := range p.Inserts {
			s, p2, o, ok := ground(tpl, b)
			if !ok {
				continue
			}
			batch.inserts = append(batch.inserts, triple{s, p2, o})
		}
	}

	if err := e.commit(batch); err != nil {
		return Result{}, dberr.Errorf(dberr.KindPatchFailed, "patch rolled back: %v", err)
	}

	return Result{Deleted: len(batch.deletes), Inserted: len(batch.inserts), TxID: newTxID()}, nil
}

func (e *Executor) evalWhere(patterns []query.Term3) ([]query.Solution, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	bgp, err := query.NewBGP(e.store, e.card, patterns, nil)
	if err != nil {
		return nil, err
	}

	var out []query.Solution
	for bgp.Advance() {
		out = append(out, bgp.Current())
	}
	return out, bgp.Err()
}

type triple struct{ s, p, o uint32 }

type batch struct {
	deletes []triple
	inserts []triple
}

func newBatch() *batch { return &batch{} }

// commit applies deletes then inserts (step 4 then step 5). If any write
// fails partway through the batch, every write already issued is undone
// (deletes re-inserted, inserts re-deleted) before the error is
// returned, so a failed patch leaves the store exactly where it found
// it, matching Trans.Commit's rollback-on-failure discipline.
func (e *Executor) commit(b *batch) error {
	var deleted, inserted []triple

	rollback := func() error {
		for _, t := range inserted {
			if err := e.store.DeleteTriple(t.s, t.p, t.o); err != nil {
				return err
			}
		}
		for _, t := range deleted {
			if err := e.store.InsertTriple(t.s, t.p, t.o); err != nil {
				return err
			}
		}
		return nil
	}

	for _, t := range b.deletes {
		if err := e.store.DeleteTriple(t.s, t.p, t.o); err != nil {
			if rerr := rollback(); rerr != nil {
				return dberr.Errorf(dberr.KindCorruption, "rollback after failed delete (%v) also failed: %v", err, rerr)
			}
			return dberr.Errorf(dberr.KindPatchFailed, "delete failed after %d write%s already applied, rolled back: %v",
				len(deleted), stringutil.Plural(len(deleted)), err)
		}
		deleted = append(deleted, t)
	}
	for _, t := range b.inserts {
		if err := e.store.InsertTriple(t.s, t.p, t.o); err != nil {
			if rerr := rollback(); rerr != nil {
				return dberr.Errorf(dberr.KindCorruption, "rollback after failed insert (%v) also failed: %v", err, rerr)
			}
			applied := len(deleted) + len(inserted)
			return dberr.Errorf(dberr.KindPatchFailed, "insert failed after %d write%s already applied, rolled back: %v",
				applied, stringutil.Plural(applied), err)
		}
		inserted = append(inserted, t)
	}
	return nil
}

func ground(t Triple, b query.Solution) (s, p, o uint32, ok bool) {
	s, ok1 := resolveTerm(t.Subject, b)
	p, ok2 := resolveTerm(t.Predicate, b)
	o, ok3 := resolveTerm(t.Object, b)
	return s, p, o, ok1 && ok2 && ok3
}

func resolveTerm(t query.Term, b query.Solution) (uint32, bool) {
	if t.Kind() == query.AtomTerm {
		return t.AtomValue(), true
	}
	return b.Get(t.Name())
}

func containsVar(triples []Triple) bool {
	for _, t := range triples {
		if t.Subject.Kind() == query.VarTerm || t.Predicate.Kind() == query.VarTerm || t.Object.Kind() == query.VarTerm {
			return true
		}
	}
	return false
}

func newTxID() uuid.UUID {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.UUID{}
	}
	return id
}
