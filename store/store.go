/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package store is the top-level facade (spec §3): the surface a Turtle
reader, a SPARQL parser, or an HTTP layer would sit behind, mirroring
the role graph.Manager plays for the teacher's own HTTP API layer.
It wires together the atom store, the quad layer, the single-writer
lock, and the query/patch operator packages behind one Open/Close
lifecycle.
*/
package store

import (
	"path/filepath"
	"time"

	"github.com/krotik/common/logutil"

	"github.com/krotik/quaddb/atom"
	"github.com/krotik/quaddb/config"
	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/keymodel"
	"github.com/krotik/quaddb/patch"
	"github.com/krotik/quaddb/quad"
	"github.com/krotik/quaddb/query"
	"github.com/krotik/quaddb/recovery"
)

/*
Options configures Open.
*/
type Options struct {
	CacheCapacity      int
	NamedGraphsEnabled bool
	GraphMode          quad.GraphMode
	Temporal           bool
	LockFileName       string
	LockPollInterval   time.Duration
	LockAcquireTimeout time.Duration
	ReadOnly           bool
	CheckpointEveryN   int
	Clock              keymodel.Clock
	Logger             logutil.Logger
}

/*
DefaultOptions returns the options the teacher's own default
configuration values map onto (spec's config.DefaultConfig).
*/
func DefaultOptions() Options {
	config.LoadDefaultConfig()
	return OptionsFromConfig()
}

/*
OptionsFromConfig builds Options from the currently loaded config.Config,
loading config.DefaultConfig first if nothing has been loaded yet. Follows
the teacher's own pattern of reading typed values out of the config map
with Str/Int/Bool rather than unmarshalling into a struct directly
(config/config.go).
*/
func OptionsFromConfig() Options {
	if config.Config == nil {
		config.LoadDefaultConfig()
	}

	return Options{
		CacheCapacity:      int(config.Int(config.PageCacheCapacity)),
		NamedGraphsEnabled: config.Bool(config.EnableNamedGraphs),
		GraphMode:          graphModeFromString(config.Str(config.GraphMode)),
		Temporal:           true,
		LockFileName:       config.Str(config.LockFile),
		LockPollInterval:   time.Duration(config.Int(config.LockPollIntervalMs)) * time.Millisecond,
		LockAcquireTimeout: time.Duration(config.Int(config.LockAcquireTimeoutMs)) * time.Millisecond,
		ReadOnly:           config.Bool(config.EnableReadOnly),
		CheckpointEveryN:   int(config.Int(config.CheckpointEveryN)),
		Clock:              keymodel.SystemClock{},
	}
}

func graphModeFromString(s string) quad.GraphMode {
	if s == "partitioned" {
		return quad.GraphModePartitioned
	}
	return quad.GraphModeUnified
}

/*
OpenFromConfigFile loads configFile (creating it with defaults if it does
not exist, per config.LoadConfigFile) and opens the store at the
configured LocationDatastore with the resulting options.
*/
func OpenFromConfigFile(configFile string) (*Store, error) {
	if err := config.LoadConfigFile(configFile); err != nil {
		return nil, err
	}
	return Open(config.Str(config.LocationDatastore), OptionsFromConfig())
}

/*
Stats summarizes store contents (spec §3).
*/
type Stats struct {
	Triples uint64
	Atoms   uint64
	Bytes   int64
}

/*
Store is the top-level facade over one on-disk quaddb instance.
*/
type Store struct {
	dir  string
	opts Options
	log  logutil.Logger

	atoms *atom.Store
	quads *quad.Store
	lock  *recovery.WriteLock

	writesSinceCheckpoint int
}

/*
Open opens (or initializes) a store rooted at path.
*/
func Open(path string, opts Options) (*Store, error) {
	if opts.Clock == nil {
		opts.Clock = keymodel.SystemClock{}
	}
	if opts.LockFileName == "" {
		opts.LockFileName = "quaddb.lck"
	}
	log := opts.Logger
	if log == nil {
		log = logutil.GetLogger("quaddb")
	}

	log.Info("opening store at ", path)
	if opts.ReadOnly {
		log.Info("store opened read-only, writes will be rejected")
	}

	atoms, err := atom.Open(filepath.Join(path, "atoms"), opts.CacheCapacity)
	if err != nil {
		return nil, err
	}

	quads, err := quad.Open(filepath.Join(path, "quads"), opts.GraphMode, opts.NamedGraphsEnabled, opts.Temporal, opts.CacheCapacity, opts.Clock, log)
	if err != nil {
		return nil, err
	}

	lock := recovery.NewWriteLock(filepath.Join(path, opts.LockFileName), opts.LockPollInterval, opts.LockAcquireTimeout)

	return &Store{dir: path, opts: opts, log: log, atoms: atoms, quads: quads, lock: lock}, nil
}

/*
checkAllowsWrite rejects any write against a store opened with
Options.ReadOnly, per spec's ambient read-only mode.
*/
func (s *Store) checkAllowsWrite() error {
	if s.opts.ReadOnly {
		return dberr.New(dberr.KindInvalidInput, "store is open in read-only mode")
	}
	return nil
}

/*
checkpoint fences every dirty page to disk once CheckpointEveryN writes
have accumulated since the last one (spec's "WAL-style checkpoint
discipline" for the single-writer batch model, C8). CheckpointEveryN <= 0
disables periodic checkpointing; every write still reaches disk lazily
through the normal mmap write-back path and Close always flushes.
*/
func (s *Store) checkpoint() error {
	if s.opts.CheckpointEveryN <= 0 {
		return nil
	}

	s.writesSinceCheckpoint++
	if s.writesSinceCheckpoint < s.opts.CheckpointEveryN {
		return nil
	}
	s.writesSinceCheckpoint = 0

	if err := s.quads.Flush(); err != nil {
		return err
	}
	if err := s.atoms.Flush(); err != nil {
		return err
	}
	s.log.Info("checkpoint: flushed store at ", s.dir)
	return nil
}

/*
InsertTriple interns s/p/o and inserts the resulting ground triple into
graph (the default graph if graph is omitted).
*/
func (s *Store) InsertTriple(sub, pred, obj string, graph ...string) error {
	if err := s.checkAllowsWrite(); err != nil {
		return err
	}

	g, name, err := s.resolveGraphArg(graph)
	if err != nil {
		return err
	}

	sa, pa, oa, err := s.internTriple(sub, pred, obj)
	if err != nil {
		return err
	}

	if err := s.lock.Acquire(); err != nil {
		return err
	}
	defer s.lock.Release()

	if err := s.quads.Insert(sa, pa, oa, g, name); err != nil {
		return err
	}
	return s.checkpoint()
}

/*
InsertTemporal interns s/p/o and inserts a bitemporal fact valid over
[validFrom, validTo) into graph.
*/
func (s *Store) InsertTemporal(sub, pred, obj string, validFrom, validTo time.Time, graph ...string) error {
	if err := s.checkAllowsWrite(); err != nil {
		return err
	}

	g, name, err := s.resolveGraphArg(graph)
	if err != nil {
		return err
	}

	sa, pa, oa, err := s.internTriple(sub, pred, obj)
	if err != nil {
		return err
	}

	if err := s.lock.Acquire(); err != nil {
		return err
	}
	defer s.lock.Release()

	if err := s.quads.InsertTemporal(sa, pa, oa, g, name, validFrom.UnixMilli(), validTo.UnixMilli()); err != nil {
		return err
	}
	return s.checkpoint()
}

func (s *Store) internTriple(sub, pred, obj string) (sa, pa, oa uint32, err error) {
	if sa, err = s.atoms.Intern([]byte(sub)); err != nil {
		return
	}
	if pa, err = s.atoms.Intern([]byte(pred)); err != nil {
		return
	}
	oa, err = s.atoms.Intern([]byte(obj))
	return
}

func (s *Store) resolveGraphArg(graph []string) (uint32, string, error) {
	if len(graph) == 0 {
		return quad.DefaultGraph, "default", nil
	}
	g, err := s.atoms.Intern([]byte(graph[0]))
	if err != nil {
		return 0, "", err
	}
	return g, graph[0], nil
}

/*
Query executes pattern, whose ground terms are already atoms, as a
single pattern match and returns a streaming iterator of query.Solution
rows. Multi-pattern BGPs are not evaluated here.
*/
func (s *Store) Query(pattern query.Pattern, temporalPred *keymodel.TemporalPredicate) (query.Iterator, error) {
	graph := quad.DefaultGraph
	graphName := "default"
	// Atom 0 is the reserved sentinel (atom.MinAtom) that Intern never
	// assigns, so a zero-value Graph term (the caller left it unset) is
	// distinguishable from a real ground graph atom.
	if pattern.Graph.Kind() == query.AtomTerm && pattern.Graph.AtomValue() != 0 {
		graph = pattern.Graph.AtomValue()
	}

	base := query.Solution{}
	inner, err := s.quads.Query(
		pattern.Subject.ToBoundTerm(base),
		pattern.Predicate.ToBoundTerm(base),
		pattern.Object.ToBoundTerm(base),
		graph, graphName, temporalPred,
	)
	if err != nil {
		return nil, err
	}

	return &quadPatternIterator{pattern: pattern, inner: inner}, nil
}

/*
Patch applies a parsed N3 patch against graph. Patches require
GraphModePartitioned, since the patch executor operates directly on one
*index.Store; on a unified-mode store every Patch fails with
KindInvalidInput, the default graph included.
*/
func (s *Store) Patch(p patch.ParsedPatch, graph string) (patch.Result, error) {
	if err := s.checkAllowsWrite(); err != nil {
		return patch.Result{}, err
	}

	g, name := quad.DefaultGraph, "default"
	var err error
	if graph != "" && graph != "default" {
		g, name, err = s.resolveGraphArg([]string{graph})
		if err != nil {
			return patch.Result{}, err
		}
	}

	st, err := s.quads.IndexStoreFor(g, name)
	if err != nil {
		return patch.Result{}, err
	}

	exec := patch.NewExecutor(st, st.Cardinality, s.lock)
	result, err := exec.Apply(p)
	if err != nil {
		return result, err
	}
	if err := s.checkpoint(); err != nil {
		return result, err
	}
	return result, nil
}

/*
Statistics reports current triple/atom counts.
*/
func (s *Store) Statistics() (Stats, error) {
	return Stats{
		Triples: s.quads.Statistics(),
		Atoms:   s.atoms.Count(),
	}, nil
}

/*
Close closes every underlying store.
*/
func (s *Store) Close() error {
	if err := s.quads.Close(); err != nil {
		return err
	}
	return s.atoms.Close()
}

// quadPatternIterator adapts quad.ResultIterator (Graph-tagged rows) to
// the query.Iterator/query.Solution shape the operator layer streams.
type quadPatternIterator struct {
	pattern query.Pattern
	inner   *quad.ResultIterator
	cur     query.Solution
}

func (it *quadPatternIterator) Advance() bool {
	for it.inner.Advance() {
		r := it.inner.Current()
		sol := query.Solution{}
		if !bindPatternTerm(sol, it.pattern.Subject, r.Subject) {
			continue
		}
		if !bindPatternTerm(sol, it.pattern.Predicate, r.Predicate) {
			continue
		}
		if !bindPatternTerm(sol, it.pattern.Object, r.Object) {
			continue
		}
		it.cur = sol
		return true
	}
	return false
}

func (it *quadPatternIterator) Current() query.Solution { return it.cur }
func (it *quadPatternIterator) Err() error              { return it.inner.Err() }

func bindPatternTerm(sol query.Solution, term query.Term, value uint32) bool {
	if term.Kind() != query.VarTerm {
		return true
	}
	if existing, ok := sol[term.Name()]; ok {
		return existing == value
	}
	sol[term.Name()] = value
	return true
}
