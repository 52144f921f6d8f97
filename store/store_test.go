/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krotik/quaddb/config"
	"github.com/krotik/quaddb/dberr"
	"github.com/krotik/quaddb/keymodel"
	"github.com/krotik/quaddb/patch"
	"github.com/krotik/quaddb/quad"
	"github.com/krotik/quaddb/query"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	st, err := Open(t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func drainRows(it query.Iterator) ([]query.Solution, error) {
	var out []query.Solution
	for it.Advance() {
		out = append(out, it.Current())
	}
	return out, it.Err()
}

// nonTemporalOptions mirrors DefaultOptions but with the temporal tree set
// turned off, the configuration InsertTriple's ground writes require (the
// index layer rejects ground triples against a temporal-configured store).
func nonTemporalOptions() Options {
	opts := DefaultOptions()
	opts.Temporal = false
	return opts
}

func TestInsertTripleAndQueryDefaultGraph(t *testing.T) {
	st := openTestStore(t, nonTemporalOptions())

	require.NoError(t, st.InsertTriple("alice", "knows", "bob"))

	pattern := query.Pattern{
		Subject:   query.Atom(mustIntern(t, st, "alice")),
		Predicate: query.Atom(mustIntern(t, st, "knows")),
		Object:    query.Var("who"),
	}
	it, err := st.Query(pattern, nil)
	require.NoError(t, err)

	rows, err := drainRows(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	who, ok := rows[0].Get("who")
	require.True(t, ok)
	assert.Equal(t, mustIntern(t, st, "bob"), who)
}

func TestInsertTripleIsIdempotentAcrossCalls(t *testing.T) {
	st := openTestStore(t, nonTemporalOptions())

	require.NoError(t, st.InsertTriple("alice", "knows", "bob"))
	require.NoError(t, st.InsertTriple("alice", "knows", "bob"))

	stats, err := st.Statistics()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Triples)
}

func TestInsertTemporalAsOfQuery(t *testing.T) {
	st := openTestStore(t, DefaultOptions())

	from := time.UnixMilli(1000)
	to := time.UnixMilli(2000)
	require.NoError(t, st.InsertTemporal("alice", "age", "30", from, to))

	pattern := query.Pattern{
		Subject:   query.Atom(mustIntern(t, st, "alice")),
		Predicate: query.Atom(mustIntern(t, st, "age")),
		Object:    query.Var("v"),
	}

	asOfInside := keymodel.ForAsOf(1500)
	it, err := st.Query(pattern, &asOfInside)
	require.NoError(t, err)
	rows, err := drainRows(it)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	asOfOutside := keymodel.ForAsOf(9000)
	it2, err := st.Query(pattern, &asOfOutside)
	require.NoError(t, err)
	rows2, err := drainRows(it2)
	require.NoError(t, err)
	assert.Empty(t, rows2)
}

func TestStatisticsTracksAtomsAndTriples(t *testing.T) {
	st := openTestStore(t, nonTemporalOptions())

	require.NoError(t, st.InsertTriple("alice", "knows", "bob"))
	require.NoError(t, st.InsertTriple("alice", "knows", "carol"))

	stats, err := st.Statistics()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Triples)
	// alice, knows, bob, carol (the default graph is not interned).
	assert.True(t, stats.Atoms >= 4)
}

func TestPatchRequiresPartitionedModeForDefaultGraph(t *testing.T) {
	opts := nonTemporalOptions()
	opts.GraphMode = quad.GraphModePartitioned
	st := openTestStore(t, opts)

	require.NoError(t, st.InsertTriple("alice", "knows", "bob"))

	aliceAtom := mustIntern(t, st, "alice")
	knowsAtom := mustIntern(t, st, "knows")
	bobAtom := mustIntern(t, st, "bob")
	likesAtom := mustIntern(t, st, "likes")

	p := patch.ParsedPatch{
		Where: []query.Term3{
			{Subject: query.Atom(aliceAtom), Predicate: query.Atom(knowsAtom), Object: query.Var("friend")},
		},
		Inserts: []patch.Triple{
			{Subject: query.Atom(aliceAtom), Predicate: query.Atom(likesAtom), Object: query.Var("friend")},
		},
	}

	result, err := st.Patch(p, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	pattern := query.Pattern{
		Subject:   query.Atom(aliceAtom),
		Predicate: query.Atom(likesAtom),
		Object:    query.Var("who"),
	}
	it, err := st.Query(pattern, nil)
	require.NoError(t, err)
	rows, err := drainRows(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	who, _ := rows[0].Get("who")
	assert.Equal(t, bobAtom, who)
}

func TestPatchOnUnifiedModeFailsWithoutPartitions(t *testing.T) {
	opts := DefaultOptions()
	opts.GraphMode = quad.GraphModeUnified
	st := openTestStore(t, opts)

	_, err := st.Patch(patch.ParsedPatch{}, "")
	assert.Error(t, err)
}

func TestCloseIsIdempotentSafeToCallOnce(t *testing.T) {
	st, err := Open(t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestOptionsFromConfigMatchesDefaultConfig(t *testing.T) {
	config.LoadDefaultConfig()
	opts := OptionsFromConfig()

	assert.Equal(t, config.DefaultConfig[config.PageCacheCapacity], opts.CacheCapacity)
	assert.Equal(t, config.DefaultConfig[config.EnableNamedGraphs], opts.NamedGraphsEnabled)
	assert.Equal(t, quad.GraphModeUnified, opts.GraphMode)
	assert.Equal(t, config.DefaultConfig[config.LockFile], opts.LockFileName)
	assert.False(t, opts.ReadOnly)
	assert.Equal(t, config.DefaultConfig[config.CheckpointEveryN], opts.CheckpointEveryN)
}

func TestOpenFromConfigFileRoundTrips(t *testing.T) {
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	configFile := filepath.Join(dir, "quaddb.config.json")

	// Seed a config file with a datastore location under our temp dir,
	// so the round trip doesn't touch the working directory's default
	// "db" (config.LocationDatastore's default value).
	seed := make(map[string]interface{}, len(config.DefaultConfig))
	for k, v := range config.DefaultConfig {
		seed[k] = v
	}
	seed[config.LocationDatastore] = dbDir
	raw, err := json.MarshalIndent(seed, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configFile, raw, 0644))

	st, err := OpenFromConfigFile(configFile)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.InsertTriple("alice", "knows", "bob"))
	stats, err := st.Statistics()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Triples)
}

func TestReadOnlyStoreRejectsWrites(t *testing.T) {
	opts := nonTemporalOptions()
	opts.ReadOnly = true
	st := openTestStore(t, opts)

	err := st.InsertTriple("alice", "knows", "bob")
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindInvalidInput))

	_, err = st.Patch(patch.ParsedPatch{}, "")
	require.Error(t, err)
	assert.True(t, dberr.Is(err, dberr.KindInvalidInput))
}

func TestCheckpointFlushesEveryNWrites(t *testing.T) {
	opts := nonTemporalOptions()
	opts.CheckpointEveryN = 2
	st := openTestStore(t, opts)

	require.NoError(t, st.InsertTriple("alice", "knows", "bob"))
	assert.Equal(t, 1, st.writesSinceCheckpoint)
	require.NoError(t, st.InsertTriple("alice", "knows", "carol"))
	assert.Equal(t, 0, st.writesSinceCheckpoint)
}

// mustIntern interns content through the store's own atom table so tests
// can build ground query terms with the same atom ids InsertTriple used.
func mustIntern(t *testing.T, st *Store, content string) uint32 {
	t.Helper()
	a, err := st.atoms.Intern([]byte(content))
	require.NoError(t, err)
	return a
}
