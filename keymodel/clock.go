/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package keymodel implements the bitemporal key layout and comparator
described in spec.md C5: fixed-width composite keys over interned atom
ids, rotated for each maintained index order, plus the temporal query
predicates (AsOf/Range/AllTime/Current) applied at enumeration time.
*/
package keymodel

import "time"

/*
Clock supplies the current instant to temporal writes and to Current
queries. Production code uses SystemClock; tests inject a fixed clock so
truncation and AsOf behavior is reproducible.
*/
type Clock interface {
	Now() time.Time
}

/*
SystemClock is the production Clock, backed by time.Now().
*/
type SystemClock struct{}

/*
Now implements Clock.
*/
func (SystemClock) Now() time.Time { return time.Now() }

/*
NowMillis returns c.Now() as a millisecond epoch, the unit every temporal
field in this package is stored in.
*/
func NowMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}
