//go:build linux || darwin

/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pagefile

import (
	"os"

	"golang.org/x/sys/unix"
)

/*
mapping is a memory-mapped view of a file, grown by remapping as the file
is extended. This mirrors the approach real embedded Go stores (bbolt)
use: mmap the whole data file read-write and let page reads/writes touch
the mapped bytes directly, with msync used as the write-back fence.
*/
type mapping struct {
	file *os.File
	data []byte
}

func openMapping(f *os.File, size int64) (*mapping, error) {
	m := &mapping{file: f}
	if size > 0 {
		if err := m.remap(size); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *mapping) remap(size int64) error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return err
		}
		m.data = nil
	}

	data, err := unix.Mmap(int(m.file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}

	m.data = data

	return nil
}

func (m *mapping) bytes() []byte {
	return m.data
}

/*
sync flushes modified pages back to the file, fencing the write-back path
used by page commits.
*/
func (m *mapping) sync() error {
	if m.data == nil {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

/*
syncRange flushes a byte range of the mapping back to the file. msync
operates on whole pages containing the given range, so a sub-range sync
still fences everything sharing a page with it.
*/
func (m *mapping) syncRange(offset, length int) error {
	if m.data == nil || length <= 0 {
		return nil
	}
	if offset+length > len(m.data) {
		length = len(m.data) - offset
	}
	return unix.Msync(m.data[offset:offset+length], unix.MS_SYNC)
}

func (m *mapping) close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
