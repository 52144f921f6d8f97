//go:build !linux && !darwin

/*
 * quaddb
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package pagefile

import "os"

/*
mapping on non-unix platforms falls back to an in-process byte buffer
kept in sync with the file via ReadAt/WriteAt, so the rest of the package
can treat page bytes uniformly regardless of platform.
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
	data := make([]byte, size)
	if m.data != nil {
		copy(data, m.data)
	} else {
		if _, err := m.file.ReadAt(data, 0); err != nil && err.Error() != "EOF" {
			// A short/empty file is expected for a fresh store.
		}
	}
	m.data = data
	return nil
}

func (m *mapping) bytes() []byte {
	return m.data
}

func (m *mapping) sync() error {
	if m.data == nil {
		return nil
	}
	if _, err := m.file.WriteAt(m.data, 0); err != nil {
		return err
	}
	return m.file.Sync()
}

/*
syncRange flushes a byte range back to the file.
*/
func (m *mapping) syncRange(offset, length int) error {
	if m.data == nil || length <= 0 {
		return nil
	}
	if offset+length > len(m.data) {
		length = len(m.data) - offset
	}
	if _, err := m.file.WriteAt(m.data[offset:offset+length], int64(offset)); err != nil {
		return err
	}
	return m.file.Sync()
}

func (m *mapping) close() error {
	err := m.sync()
	m.data = nil
	return err
}
