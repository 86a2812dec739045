// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package descriptor

import (
	"fmt"
	"strings"
)

const (
	// inputCharset is the set of characters a descriptor may contain,
	// ordered so that the checksum catches the most likely typing errors.
	inputCharset = "0123456789()[],'/*abcdefgh@:$%{}" +
		"IJKLMNOPQRSTUVWXYZ&+-.;<=>?!^_|~" +
		"ijklmnopqrstuvwxyzABCDEFGH`#\"\\ "

	// checksumCharset is the bech32 character set used for the eight
	// checksum characters.
	checksumCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

	// ChecksumLength is the number of characters of a descriptor
	// checksum.
	ChecksumLength = 8
)

var polymodGenerator = [5]uint64{
	0xf5dee51989, 0xa9fdca3312, 0x1bab10e32d, 0x3706b1677a, 0x644d626ffd,
}

func polymod(c uint64, val uint64) uint64 {
	c0 := c >> 35
	c = ((c & 0x7ffffffff) << 5) ^ val
	for i := 0; i < 5; i++ {
		if (c0>>uint(i))&1 != 0 {
			c ^= polymodGenerator[i]
		}
	}

	return c
}

// Checksum computes the BIP-380 checksum of a descriptor string that carries
// no checksum suffix.
func Checksum(desc string) (string, error) {
	var (
		c        uint64 = 1
		cls      uint64
		clsCount int
	)
	for i := 0; i < len(desc); i++ {
		pos := strings.IndexByte(inputCharset, desc[i])
		if pos < 0 {
			return "", fmt.Errorf("%w: invalid character %q at "+
				"position %d", ErrInvalidDescriptor, desc[i], i)
		}

		// Emit the low five bits of every character, and a symbol for
		// the class bits of each group of three characters.
		c = polymod(c, uint64(pos)&31)
		cls = cls*3 + uint64(pos>>5)
		clsCount++
		if clsCount == 3 {
			c = polymod(c, cls)
			cls = 0
			clsCount = 0
		}
	}
	if clsCount > 0 {
		c = polymod(c, cls)
	}
	for i := 0; i < ChecksumLength; i++ {
		c = polymod(c, 0)
	}
	c ^= 1

	var sb strings.Builder
	for i := 0; i < ChecksumLength; i++ {
		sb.WriteByte(checksumCharset[(c>>(5*(7-uint(i))))&31])
	}

	return sb.String(), nil
}

// AddChecksum returns desc with its checksum appended as "#xxxxxxxx".
func AddChecksum(desc string) (string, error) {
	sum, err := Checksum(desc)
	if err != nil {
		return "", err
	}

	return desc + "#" + sum, nil
}

// splitChecksum separates an optional checksum suffix from a descriptor and
// verifies it when present.
func splitChecksum(desc string) (string, error) {
	idx := strings.LastIndexByte(desc, '#')
	if idx < 0 {
		if _, err := Checksum(desc); err != nil {
			return "", err
		}
		return desc, nil
	}

	body, sum := desc[:idx], desc[idx+1:]
	if len(sum) != ChecksumLength {
		return "", fmt.Errorf("%w: checksum %q must have %d characters",
			ErrInvalidDescriptor, sum, ChecksumLength)
	}

	want, err := Checksum(body)
	if err != nil {
		return "", err
	}
	if sum != want {
		return "", fmt.Errorf("%w: checksum mismatch, got %s expected %s",
			ErrInvalidDescriptor, sum, want)
	}

	return body, nil
}
