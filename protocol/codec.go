/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package protocol implements the TCNet wire format: the 24-byte
// management header shared by every message, the byte-level codec used
// to read and write it, and the per-message-type packet shapes carried
// on top of it.
package protocol

import (
	"bytes"
	"unicode/utf16"
)

// need validates that reading or writing n bytes at offset stays inside b.
func need(b []byte, offset, n int, op string) error {
	if offset < 0 || n < 0 || offset+n > len(b) {
		return &CodecError{Kind: Truncated, Op: op, Offset: offset}
	}
	return nil
}

// ReadU8 reads a single byte at offset.
func ReadU8(b []byte, offset int) (uint8, error) {
	if err := need(b, offset, 1, "ReadU8"); err != nil {
		return 0, err
	}
	return b[offset], nil
}

// ReadU16LE reads a little-endian uint16 at offset.
func ReadU16LE(b []byte, offset int) (uint16, error) {
	if err := need(b, offset, 2, "ReadU16LE"); err != nil {
		return 0, err
	}
	return uint16(b[offset]) | uint16(b[offset+1])<<8, nil
}

// ReadU32LE reads a little-endian uint32 at offset.
func ReadU32LE(b []byte, offset int) (uint32, error) {
	if err := need(b, offset, 4, "ReadU32LE"); err != nil {
		return 0, err
	}
	return uint32(b[offset]) | uint32(b[offset+1])<<8 | uint32(b[offset+2])<<16 | uint32(b[offset+3])<<24, nil
}

// ReadAscii reads a length-byte ASCII field, stripping anything from the
// first NUL onward. A field containing only NULs decodes to "". A field
// with no NUL decodes to the full width.
func ReadAscii(b []byte, offset, length int) (string, error) {
	if err := need(b, offset, length, "ReadAscii"); err != nil {
		return "", err
	}
	field := b[offset : offset+length]
	if idx := bytes.IndexByte(field, 0x00); idx >= 0 {
		field = field[:idx]
	}
	return string(field), nil
}

// ReadUtf16LE reads a byteLen-byte UTF-16LE field, stopping at the first
// NUL code unit, same truncation rule as ReadAscii.
func ReadUtf16LE(b []byte, offset, byteLen int) (string, error) {
	if byteLen%2 != 0 {
		return "", &CodecError{Kind: InvalidEncoding, Op: "ReadUtf16LE", Offset: offset}
	}
	if err := need(b, offset, byteLen, "ReadUtf16LE"); err != nil {
		return "", err
	}
	units := make([]uint16, 0, byteLen/2)
	for i := 0; i < byteLen; i += 2 {
		u := uint16(b[offset+i]) | uint16(b[offset+i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// ReadBytes returns a copy of the length bytes at offset.
func ReadBytes(b []byte, offset, length int) ([]byte, error) {
	if err := need(b, offset, length, "ReadBytes"); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, b[offset:offset+length])
	return out, nil
}

// WriteU8 writes a single byte at offset.
func WriteU8(b []byte, offset int, v uint8) error {
	if err := need(b, offset, 1, "WriteU8"); err != nil {
		return err
	}
	b[offset] = v
	return nil
}

// WriteU16LE writes a little-endian uint16 at offset.
func WriteU16LE(b []byte, offset int, v uint16) error {
	if err := need(b, offset, 2, "WriteU16LE"); err != nil {
		return err
	}
	b[offset] = byte(v)
	b[offset+1] = byte(v >> 8)
	return nil
}

// WriteU32LE writes a little-endian uint32 at offset.
func WriteU32LE(b []byte, offset int, v uint32) error {
	if err := need(b, offset, 4, "WriteU32LE"); err != nil {
		return err
	}
	b[offset] = byte(v)
	b[offset+1] = byte(v >> 8)
	b[offset+2] = byte(v >> 16)
	b[offset+3] = byte(v >> 24)
	return nil
}

// WriteAscii writes s into a length-byte field, padding the remainder with
// pad. s longer than length is an InvalidEncoding error, not silent truncation.
func WriteAscii(b []byte, offset, length int, s string, pad byte) error {
	if err := need(b, offset, length, "WriteAscii"); err != nil {
		return err
	}
	if len(s) > length {
		return &CodecError{Kind: InvalidEncoding, Op: "WriteAscii", Offset: offset}
	}
	n := copy(b[offset:offset+length], s)
	for i := offset + n; i < offset+length; i++ {
		b[i] = pad
	}
	return nil
}

// WriteUtf16LE writes s, encoded as UTF-16LE, into a byteLen-byte field,
// NUL-padding the remainder.
func WriteUtf16LE(b []byte, offset, byteLen int, s string) error {
	if err := need(b, offset, byteLen, "WriteUtf16LE"); err != nil {
		return err
	}
	units := utf16.Encode([]rune(s))
	if len(units)*2 > byteLen {
		return &CodecError{Kind: InvalidEncoding, Op: "WriteUtf16LE", Offset: offset}
	}
	pos := offset
	for _, u := range units {
		b[pos] = byte(u)
		b[pos+1] = byte(u >> 8)
		pos += 2
	}
	for ; pos < offset+byteLen; pos++ {
		b[pos] = 0x00
	}
	return nil
}
