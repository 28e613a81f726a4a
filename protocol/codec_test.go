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

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriteU16LE(t *testing.T) {
	b := make([]byte, 4)
	require.NoError(t, WriteU16LE(b, 1, 0xBEEF))
	v, err := ReadU16LE(b, 1)
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), v)
}

func TestReadWriteU32LE(t *testing.T) {
	b := make([]byte, 8)
	require.NoError(t, WriteU32LE(b, 2, 0xDEADBEEF))
	v, err := ReadU32LE(b, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), v)
}

func TestReadAsciiNulOnly(t *testing.T) {
	b := make([]byte, 8)
	s, err := ReadAscii(b, 0, 8)
	require.NoError(t, err)
	require.Equal(t, "", s)
}

func TestReadAsciiNoNul(t *testing.T) {
	b := []byte("ABCDEFGH")
	s, err := ReadAscii(b, 0, 8)
	require.NoError(t, err)
	require.Equal(t, "ABCDEFGH", s)
}

func TestReadAsciiTruncatesAtNul(t *testing.T) {
	b := []byte("AB\x00\x00\x00\x00\x00\x00")
	s, err := ReadAscii(b, 0, 8)
	require.NoError(t, err)
	require.Equal(t, "AB", s)
}

func TestWriteAsciiTooLong(t *testing.T) {
	b := make([]byte, 4)
	err := WriteAscii(b, 0, 4, "TOOLONG", 0x00)
	require.Error(t, err)
	var cerr *CodecError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, InvalidEncoding, cerr.Kind)
}

func TestUtf16RoundTrip(t *testing.T) {
	b := make([]byte, 16)
	require.NoError(t, WriteUtf16LE(b, 0, 16, "Song"))
	s, err := ReadUtf16LE(b, 0, 16)
	require.NoError(t, err)
	require.Equal(t, "Song", s)
}

func TestReadTruncated(t *testing.T) {
	b := make([]byte, 2)
	_, err := ReadU32LE(b, 0)
	require.Error(t, err)
	var cerr *CodecError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, Truncated, cerr.Kind)
}
