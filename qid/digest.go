// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package qid

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Digest returns a blake3 hash of the records Encode would write for titles
// and ids. It doesn't depend on map iteration order or on the block codec,
// so two runs over the same dumps produce the same digest.
func Digest(titles TitleIndex, ids IdentityIndex) string {
	keys := maps.Keys(titles)
	slices.Sort(keys)
	h := blake3.New()
	var buf []byte
	for _, title := range keys {
		rec, _ := Lookup(titles, ids, title)
		buf = appendRecord(buf[:0], rec)
		_, _ = h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestRecords is Digest for decoded records. It agrees with Digest when
// recs hold the same set of records.
func DigestRecords(recs []Record) string {
	sorted := make([]Record, len(recs))
	copy(sorted, recs)
	slices.SortFunc(sorted, func(a, b Record) bool { return a.Title < b.Title })
	h := blake3.New()
	var buf []byte
	for _, rec := range sorted {
		buf = appendRecord(buf[:0], rec)
		_, _ = h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// appendRecord appends a self-delimiting encoding of rec to buf.
func appendRecord(buf []byte, rec Record) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(rec.Title)))
	buf = append(buf, tmp[:n]...)
	buf = append(buf, rec.Title...)
	binary.BigEndian.PutUint32(tmp[:4], rec.PageID)
	buf = append(buf, tmp[:4]...)
	if rec.QID == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	binary.BigEndian.PutUint32(tmp[:4], *rec.QID)
	return append(buf, tmp[:4]...)
}
