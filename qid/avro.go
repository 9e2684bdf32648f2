// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package qid

import (
	"io"
	"math"

	"github.com/featurebasedb/wiki2qid/errors"
	"github.com/featurebasedb/wiki2qid/logger"
	"github.com/linkedin/goavro/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Schema is the Avro schema of the output file.
const Schema = `{
	"type": "record",
	"name": "wiki2qid",
	"fields": [
		{"name": "title", "type": "string"},
		{"name": "pageid", "type": "int"},
		{"name": "qid", "type": ["null", "int"]}
	]
}`

const DefaultBlockSize = 10000

// Record is one row of the output: an article title, its page id and, if it
// has one, the number of its Wikidata item.
type Record struct {
	Title  string
	PageID uint32
	QID    *uint32
}

// Encoder writes the join of a TitleIndex and an IdentityIndex as an Avro
// object container file.
type Encoder struct {
	// Codec is the block compression: "null", "deflate" or "snappy".
	Codec string

	// BlockSize is the number of records per container block.
	BlockSize int

	// Sorted writes records in title order instead of map order.
	Sorted bool

	Log logger.Logger
}

// NewEncoder returns an Encoder writing deflate-compressed blocks.
func NewEncoder() *Encoder {
	return &Encoder{
		Codec:     goavro.CompressionDeflateLabel,
		BlockSize: DefaultBlockSize,
		Log:       logger.NopLogger,
	}
}

// EncodeStats describes an Encode.
type EncodeStats struct {
	Records int
	WithQID int
}

// Encode writes one record for every title in titles, with the identity of
// its page from ids when there is one. It doesn't close w.
func (e *Encoder) Encode(w io.Writer, titles TitleIndex, ids IdentityIndex) (EncodeStats, error) {
	var stats EncodeStats
	blockSize := e.BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	ocfw, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Schema:          Schema,
		CompressionName: e.Codec,
	})
	if err != nil {
		return stats, errors.Wrap(errors.WithCode(err, errors.ErrOutputUnwritable), "creating avro writer")
	}

	block := make([]map[string]interface{}, 0, blockSize)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		if err := ocfw.Append(block); err != nil {
			return errors.Wrap(errors.WithCode(err, errors.ErrOutputUnwritable), "appending avro block")
		}
		CounterRecordsWritten.Add(float64(len(block)))
		block = block[:0]
		return nil
	}
	add := func(title string, pageID uint32) error {
		native, hasQID, err := toNative(title, pageID, ids)
		if err != nil {
			return err
		}
		if hasQID {
			stats.WithQID++
		}
		stats.Records++
		block = append(block, native)
		if len(block) == blockSize {
			return flush()
		}
		return nil
	}

	if e.Sorted {
		keys := maps.Keys(titles)
		slices.Sort(keys)
		for _, title := range keys {
			if err := add(title, titles[title]); err != nil {
				return stats, err
			}
		}
	} else {
		for title, pageID := range titles {
			if err := add(title, pageID); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	if e.Log != nil {
		e.Log.Infof("wrote %d records (%d with qid) using %s codec", stats.Records, stats.WithQID, ocfw.CompressionName())
	}
	return stats, nil
}

func toNative(title string, pageID uint32, ids IdentityIndex) (map[string]interface{}, bool, error) {
	if pageID > math.MaxInt32 {
		return nil, false, errors.Newf(errors.ErrMalformedRecord, "page id %d of %q does not fit the int pageid column", pageID, title)
	}
	native := map[string]interface{}{
		"title":  title,
		"pageid": int32(pageID),
		"qid":    nil,
	}
	q, ok := ids[pageID]
	if !ok {
		return native, false, nil
	}
	if q > math.MaxInt32 {
		return nil, false, errors.Newf(errors.ErrMalformedRecord, "qid %d of %q does not fit the int qid column", q, title)
	}
	native["qid"] = goavro.Union("int", int32(q))
	return native, true, nil
}

// ReadRecords decodes every record of an object container file written by
// an Encoder.
func ReadRecords(r io.Reader) ([]Record, error) {
	ocfr, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening avro reader")
	}
	var recs []Record
	for ocfr.Scan() {
		datum, err := ocfr.Read()
		if err != nil {
			return nil, errors.Wrapf(err, "reading record %d", len(recs))
		}
		rec, err := fromNative(datum)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding record %d", len(recs))
		}
		recs = append(recs, rec)
	}
	if err := ocfr.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning avro file")
	}
	return recs, nil
}

func fromNative(datum interface{}) (Record, error) {
	m, ok := datum.(map[string]interface{})
	if !ok {
		return Record{}, errors.Errorf("unexpected datum type %T", datum)
	}
	title, ok := m["title"].(string)
	if !ok {
		return Record{}, errors.Errorf("unexpected title %v", m["title"])
	}
	pageID, ok := m["pageid"].(int32)
	if !ok {
		return Record{}, errors.Errorf("unexpected pageid %v", m["pageid"])
	}
	rec := Record{Title: title, PageID: uint32(pageID)}
	switch v := m["qid"].(type) {
	case nil:
	case map[string]interface{}:
		q, ok := v["int"].(int32)
		if !ok {
			return Record{}, errors.Errorf("unexpected qid %v", v)
		}
		uq := uint32(q)
		rec.QID = &uq
	default:
		return Record{}, errors.Errorf("unexpected qid %v", v)
	}
	return rec, nil
}
