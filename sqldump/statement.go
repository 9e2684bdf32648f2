// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package sqldump decodes the extended INSERT statements of a MySQL table
// dump, one line at a time.
//
// A dump is mostly DDL and comments; only lines of the form
//
//	INSERT INTO `table` VALUES (...),(...),...;
//
// carry data. Each such line is decoded into tuples of a fixed width, the
// column count of the table.
package sqldump

import (
	"strings"

	"github.com/featurebasedb/wiki2qid/errors"
	"vitess.io/vitess/go/vt/sqlparser"
)

var (
	// PageStatement matches the rows of the page table: page_id,
	// page_namespace, page_title, ...
	PageStatement = NewStatement("page", 12)

	// PagePropsStatement matches the rows of the page_props table:
	// pp_page, pp_propname, pp_value, pp_sortkey.
	PagePropsStatement = NewStatement("page_props", 4)

	// RedirectStatement matches the rows of the redirect table: rd_from,
	// rd_namespace, rd_title, rd_interwiki, rd_fragment.
	RedirectStatement = NewStatement("redirect", 5)
)

// Statement describes the INSERT lines of a single table.
type Statement struct {
	Table   string
	Columns int
	prefix  string
}

// NewStatement returns a Statement matching lines which insert into table,
// each tuple having the given number of columns.
func NewStatement(table string, columns int) Statement {
	return Statement{
		Table:   table,
		Columns: columns,
		prefix:  "INSERT INTO `" + table + "` VALUES ",
	}
}

// WithColumns returns a copy of s expecting a different tuple width.
func (s Statement) WithColumns(columns int) Statement {
	s.Columns = columns
	return s
}

// Prefix returns the exact text a matching line starts with.
func (s Statement) Prefix() string {
	return s.prefix
}

// Match reports whether line is an INSERT into s's table.
func (s Statement) Match(line string) bool {
	return s.prefix != "" && strings.HasPrefix(line, s.prefix)
}

// Parse decodes a matching line into tuples of exactly s.Columns fields.
// Anything that is not a well formed list of such tuples, terminated by a
// semicolon, is reported as errors.ErrMalformedRecord.
func (s Statement) Parse(line string) ([]Tuple, error) {
	if !s.Match(line) {
		return nil, errors.Newf(errors.ErrMalformedRecord, "line is not an insert into `%s`", s.Table)
	}
	if s.Columns <= 0 {
		return nil, errors.Newf(errors.ErrMalformedRecord, "invalid column count %d for `%s`", s.Columns, s.Table)
	}
	body := strings.TrimRight(line[len(s.prefix):], " \t\r")
	if !strings.HasSuffix(body, ";") {
		return nil, s.malformed(0, "missing statement terminator")
	}
	body = body[:len(body)-1]

	tkn := sqlparser.NewStringTokenizer(body)
	var tuples []Tuple
	for {
		if typ, val := tkn.Scan(); typ != '(' {
			return nil, s.malformed(len(tuples), "expected '(' but found %s", describe(typ, val))
		}

		tuple := make(Tuple, 0, s.Columns)
		for {
			f, err := s.scanField(tkn, len(tuples))
			if err != nil {
				return nil, err
			}
			tuple = append(tuple, f)

			typ, val := tkn.Scan()
			if typ == ')' {
				break
			} else if typ != ',' {
				return nil, s.malformed(len(tuples), "expected ',' or ')' but found %s", describe(typ, val))
			}
		}
		if len(tuple) != s.Columns {
			return nil, s.malformed(len(tuples), "got %d fields, want %d", len(tuple), s.Columns)
		}
		tuples = append(tuples, tuple)

		switch typ, val := tkn.Scan(); typ {
		case 0:
			return tuples, nil
		case ',':
		default:
			return nil, s.malformed(len(tuples), "expected ',' between tuples but found %s", describe(typ, val))
		}
	}
}

// scanField reads a single literal.
func (s Statement) scanField(tkn *sqlparser.Tokenizer, n int) (Field, error) {
	typ, val := tkn.Scan()
	switch typ {
	case sqlparser.STRING, sqlparser.INTEGRAL, sqlparser.FLOAT, sqlparser.HEXNUM:
		return Field{Value: string(val)}, nil
	case sqlparser.NULL:
		return Field{Value: "NULL", Null: true}, nil
	case '-':
		typ, val = tkn.Scan()
		if typ == sqlparser.INTEGRAL || typ == sqlparser.FLOAT {
			return Field{Value: "-" + string(val)}, nil
		}
		return Field{}, s.malformed(n, "expected number after '-' but found %s", describe(typ, val))
	case sqlparser.LEX_ERROR:
		return Field{}, s.malformed(n, "unterminated string or invalid character %q", val)
	default:
		return Field{}, s.malformed(n, "expected a literal but found %s", describe(typ, val))
	}
}

func (s Statement) malformed(tuple int, format string, args ...interface{}) error {
	return errors.Wrapf(errors.Newf(errors.ErrMalformedRecord, format, args...), "decoding `%s` tuple %d", s.Table, tuple)
}

func describe(typ int, val []byte) string {
	switch {
	case typ == 0:
		return "end of line"
	case typ < 256 && len(val) == 0:
		return "'" + string(rune(typ)) + "'"
	default:
		return "'" + string(val) + "'"
	}
}
