// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package sqldump_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/featurebasedb/wiki2qid/errors"
	"github.com/featurebasedb/wiki2qid/sqldump"
)

func values(tuples []sqldump.Tuple) [][]string {
	ret := make([][]string, len(tuples))
	for i, t := range tuples {
		for _, f := range t {
			ret[i] = append(ret[i], f.Value)
		}
	}
	return ret
}

func TestStatementParse(t *testing.T) {
	props := sqldump.PagePropsStatement
	tests := []struct {
		name string
		line string
		exp  [][]string
	}{
		{
			name: "single",
			line: "INSERT INTO `page_props` VALUES (1,'wikibase_item','Q90',NULL);",
			exp:  [][]string{{"1", "wikibase_item", "Q90", "NULL"}},
		},
		{
			name: "multiple",
			line: "INSERT INTO `page_props` VALUES (1,'wikibase_item','Q90',NULL),(2,'page_image_free','Paris.jpg',0.5);",
			exp: [][]string{
				{"1", "wikibase_item", "Q90", "NULL"},
				{"2", "page_image_free", "Paris.jpg", "0.5"},
			},
		},
		{
			name: "escapes",
			line: `INSERT INTO ` + "`page_props`" + ` VALUES (3,'displaytitle','It\'s a \\ (test), really',-7);`,
			exp:  [][]string{{"3", "displaytitle", `It's a \ (test), really`, "-7"}},
		},
		{
			name: "trailing carriage return",
			line: "INSERT INTO `page_props` VALUES (4,'wikibase_item','Q1',NULL);\r",
			exp:  [][]string{{"4", "wikibase_item", "Q1", "NULL"}},
		},
		{
			name: "spaces between tuples",
			line: "INSERT INTO `page_props` VALUES (5,'a','b',1), (6,'c','d',2);",
			exp:  [][]string{{"5", "a", "b", "1"}, {"6", "c", "d", "2"}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if !props.Match(test.line) {
				t.Fatalf("expected line to match")
			}
			tuples, err := props.Parse(test.line)
			if err != nil {
				t.Fatalf("parsing: %v", err)
			}
			if got := values(tuples); !reflect.DeepEqual(got, test.exp) {
				t.Fatalf("got/exp\n%q\n%q", got, test.exp)
			}
		})
	}
}

func TestStatementParseNull(t *testing.T) {
	tuples, err := sqldump.PagePropsStatement.Parse("INSERT INTO `page_props` VALUES (1,'a','NULL',NULL);")
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if tuples[0][2].Null {
		t.Fatalf("quoted 'NULL' must be a string")
	}
	if !tuples[0][3].Null {
		t.Fatalf("bare NULL must be null")
	}
}

func TestStatementParseMalformed(t *testing.T) {
	redirect := sqldump.RedirectStatement
	tests := []struct {
		name string
		line string
	}{
		{name: "short tuple", line: "INSERT INTO `redirect` VALUES (1,0,'Paris','');"},
		{name: "long tuple", line: "INSERT INTO `redirect` VALUES (1,0,'Paris','','',7);"},
		{name: "truncated second tuple", line: "INSERT INTO `redirect` VALUES (1,0,'Paris','',''),(2,0);"},
		{name: "no terminator", line: "INSERT INTO `redirect` VALUES (1,0,'Paris','','')"},
		{name: "unterminated string", line: "INSERT INTO `redirect` VALUES (1,0,'Paris);"},
		{name: "stray string", line: "INSERT INTO `redirect` VALUES (1,0,'Paris' 'x','','');"},
		{name: "missing paren", line: "INSERT INTO `redirect` VALUES 1,0,'Paris','','';"},
		{name: "garbage after tuple", line: "INSERT INTO `redirect` VALUES (1,0,'Paris','','') x;"},
		{name: "empty", line: "INSERT INTO `redirect` VALUES ;"},
		{name: "dangling minus", line: "INSERT INTO `redirect` VALUES (1,-,'Paris','','');"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := redirect.Parse(test.line)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, errors.ErrMalformedRecord) {
				t.Fatalf("expected malformed record, got: %v", err)
			}
			if !strings.Contains(err.Error(), "`redirect`") {
				t.Fatalf("error should name the table: %v", err)
			}
		})
	}
}

func TestStatementMatch(t *testing.T) {
	page := sqldump.PageStatement
	for _, line := range []string{
		"-- MySQL dump 10.19",
		"INSERT INTO `page_props` VALUES (1,'wikibase_item','Q90',NULL);",
		"insert into `page` values (1);",
		"LOCK TABLES `page` WRITE;",
		"",
	} {
		if page.Match(line) {
			t.Errorf("%q should not match the page statement", line)
		}
	}
	if !page.Match("INSERT INTO `page` VALUES (1);") {
		t.Errorf("page insert should match")
	}
	if got := sqldump.NewStatement("categorylinks", 7).Prefix(); got != "INSERT INTO `categorylinks` VALUES " {
		t.Errorf("unexpected prefix %q", got)
	}
}

func TestTupleUint32(t *testing.T) {
	tuple := sqldump.Tuple{
		{Value: "90"},
		{Value: "Q90"},
		{Value: "Q"},
		{Value: "abc"},
		{Value: "NULL", Null: true},
		{Value: "-1"},
		{Value: "4294967296"},
		{Value: "(12"},
	}
	tests := []struct {
		i   int
		exp uint32
		err bool
	}{
		{i: 0, exp: 90},
		{i: 1, exp: 90},
		{i: 2, err: true},
		{i: 3, err: true},
		{i: 4, err: true},
		{i: 5, err: true},
		{i: 6, err: true},
		{i: 7, exp: 12},
	}
	for _, test := range tests {
		got, err := tuple.Uint32(test.i)
		if test.err {
			if !errors.Is(err, errors.ErrMalformedRecord) {
				t.Errorf("field %d: expected malformed record, got %v (%d)", test.i, err, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("field %d: %v", test.i, err)
		} else if got != test.exp {
			t.Errorf("field %d: got %d, want %d", test.i, got, test.exp)
		}
	}
}

func TestTupleTitle(t *testing.T) {
	decomposed := "Cafe\u0301"
	tuple := sqldump.Tuple{{Value: decomposed}}
	if got := tuple.Title(0); got != "Caf\u00e9" {
		t.Fatalf("expected composed title, got %q", got)
	}
	if got := tuple.String(0); got != decomposed {
		t.Fatalf("String must not normalize, got %q", got)
	}
}

func TestStatementScan(t *testing.T) {
	dump := strings.Join([]string{
		"-- MySQL dump",
		"DROP TABLE IF EXISTS `page`;",
		"INSERT INTO `page` VALUES (1,0,'Paris',0,0,0.5,'20230101000000','20230101000000',1,10,'wikitext',NULL),(2,1,'Paris',0,0,0.5,'20230101000000',NULL,2,20,'wikitext',NULL);",
		"INSERT INTO `redirect` VALUES (3,0,'Paris','','');",
		"INSERT INTO `page` VALUES (4,0,'Lyon',0,0,0.5,'20230101000000','20230101000000',4,10,'wikitext',NULL);",
		"UNLOCK TABLES;",
	}, "\n")

	var ids []string
	stats, err := sqldump.PageStatement.Scan([]byte(dump), func(t sqldump.Tuple) error {
		ids = append(ids, t.String(0))
		return nil
	})
	if err != nil {
		t.Fatalf("scanning: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"1", "2", "4"}) {
		t.Fatalf("unexpected ids %v", ids)
	}
	exp := sqldump.ScanStats{Lines: 6, Matched: 2, Tuples: 3}
	if stats != exp {
		t.Fatalf("got/exp\n%+v\n%+v", stats, exp)
	}
}

func TestStatementScanErrors(t *testing.T) {
	dump := "INSERT INTO `redirect` VALUES (3,0,'Paris','','');\nINSERT INTO `redirect` VALUES (4,0,'Lyon');\n"
	_, err := sqldump.RedirectStatement.Scan([]byte(dump), func(sqldump.Tuple) error { return nil })
	if !errors.Is(err, errors.ErrMalformedRecord) {
		t.Fatalf("expected malformed record, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error should carry the line number: %v", err)
	}

	stop := errors.New(errors.ErrUncoded, "stop")
	_, err = sqldump.RedirectStatement.Scan([]byte(dump), func(sqldump.Tuple) error { return stop })
	if !errors.Is(err, errors.ErrUncoded) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestStatementScanInvalidUTF8(t *testing.T) {
	dump := []byte("INSERT INTO `redirect` VALUES (3,0,'Par\xffis','','');")
	var title string
	_, err := sqldump.RedirectStatement.Scan(dump, func(t sqldump.Tuple) error {
		title = t.String(2)
		return nil
	})
	if err != nil {
		t.Fatalf("scanning: %v", err)
	}
	if title != "Par\uFFFDis" {
		t.Fatalf("unexpected title %q", title)
	}
}
