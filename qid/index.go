// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package qid joins the page, page_props and redirect tables of a Wikipedia
// dump into one record per article title, carrying the article's page id and,
// when known, the number of its Wikidata item.
//
// The stages run in a fixed order. LoadTitles and LoadIdentities are
// independent of each other; ResolveRedirects needs the output of both and
// adds to the IdentityIndex; an Encoder finally writes the left join of the
// TitleIndex with the IdentityIndex.
package qid

const (
	// MainNamespace is the namespace of encyclopedia articles, as it
	// appears in the page_namespace and rd_namespace columns.
	MainNamespace = "0"

	// WikidataProperty is the pp_propname of the page_props rows which
	// link a page to its Wikidata item.
	WikidataProperty = "wikibase_item"
)

// TitleIndex maps a normalized page title to its page id. It is built once
// by LoadTitles and only read afterwards.
type TitleIndex map[string]uint32

// IdentityIndex maps a page id to the number of its Wikidata item (90 for
// Q90). ResolveRedirects adds entries to it.
type IdentityIndex map[uint32]uint32

// Lookup returns the record for title. ok is false if title is not indexed.
func Lookup(titles TitleIndex, ids IdentityIndex, title string) (rec Record, ok bool) {
	pageID, ok := titles[title]
	if !ok {
		return Record{}, false
	}
	rec = Record{Title: title, PageID: pageID}
	if q, ok := ids[pageID]; ok {
		rec.QID = &q
	}
	return rec, true
}
