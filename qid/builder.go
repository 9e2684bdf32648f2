// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package qid

import (
	"github.com/featurebasedb/wiki2qid/errors"
	"github.com/featurebasedb/wiki2qid/logger"
	"github.com/featurebasedb/wiki2qid/sqldump"
)

// Builder holds the settings shared by the loading stages. The zero value is
// not usable; use NewBuilder.
type Builder struct {
	Namespace string
	Property  string

	// NormalizeRedirects applies the same NFC normalization to redirect
	// targets that LoadTitles applies to page titles. Without it a target
	// stored in decomposed form won't be found.
	NormalizeRedirects bool

	Page      sqldump.Statement
	PageProps sqldump.Statement
	Redirect  sqldump.Statement

	Log logger.Logger
}

// NewBuilder returns a Builder for the main namespace and the Wikidata item
// property, using the standard column layouts.
func NewBuilder() *Builder {
	return &Builder{
		Namespace: MainNamespace,
		Property:  WikidataProperty,
		Page:      sqldump.PageStatement,
		PageProps: sqldump.PagePropsStatement,
		Redirect:  sqldump.RedirectStatement,
		Log:       logger.NopLogger,
	}
}

// LoadStats describes one pass over a dump.
type LoadStats struct {
	sqldump.ScanStats
	Kept int // tuples which made it into an index
}

// LoadTitles builds the TitleIndex from a page table dump. Only pages in
// b.Namespace are kept. When a title occurs more than once, the last
// occurrence wins.
func (b *Builder) LoadTitles(data []byte) (TitleIndex, LoadStats, error) {
	titles := make(TitleIndex)
	var kept int
	scan, err := b.Page.Scan(data, func(t sqldump.Tuple) error {
		if t.String(1) != b.Namespace {
			return nil
		}
		pageID, err := t.Uint32(0)
		if err != nil {
			return errors.Wrap(err, "page_id")
		}
		titles[t.Title(2)] = pageID
		kept++
		return nil
	})
	stats := LoadStats{ScanStats: scan, Kept: kept}
	observeLoad(b.Page.Table, stats)
	if err != nil {
		return nil, stats, errors.Wrap(err, "loading page titles")
	}
	b.Log.Infof("page: %d lines matched, %d tuples, %d titles in namespace %s", scan.Matched, scan.Tuples, len(titles), b.Namespace)
	return titles, stats, nil
}

// LoadIdentities builds the IdentityIndex from a page_props dump, keeping
// the rows whose property is b.Property. The value's leading marker (the Q
// of Q90) is dropped. When a page id occurs more than once, the last
// occurrence wins.
func (b *Builder) LoadIdentities(data []byte) (IdentityIndex, LoadStats, error) {
	ids := make(IdentityIndex)
	var kept int
	scan, err := b.PageProps.Scan(data, func(t sqldump.Tuple) error {
		if t.String(1) != b.Property {
			return nil
		}
		pageID, err := t.Uint32(0)
		if err != nil {
			return errors.Wrap(err, "pp_page")
		}
		q, err := t.Uint32(2)
		if err != nil {
			return errors.Wrap(err, "pp_value")
		}
		ids[pageID] = q
		kept++
		return nil
	})
	stats := LoadStats{ScanStats: scan, Kept: kept}
	observeLoad(b.PageProps.Table, stats)
	if err != nil {
		return nil, stats, errors.Wrap(err, "loading page props")
	}
	b.Log.Infof("page_props: %d lines matched, %d tuples, %d pages with %s", scan.Matched, scan.Tuples, len(ids), b.Property)
	return ids, stats, nil
}

// ResolveStats describes a ResolveRedirects pass.
type ResolveStats struct {
	LoadStats
	Resolved        int // distinct redirect pages given an identity
	MissingTarget   int // target title not in the TitleIndex
	MissingIdentity int // target page has no identity
}

// ResolveRedirects gives every redirect in b.Namespace the identity of the
// page it points to, adding to ids. The target is looked up by title in
// titles and then by page id in ids; if either lookup fails, the redirect is
// skipped. An existing identity of the redirect page itself is overwritten.
//
// Only one hop is followed: targets are looked up among the identities ids
// held before the pass, so a redirect to another redirect stays unresolved
// unless the page_props table gave the intermediate page an identity. The
// result does not depend on the order of the redirect rows.
func (b *Builder) ResolveRedirects(data []byte, titles TitleIndex, ids IdentityIndex) (ResolveStats, error) {
	var stats ResolveStats
	resolved := make(IdentityIndex)
	scan, err := b.Redirect.Scan(data, func(t sqldump.Tuple) error {
		if t.String(1) != b.Namespace {
			return nil
		}
		stats.Kept++
		source, err := t.Uint32(0)
		if err != nil {
			return errors.Wrap(err, "rd_from")
		}
		target := t.String(2)
		if b.NormalizeRedirects {
			target = t.Title(2)
		}

		targetID, ok := titles[target]
		if !ok {
			stats.MissingTarget++
			return nil
		}
		q, ok := ids[targetID]
		if !ok {
			stats.MissingIdentity++
			return nil
		}
		resolved[source] = q
		return nil
	})
	stats.ScanStats = scan
	stats.Resolved = len(resolved)
	observeLoad(b.Redirect.Table, stats.LoadStats)
	observeResolve(stats)
	if err != nil {
		return stats, errors.Wrap(err, "resolving redirects")
	}
	for source, q := range resolved {
		ids[source] = q
	}
	b.Log.Infof("redirect: %d lines matched, %d redirects, %d resolved, %d missing target, %d target without identity",
		scan.Matched, stats.Kept, stats.Resolved, stats.MissingTarget, stats.MissingIdentity)
	return stats, nil
}
