// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/featurebasedb/wiki2qid"
	"github.com/featurebasedb/wiki2qid/errors"
	"github.com/featurebasedb/wiki2qid/qid"
	"github.com/featurebasedb/wiki2qid/storage"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
)

const nullValue = "NULL"

// InspectCommand prints the records of an output file.
type InspectCommand struct {
	// Path of the file, in any form storage accepts.
	Path string

	// Limit is the maximum number of records printed; 0 prints all of them.
	Limit int

	Storage *storage.Storage

	*wiki2qid.CmdIO
}

// NewInspectCommand returns a new instance of InspectCommand.
func NewInspectCommand(stdin io.Reader, stdout, stderr io.Writer) *InspectCommand {
	return &InspectCommand{
		Limit: 20,
		CmdIO: wiki2qid.NewCmdIO(stdin, stdout, stderr),
	}
}

// Run prints a table of records followed by a summary line.
func (cmd *InspectCommand) Run(ctx context.Context) error {
	if cmd.Path == "" {
		return errors.New(errors.ErrUsage, "path required")
	}
	if cmd.Limit < 0 {
		return errors.Newf(errors.ErrUsage, "--limit must not be negative, got %d", cmd.Limit)
	}
	store := cmd.Storage
	if store == nil {
		store = storage.New(cmd.Logger())
	}
	data, err := store.ReadFile(ctx, cmd.Path)
	if err != nil {
		return err
	}
	recs, err := qid.ReadRecords(bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(err, "inspecting %s", cmd.Path)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.Stdout)

	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault

	t.AppendHeader(table.Row{"title", "pageid", "qid"})
	var withQID int
	for i, rec := range recs {
		if rec.QID != nil {
			withQID++
		}
		if cmd.Limit > 0 && i >= cmd.Limit {
			continue
		}
		q := nullValue
		if rec.QID != nil {
			q = "Q" + strconv.FormatUint(uint64(*rec.QID), 10)
		}
		t.AppendRow(table.Row{rec.Title, rec.PageID, q})
	}
	t.Render()

	_, err = fmt.Fprintf(cmd.Stdout, "%d records, %d with qid, digest %s\n", len(recs), withQID, qid.DigestRecords(recs))
	return err
}
