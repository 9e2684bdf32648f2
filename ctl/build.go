// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/featurebasedb/wiki2qid"
	"github.com/featurebasedb/wiki2qid/errors"
	"github.com/featurebasedb/wiki2qid/logger"
	"github.com/featurebasedb/wiki2qid/qid"
	"github.com/featurebasedb/wiki2qid/sqldump"
	"github.com/featurebasedb/wiki2qid/storage"
	"github.com/linkedin/goavro/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sync/errgroup"
)

// BuildConfig holds the options of a build. The toml names are the flag
// names, so a file written by generate-config can be passed to --config.
type BuildConfig struct {
	InputPage      string `toml:"input-page"`
	InputPageProps string `toml:"input-page-props"`
	InputRedirect  string `toml:"input-redirect"`
	Output         string `toml:"output"`

	NormalizeRedirects bool   `toml:"normalize-redirects"`
	Sorted             bool   `toml:"sorted"`
	Codec              string `toml:"codec"`
	BlockSize          int    `toml:"block-size"`
	Concurrent         bool   `toml:"concurrent"`

	PageColumns      int `toml:"page-columns"`
	PagePropsColumns int `toml:"page-props-columns"`
	RedirectColumns  int `toml:"redirect-columns"`

	MetricsPath string `toml:"metrics-path"`
	LogPath     string `toml:"log-path"`
	Verbose     bool   `toml:"verbose"`
	AWSRegion   string `toml:"aws-region"`
}

// NewBuildConfig returns the default options.
func NewBuildConfig() BuildConfig {
	return BuildConfig{
		Codec:            goavro.CompressionDeflateLabel,
		BlockSize:        qid.DefaultBlockSize,
		Concurrent:       true,
		PageColumns:      sqldump.PageStatement.Columns,
		PagePropsColumns: sqldump.PagePropsStatement.Columns,
		RedirectColumns:  sqldump.RedirectStatement.Columns,
	}
}

// BuildCommand reads the page, page_props and redirect dumps and writes the
// title to qid mapping.
type BuildCommand struct {
	BuildConfig

	// Storage opens inputs and the output. If nil, one is created on Run.
	Storage *storage.Storage

	*wiki2qid.CmdIO
}

// NewBuildCommand returns a new instance of BuildCommand.
func NewBuildCommand(stdin io.Reader, stdout, stderr io.Writer) *BuildCommand {
	return &BuildCommand{
		BuildConfig: NewBuildConfig(),
		CmdIO:       wiki2qid.NewCmdIO(stdin, stdout, stderr),
	}
}

func (cmd *BuildCommand) validate() error {
	required := []struct{ flag, value string }{
		{"input-page", cmd.InputPage},
		{"input-page-props", cmd.InputPageProps},
		{"input-redirect", cmd.InputRedirect},
		{"output", cmd.Output},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.Newf(errors.ErrUsage, "--%s is required", r.flag)
		}
	}
	switch cmd.Codec {
	case goavro.CompressionNullLabel, goavro.CompressionDeflateLabel, goavro.CompressionSnappyLabel:
	default:
		return errors.Newf(errors.ErrUsage, "unknown codec %q: must be one of null, deflate, snappy", cmd.Codec)
	}
	if cmd.BlockSize <= 0 {
		return errors.Newf(errors.ErrUsage, "--block-size must be positive, got %d", cmd.BlockSize)
	}
	if cmd.PageColumns < 3 || cmd.PagePropsColumns < 3 || cmd.RedirectColumns < 3 {
		return errors.New(errors.ErrUsage, "column counts must be at least 3")
	}
	return nil
}

// setupLogger replaces the command's logger when a log file or verbose
// logging was asked for. The returned function closes the log file.
func (cmd *BuildCommand) setupLogger() (func() error, error) {
	if cmd.LogPath == "" && !cmd.Verbose {
		return func() error { return nil }, nil
	}
	var w io.Writer = cmd.Stderr
	closer := func() error { return nil }
	if cmd.LogPath != "" {
		fw, err := logger.NewFileWriter(cmd.LogPath)
		if err != nil {
			return nil, errors.Wrapf(errors.WithCode(err, errors.ErrUsage), "opening log file %s", cmd.LogPath)
		}
		w, closer = fw, fw.Close
	}
	if cmd.Verbose {
		cmd.SetLogger(logger.NewVerboseLogger(w))
	} else {
		cmd.SetLogger(logger.NewStandardLogger(w))
	}
	return closer, nil
}

// Run executes the build.
func (cmd *BuildCommand) Run(ctx context.Context) (err error) {
	if err := cmd.validate(); err != nil {
		return err
	}
	closeLog, err := cmd.setupLogger()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing log file")
		}
	}()
	log := cmd.Logger()
	start := time.Now()

	store := cmd.Storage
	if store == nil {
		store = storage.New(log)
		store.Region = cmd.AWSRegion
	}

	b := qid.NewBuilder()
	b.NormalizeRedirects = cmd.NormalizeRedirects
	b.Page = b.Page.WithColumns(cmd.PageColumns)
	b.PageProps = b.PageProps.WithColumns(cmd.PagePropsColumns)
	b.Redirect = b.Redirect.WithColumns(cmd.RedirectColumns)
	b.Log = log

	var titles qid.TitleIndex
	var ids qid.IdentityIndex
	loadTitles := func(ctx context.Context) error {
		data, err := cmd.read(ctx, store, cmd.InputPage)
		if err != nil {
			return err
		}
		titles, _, err = b.LoadTitles(data)
		return err
	}
	loadIdentities := func(ctx context.Context) error {
		data, err := cmd.read(ctx, store, cmd.InputPageProps)
		if err != nil {
			return err
		}
		ids, _, err = b.LoadIdentities(data)
		return err
	}

	if cmd.Concurrent {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return loadTitles(gctx) })
		g.Go(func() error { return loadIdentities(gctx) })
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		if err := loadTitles(ctx); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := loadIdentities(ctx); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := cmd.read(ctx, store, cmd.InputRedirect)
	if err != nil {
		return err
	}
	if _, err := b.ResolveRedirects(data, titles, ids); err != nil {
		return err
	}
	logMemory(ctx, log)
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := store.Create(ctx, cmd.Output)
	if err != nil {
		return err
	}
	enc := qid.NewEncoder()
	enc.Codec = cmd.Codec
	enc.BlockSize = cmd.BlockSize
	enc.Sorted = cmd.Sorted
	enc.Log = log
	stats, err := enc.Encode(out, titles, ids)
	if err != nil {
		if aerr := out.Abort(); aerr != nil {
			log.Warnf("discarding %s: %v", cmd.Output, aerr)
		}
		return errors.Wrapf(err, "writing %s", cmd.Output)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "writing %s", cmd.Output)
	}
	log.Infof("wrote %s records to %s in %s, digest %s",
		humanize.Comma(int64(stats.Records)), cmd.Output, time.Since(start).Round(time.Millisecond), qid.Digest(titles, ids))

	if cmd.MetricsPath != "" {
		if err := prometheus.WriteToTextfile(cmd.MetricsPath, prometheus.DefaultGatherer); err != nil {
			return errors.Wrapf(errors.WithCode(err, errors.ErrOutputUnwritable), "writing metrics to %s", cmd.MetricsPath)
		}
	}
	return nil
}

func (cmd *BuildCommand) read(ctx context.Context, store *storage.Storage, name string) ([]byte, error) {
	t := time.Now()
	data, err := store.ReadFile(ctx, name)
	if err != nil {
		return nil, err
	}
	cmd.Logger().Infof("read %s (%s) in %s", name, humanize.Bytes(uint64(len(data))), time.Since(t).Round(time.Millisecond))
	return data, nil
}

// logMemory logs the resident set size of the process. Failing to get it
// isn't an error.
func logMemory(ctx context.Context, log logger.Logger) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		log.Debugf("getting process: %v", err)
		return
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		log.Debugf("getting memory info: %v", err)
		return
	}
	log.Infof("indexes loaded, resident memory %s", humanize.Bytes(mem.RSS))
}
