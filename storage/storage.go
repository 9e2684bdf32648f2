// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package storage reads dump files and writes output files. Names may be
// local paths, s3://bucket/key URLs, or (for reading only) http(s) URLs.
// Inputs ending in .gz are decompressed as they are read.
package storage

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/featurebasedb/wiki2qid/errors"
	"github.com/featurebasedb/wiki2qid/logger"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
)

const s3Scheme = "s3://"

// Storage opens inputs and outputs by name.
type Storage struct {
	// S3 is used for s3:// names. If nil, a client is created on first use
	// from the default AWS credential chain and Region.
	S3     s3iface.S3API
	Region string

	// HTTP is used for http:// and https:// names.
	HTTP *retryablehttp.Client

	Log logger.Logger
}

// New returns a Storage with a retrying HTTP client whose request logs go to
// log at debug level.
func New(log logger.Logger) *Storage {
	if log == nil {
		log = logger.NopLogger
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = debugPrintfer{log}
	return &Storage{
		HTTP: client,
		Log:  log,
	}
}

// ReadFile reads the whole of name into memory. Any failure is reported as
// errors.ErrInputUnavailable.
func (s *Storage) ReadFile(ctx context.Context, name string) ([]byte, error) {
	var rc io.ReadCloser
	var err error
	switch {
	case strings.HasPrefix(name, s3Scheme):
		rc, err = s.openS3(ctx, name)
	case strings.HasPrefix(name, "http://"), strings.HasPrefix(name, "https://"):
		rc, err = s.openHTTP(ctx, name)
	default:
		rc, err = os.Open(name)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.WithCode(err, errors.ErrInputUnavailable), "opening %s", name)
	}
	defer rc.Close()

	var r io.Reader = rc
	if strings.HasSuffix(name, ".gz") {
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, errors.Wrapf(errors.WithCode(err, errors.ErrInputUnavailable), "decompressing %s", name)
		}
		defer zr.Close()
		r = zr
	}

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrapf(errors.WithCode(err, errors.ErrInputUnavailable), "reading %s", name)
	}
	return buf.Bytes(), nil
}

// Output is a file being written. Close commits it; Abort discards what was
// written. Only the first of the two calls has an effect.
type Output interface {
	io.WriteCloser
	Abort() error
}

// Create opens name for writing. Local files are written through as data
// arrives; s3 objects are buffered and uploaded on Close. Errors from Create
// and from the returned Output are reported as errors.ErrOutputUnwritable.
func (s *Storage) Create(ctx context.Context, name string) (Output, error) {
	if strings.HasPrefix(name, s3Scheme) {
		bucket, key, err := parseS3URL(name)
		if err != nil {
			return nil, errors.Wrapf(errors.WithCode(err, errors.ErrOutputUnwritable), "creating %s", name)
		}
		client, err := s.s3Client()
		if err != nil {
			return nil, errors.Wrapf(errors.WithCode(err, errors.ErrOutputUnwritable), "creating %s", name)
		}
		return &s3Writer{ctx: ctx, client: client, bucket: bucket, key: key, name: name}, nil
	}

	f, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrapf(errors.WithCode(err, errors.ErrOutputUnwritable), "creating %s", name)
	}
	return &fileWriter{f: f, w: bufio.NewWriter(f), name: name}, nil
}

func (s *Storage) s3Client() (s3iface.S3API, error) {
	if s.S3 != nil {
		return s.S3, nil
	}
	cfg := aws.NewConfig()
	if s.Region != "" {
		cfg = cfg.WithRegion(s.Region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	s.S3 = s3.New(sess)
	return s.S3, nil
}

func (s *Storage) openS3(ctx context.Context, name string) (io.ReadCloser, error) {
	bucket, key, err := parseS3URL(name)
	if err != nil {
		return nil, err
	}
	client, err := s.s3Client()
	if err != nil {
		return nil, err
	}
	result, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey:
				return nil, errors.Errorf("s3 object %s does not exist", name)
			}
		}
		return nil, errors.Wrap(err, "fetching s3 object")
	}
	return result.Body, nil
}

func (s *Storage) openHTTP(ctx context.Context, name string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, name, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "getting via http")
	}
	if resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errors.Errorf("got status %d via http", resp.StatusCode)
	}
	return resp.Body, nil
}

func parseS3URL(name string) (bucket, key string, err error) {
	u, err := url.Parse(name)
	if err != nil {
		return "", "", errors.Wrapf(err, "parsing s3 url %v", name)
	}
	if u.Host == "" || len(u.Path) < 2 {
		return "", "", errors.Errorf("s3 url %v needs a bucket and a key", name)
	}
	return u.Host, u.Path[1:], nil // strip leading slash
}

// fileWriter buffers writes to a local file.
type fileWriter struct {
	f      *os.File
	w      *bufio.Writer
	name   string
	closed bool
}

func (fw *fileWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err != nil {
		return n, errors.WithCode(err, errors.ErrOutputUnwritable)
	}
	return n, nil
}

// Close flushes, syncs and closes the file.
func (fw *fileWriter) Close() error {
	if fw.closed {
		return nil
	}
	fw.closed = true
	if err := fw.w.Flush(); err != nil {
		fw.f.Close()
		return errors.Wrap(errors.WithCode(err, errors.ErrOutputUnwritable), "flushing")
	}
	if err := fw.f.Sync(); err != nil {
		fw.f.Close()
		return errors.Wrap(errors.WithCode(err, errors.ErrOutputUnwritable), "syncing")
	}
	if err := fw.f.Close(); err != nil {
		return errors.Wrap(errors.WithCode(err, errors.ErrOutputUnwritable), "closing")
	}
	return nil
}

// Abort closes and removes the file.
func (fw *fileWriter) Abort() error {
	if fw.closed {
		return nil
	}
	fw.closed = true
	fw.f.Close()
	if err := os.Remove(fw.name); err != nil {
		return errors.Wrapf(err, "removing %s", fw.name)
	}
	return nil
}

// s3Writer holds the whole object in memory until Close.
type s3Writer struct {
	ctx    context.Context
	client s3iface.S3API
	bucket string
	key    string
	name   string
	buf    bytes.Buffer
	done   bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	_, err := w.client.PutObjectWithContext(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(w.key),
		Body:          bytes.NewReader(w.buf.Bytes()),
		ContentLength: aws.Int64(int64(w.buf.Len())),
	})
	if err != nil {
		return errors.Wrapf(errors.WithCode(err, errors.ErrOutputUnwritable), "putting s3 object %v", w.name)
	}
	return nil
}

// Abort drops the buffered object without uploading it.
func (w *s3Writer) Abort() error {
	w.done = true
	w.buf = bytes.Buffer{}
	return nil
}

// debugPrintfer sends retryablehttp's request logging to Debugf.
type debugPrintfer struct {
	log logger.Logger
}

func (d debugPrintfer) Printf(format string, v ...interface{}) {
	d.log.Debugf(format, v...)
}
