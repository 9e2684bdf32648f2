// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package storage_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/featurebasedb/wiki2qid/errors"
	"github.com/featurebasedb/wiki2qid/logger"
	"github.com/featurebasedb/wiki2qid/storage"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dumpLine = "INSERT INTO `page` VALUES (1,0,'Paris',0,0,0.5,'20230101000000','20230101000000',1,10,'wikitext',NULL);\n"

func TestReadFileLocal(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "page.sql")
	require.NoError(t, os.WriteFile(plain, []byte(dumpLine), 0600))

	zipped := filepath.Join(dir, "page.sql.gz")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(dumpLine))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(zipped, buf.Bytes(), 0600))

	s := storage.New(logger.NewLogfLogger(t))
	for _, name := range []string{plain, zipped} {
		got, err := s.ReadFile(context.Background(), name)
		require.NoError(t, err, name)
		assert.Equal(t, dumpLine, string(got), name)
	}
}

func TestReadFileUnavailable(t *testing.T) {
	dir := t.TempDir()
	notGzip := filepath.Join(dir, "page.sql.gz")
	require.NoError(t, os.WriteFile(notGzip, []byte(dumpLine), 0600))

	s := storage.New(nil)
	for _, name := range []string{filepath.Join(dir, "missing.sql"), notGzip, "s3://bucket-only"} {
		_, err := s.ReadFile(context.Background(), name)
		assert.True(t, errors.Is(err, errors.ErrInputUnavailable), "%s: %v", name, err)
	}
}

func TestReadFileHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page.sql" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, dumpLine)
	}))
	defer srv.Close()

	s := storage.New(logger.NewLogfLogger(t))
	got, err := s.ReadFile(context.Background(), srv.URL+"/page.sql")
	require.NoError(t, err)
	assert.Equal(t, dumpLine, string(got))

	_, err = s.ReadFile(context.Background(), srv.URL+"/nope.sql")
	assert.True(t, errors.Is(err, errors.ErrInputUnavailable), "%v", err)
}

func TestCreateLocal(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.avro")
	s := storage.New(nil)
	w, err := s.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = s.Create(context.Background(), filepath.Join(t.TempDir(), "no", "such", "dir", "out.avro"))
	assert.True(t, errors.Is(err, errors.ErrOutputUnwritable), "%v", err)
}

func TestCreateAbort(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.avro")
	s := storage.New(nil)
	w, err := s.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = io.WriteString(w, "partial")
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	require.NoError(t, w.Close(), "Close after Abort is a no-op")

	_, err = os.Stat(name)
	assert.True(t, os.IsNotExist(err), "%v", err)

	fake := &fakeS3{objects: map[string][]byte{}}
	s.S3 = fake
	w, err = s.Create(context.Background(), "s3://dumps/out.avro")
	require.NoError(t, err)
	_, err = io.WriteString(w, "partial")
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	require.NoError(t, w.Close())
	assert.Empty(t, fake.objects)
}

// fakeS3 keeps objects in memory.
type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3RoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := storage.New(nil)
	s.S3 = fake

	w, err := s.Create(context.Background(), "s3://dumps/out/wiki2qid.avro")
	require.NoError(t, err)
	_, err = io.WriteString(w, dumpLine)
	require.NoError(t, err)
	assert.Empty(t, fake.objects, "nothing is uploaded before Close")
	require.NoError(t, w.Close())
	assert.Equal(t, dumpLine, string(fake.objects["dumps/out/wiki2qid.avro"]))

	got, err := s.ReadFile(context.Background(), "s3://dumps/out/wiki2qid.avro")
	require.NoError(t, err)
	assert.Equal(t, dumpLine, string(got))

	_, err = s.ReadFile(context.Background(), "s3://dumps/missing.sql")
	assert.True(t, errors.Is(err, errors.ErrInputUnavailable), "%v", err)
}
