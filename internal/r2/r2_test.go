package r2

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeAPI serves objects from memory, two keys per listing page.
type fakeAPI struct {
	objects map[string][]byte
	keys    []string
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var matched []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matched = append(matched, k)
		}
	}
	start := 0
	if in.ContinuationToken != nil {
		for i, k := range matched {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+2, len(matched))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(matched))}
	for _, k := range matched[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)),
		})
	}
	if end < len(matched) {
		out.NextContinuationToken = aws.String(matched[end])
	}
	return out, nil
}

func TestBucketListPaginates(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		objects: map[string][]byte{"a/1": []byte("x"), "a/2": []byte("yy"), "a/3": nil, "b/1": nil},
		keys:    []string{"a/1", "a/2", "a/3", "b/1"},
	}
	b := NewBucket(api, "resumes")

	objects, err := b.List(context.Background(), "a/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 3 || objects[1].Key != "a/2" || objects[1].Size != 2 {
		t.Fatalf("unexpected objects: %+v", objects)
	}

	data, err := b.Download(context.Background(), "a/2")
	if err != nil || string(data) != "yy" {
		t.Fatalf("download: %q %v", data, err)
	}
	if _, err := b.Download(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestParseObjectURL(t *testing.T) {
	t.Parallel()

	bucket, key, err := ParseObjectURL("s3://catalog/jobs/latest.ndjson")
	if err != nil || bucket != "catalog" || key != "jobs/latest.ndjson" {
		t.Fatalf("unexpected parse: %q %q %v", bucket, key, err)
	}
	for _, bad := range []string{"jobs.ndjson", "s3://bucket", "s3:///key"} {
		if _, _, err := ParseObjectURL(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	err := Config{AccountID: "acc", Bucket: "b"}.Validate()
	if err == nil || !strings.Contains(err.Error(), "access key, secret key") {
		t.Fatalf("expected missing keys error, got %v", err)
	}
	if got := (Config{AccountID: "acc"}).Endpoint(); got != "https://acc.r2.cloudflarestorage.com" {
		t.Fatalf("unexpected endpoint %s", got)
	}
}
