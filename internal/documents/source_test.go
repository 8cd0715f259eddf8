package documents

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

	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/r2"
)

type stored struct {
	data     []byte
	modified time.Time
}

type memBucket map[string]stored

func (m memBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	o, ok := m[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(o.data))}, nil
}

func (m memBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for k, o := range m {
		if !strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(o.data))),
			LastModified: aws.Time(o.modified),
		})
	}
	return out, nil
}

func TestListSourceUnits(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	bucket := memBucket{
		"resumes/octocat/old.txt":    {data: []byte("Go"), modified: day},
		"resumes/octocat/new.pdf":    {data: []byte("%PDF"), modified: day.Add(48 * time.Hour)},
		"resumes/octocat/photo.png":  {data: []byte("png"), modified: day.Add(72 * time.Hour)},
		"resumes/someone/other.docx": {data: []byte("x"), modified: day},
	}
	src := NewSource(r2.NewBucket(bucket, "uploads"), "/resumes/", nil)

	units, err := src.ListSourceUnits(context.Background(), "octocat", 25)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 documents, got %+v", units)
	}
	if units[0].Name != "new.pdf" || units[1].Name != "old.txt" {
		t.Fatalf("expected newest first, got %s, %s", units[0].Name, units[1].Name)
	}
	u := units[1]
	if u.Kind != models.UnitKindDocument || u.Source != SourceName || u.TracksActivity || u.FullName != "octocat/old.txt" {
		t.Fatalf("unexpected unit: %+v", u)
	}

	limited, _ := src.ListSourceUnits(context.Background(), "octocat", 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestFetchDocumentText(t *testing.T) {
	t.Parallel()

	bucket := memBucket{
		"octocat/cv.txt":    {data: []byte("Built services in Go and PostgreSQL")},
		"octocat/blank.txt": {data: []byte("   \n")},
	}
	src := NewSource(r2.NewBucket(bucket, "uploads"), "", nil)

	text, err := src.FetchDocumentText(context.Background(), models.SourceUnit{ID: "octocat/cv.txt"})
	if err != nil || !strings.Contains(text, "PostgreSQL") {
		t.Fatalf("unexpected text %q (%v)", text, err)
	}
	if _, err := src.FetchDocumentText(context.Background(), models.SourceUnit{ID: "octocat/blank.txt"}); err == nil {
		t.Fatalf("expected error for a document without text")
	}
	if _, err := src.FetchDocumentText(context.Background(), models.SourceUnit{ID: "octocat/cv.png"}); err == nil {
		t.Fatalf("expected error for unsupported document")
	}
}

func TestMimeForKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		mime string
		ok   bool
	}{
		{key: "a/CV.PDF", mime: MimePDF, ok: true},
		{key: "a/cv.docx", mime: MimeDocx, ok: true},
		{key: "a/notes.txt", mime: MimeText, ok: true},
		{key: "a/cv.doc"},
	}
	for _, tt := range tests {
		mime, ok := MimeForKey(tt.key)
		if mime != tt.mime || ok != tt.ok {
			t.Errorf("MimeForKey(%q) = %q, %v", tt.key, mime, ok)
		}
	}
}

func TestStripTags(t *testing.T) {
	t.Parallel()

	xml := `<w:document><w:body><w:p><w:r><w:t>Senior Go</w:t></w:r></w:p><w:p><w:r><w:t>Kubernetes</w:t><w:br/><w:t>AWS</w:t></w:r></w:p></w:body></w:document>`
	if got := stripTags(xml); got != "Senior Go\nKubernetes\nAWS" {
		t.Fatalf("unexpected text %q", got)
	}
}
