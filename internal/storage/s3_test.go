package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory stand-in for the S3 API.
type fakeS3 struct {
	mu           sync.Mutex
	objects      map[string][]byte
	parts        map[int32][]byte
	contentTypes map[string]string
	pageSize     int
	putErr       error
	headErr      error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), contentTypes: make(map[string]string), pageSize: 2}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == aws.ToString(in.ContinuationToken) {
				start = i
				break
			}
		}
	}
	end := start + f.pageSize
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parts = make(map[int32][]byte)
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
}

func (f *fakeS3) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parts[aws.ToInt32(in.PartNumber)] = data
	return &s3.UploadPartOutput{ETag: aws.String("part")}, nil
}

func (f *fakeS3) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var buf bytes.Buffer
	for _, p := range in.MultipartUpload.Parts {
		buf.Write(f.parts[aws.ToInt32(p.PartNumber)])
	}
	f.objects[aws.ToString(in.Key)] = buf.Bytes()
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(`"multi-2"`)}, nil
}

func (f *fakeS3) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3Storage_PutGetDelete(t *testing.T) {
	fake := newFakeS3()
	s := newS3Storage(fake, "lake", DefaultS3Config())
	ctx := context.Background()

	if err := s.Put(ctx, "events/a.json", []byte(`{"count":1}`), "application/json"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := s.Get(ctx, "events/a.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != `{"count":1}` {
		t.Errorf("unexpected content %q", data)
	}

	if err := s.Delete(ctx, "events/a.json"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err := s.Exists(ctx, "events/a.json")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected object to be gone")
	}

	if _, err := s.Get(ctx, "events/a.json"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestS3Storage_PutFailure(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	s := newS3Storage(fake, "lake", DefaultS3Config())

	err := s.Put(context.Background(), "k", []byte("x"), "")
	if !errors.Is(err, ErrUploadFailed) {
		t.Errorf("expected ErrUploadFailed, got %v", err)
	}
}

func TestS3Storage_WalkPages(t *testing.T) {
	fake := newFakeS3()
	for _, k := range []string{"in/1.json", "in/2.json", "in/3.json", "in/4.json", "in/5.json", "out/x.csv"} {
		fake.objects[k] = []byte("{}")
	}
	s := newS3Storage(fake, "lake", DefaultS3Config())

	keys, err := ListObjects(context.Background(), s, "in/")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(keys) != 5 {
		t.Fatalf("expected 5 keys across pages, got %v", keys)
	}

	visited := 0
	err = s.Walk(context.Background(), "in/", func(string) error {
		visited++
		if visited == 3 {
			return ErrStopWalk
		}
		return nil
	})
	if err != nil || visited != 3 {
		t.Errorf("expected early stop after 3, visited=%d err=%v", visited, err)
	}
}

func TestS3Storage_UploadMultipart(t *testing.T) {
	fake := newFakeS3()
	cfg := DefaultS3Config()
	cfg.MultipartConfig.PartSize = 4
	s := newS3Storage(fake, "lake", cfg)

	src := filepath.Join(t.TempDir(), "big.csv")
	content := []byte("0123456789")
	if err := os.WriteFile(src, content, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	etag, err := s.UploadMultipart(context.Background(), src, "out/interactions.csv", "text/csv")
	if err != nil {
		t.Fatalf("UploadMultipart failed: %v", err)
	}
	if etag != `"multi-2"` {
		t.Errorf("unexpected etag %q", etag)
	}
	if len(fake.parts) != 3 {
		t.Errorf("expected 3 parts, got %d", len(fake.parts))
	}
	if string(fake.objects["out/interactions.csv"]) != string(content) {
		t.Errorf("reassembled object mismatch: %q", fake.objects["out/interactions.csv"])
	}
	if fake.contentTypes["out/interactions.csv"] != "text/csv" {
		t.Errorf("content type = %q, want text/csv", fake.contentTypes["out/interactions.csv"])
	}
}

func TestS3Storage_UploadSmallFile(t *testing.T) {
	fake := newFakeS3()
	// The ETag is taken from the put response, so a failing HEAD must not
	// turn a stored object into an upload error.
	fake.headErr = errors.New("head unavailable")
	s := newS3Storage(fake, "lake", DefaultS3Config())

	src := filepath.Join(t.TempDir(), "small.csv")
	if err := os.WriteFile(src, []byte("a,b\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	etag, err := s.UploadMultipart(context.Background(), src, "out/small.csv", "text/csv")
	if err != nil {
		t.Fatalf("UploadMultipart failed: %v", err)
	}
	if etag != `"etag"` {
		t.Errorf("unexpected etag %q", etag)
	}
	if fake.parts != nil {
		t.Error("small file should not use multipart")
	}
	if string(fake.objects["out/small.csv"]) != "a,b\n" || fake.contentTypes["out/small.csv"] != "text/csv" {
		t.Errorf("unexpected object %q with content type %q", fake.objects["out/small.csv"], fake.contentTypes["out/small.csv"])
	}
}
