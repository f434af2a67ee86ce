package backup

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yahel-nav/yahel/internal/database"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.db")
	enc := filepath.Join(dir, "plain.db.enc")
	dec := filepath.Join(dir, "restored.db")

	content := []byte("subscription data")
	if err := os.WriteFile(src, content, 0600); err != nil {
		t.Fatal(err)
	}

	if err := EncryptFile(src, enc, "passphrase"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	encData, _ := os.ReadFile(enc)
	if bytes.Contains(encData, content) {
		t.Fatal("ciphertext must not contain the plaintext")
	}

	if err := DecryptFile(enc, dec, "passphrase"); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	restored, _ := os.ReadFile(dec)
	if !bytes.Equal(restored, content) {
		t.Errorf("restored = %q, want %q", restored, content)
	}
}

func TestDecryptWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.db")
	enc := filepath.Join(dir, "plain.db.enc")

	os.WriteFile(src, []byte("data"), 0600)
	if err := EncryptFile(src, enc, "correct"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if err := DecryptFile(enc, filepath.Join(dir, "out.db"), "wrong"); err == nil {
		t.Error("decrypting with the wrong passphrase must fail")
	}
}

type fakeS3 struct {
	objects map[string][]byte
	mods    map[string]time.Time
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, mods: map[string]time.Time{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.mods[key] = time.Now().UTC()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key := range f.objects {
		if !strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			continue
		}
		mod := f.mods[key]
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(key),
			LastModified: aws.Time(mod),
		})
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "yahel.db")

	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fake := newFakeS3()
	m := NewManager(Config{
		S3:         S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"},
		DBPath:     dbPath,
		Passphrase: "pass",
	}, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.client = fake

	if err := m.RunNow(context.Background()); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	if len(fake.objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(fake.objects))
	}
	for key, data := range fake.objects {
		if !strings.HasPrefix(key, "snapshots/subscriptions-") {
			t.Errorf("key = %q", key)
		}
		if len(data) < saltSize+nonceSize {
			t.Error("uploaded object too small to be an encrypted snapshot")
		}
	}
}

func TestManagerDisabledWithoutCredentials(t *testing.T) {
	m := NewManager(Config{DBPath: "x.db"}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if m.Enabled() {
		t.Error("manager without credentials must be disabled")
	}
	if err := m.RunNow(context.Background()); err == nil {
		t.Error("RunNow on a disabled manager must fail")
	}
}

func TestCleanupDeletesOnlyOldSnapshots(t *testing.T) {
	fake := newFakeS3()
	fake.objects["snapshots/old.db.enc"] = []byte("x")
	fake.mods["snapshots/old.db.enc"] = time.Now().UTC().AddDate(0, 0, -40)
	fake.objects["snapshots/new.db.enc"] = []byte("x")
	fake.mods["snapshots/new.db.enc"] = time.Now().UTC()
	fake.objects["other/file"] = []byte("x")
	fake.mods["other/file"] = time.Now().UTC().AddDate(0, 0, -40)

	m := NewManager(Config{
		S3:            S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"},
		Passphrase:    "pass",
		RetentionDays: 30,
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.client = fake

	if err := m.cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, ok := fake.objects["snapshots/old.db.enc"]; ok {
		t.Error("old snapshot must be deleted")
	}
	if _, ok := fake.objects["snapshots/new.db.enc"]; !ok {
		t.Error("recent snapshot must survive")
	}
	if _, ok := fake.objects["other/file"]; !ok {
		t.Error("objects outside the prefix must survive")
	}
}
