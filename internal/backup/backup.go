// Package backup snapshots the subscription database to S3-compatible
// storage. Subscriptions are the one thing the push system cannot recover
// on its own: losing them silently unsubscribes every engineer until they
// next open the dashboard.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds snapshot manager configuration.
type Config struct {
	S3            S3Config
	DBPath        string
	Passphrase    string
	Prefix        string // object key prefix, default "snapshots"
	ScheduleHour  int    // UTC hour for the nightly snapshot
	RetentionDays int    // default 30
}

// Manager takes encrypted nightly snapshots of the subscription database.
// It is disabled (a no-op) unless bucket, credentials, and a passphrase are
// all configured.
type Manager struct {
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger

	mu       sync.Mutex
	lastRun  time.Time
	lastErr  error
	snapping bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.Prefix == "" {
		cfg.Prefix = "snapshots"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "backup"),
	}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether snapshots are configured.
func (m *Manager) Enabled() bool { return m.client != nil }

// Start begins the nightly snapshot loop. A disabled manager returns
// immediately.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the snapshot loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() != m.cfg.ScheduleHour || now.Minute() != 0 {
		return
	}

	m.mu.Lock()
	recent := now.Sub(m.lastRun) < time.Hour
	m.mu.Unlock()
	if recent {
		return
	}

	if err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled snapshot failed", "error", err)
	}
	if err := m.cleanup(ctx); err != nil {
		m.logger.Error("snapshot cleanup failed", "error", err)
	}
}

// RunNow takes one snapshot immediately: WAL checkpoint, copy, encrypt,
// upload.
func (m *Manager) RunNow(ctx context.Context) error {
	if !m.Enabled() {
		return fmt.Errorf("snapshots not configured")
	}

	m.mu.Lock()
	if m.snapping {
		m.mu.Unlock()
		return fmt.Errorf("snapshot already in progress")
	}
	m.snapping = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.snapping = false
		m.mu.Unlock()
	}()

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	key := fmt.Sprintf("%s/subscriptions-%s.db.enc", m.cfg.Prefix, timestamp)

	tmpDir := os.TempDir()
	dbCopy := filepath.Join(tmpDir, fmt.Sprintf("yahel-snapshot-%s.db", timestamp))
	encFile := dbCopy + ".enc"
	defer os.Remove(dbCopy)
	defer os.Remove(encFile)

	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return m.recordResult(fmt.Errorf("wal checkpoint: %w", err))
	}
	if err := copyFile(m.cfg.DBPath, dbCopy); err != nil {
		return m.recordResult(fmt.Errorf("copy database: %w", err))
	}
	if err := EncryptFile(dbCopy, encFile, m.cfg.Passphrase); err != nil {
		return m.recordResult(fmt.Errorf("encrypt: %w", err))
	}

	encData, err := os.Open(encFile)
	if err != nil {
		return m.recordResult(fmt.Errorf("open encrypted file: %w", err))
	}
	defer encData.Close()
	stat, _ := encData.Stat()

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          encData,
		ContentLength: aws.Int64(stat.Size()),
	})
	if err != nil {
		return m.recordResult(fmt.Errorf("upload snapshot: %w", err))
	}

	m.logger.Info("snapshot uploaded", "key", key, "bytes", stat.Size())
	return m.recordResult(nil)
}

func (m *Manager) recordResult(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
	if err == nil {
		m.lastRun = time.Now().UTC()
	}
	return err
}

// cleanup deletes snapshots older than the retention period, judged by the
// object's LastModified time.
func (m *Manager) cleanup(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)

	var token *string
	for {
		out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.cfg.S3.Bucket),
			Prefix:            aws.String(m.cfg.Prefix + "/"),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}

		for _, obj := range out.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			if err := m.deleteObject(ctx, obj); err != nil {
				m.logger.Error("delete old snapshot", "key", aws.ToString(obj.Key), "error", err)
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			return nil
		}
		token = out.NextContinuationToken
	}
}

func (m *Manager) deleteObject(ctx context.Context, obj s3types.Object) error {
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    obj.Key,
	})
	return err
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0600)
}
