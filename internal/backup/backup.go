// Package backup produces encrypted snapshots of the SQLite database and
// uploads them to S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/hbkim/iljeong/internal/config"
	"github.com/hbkim/iljeong/internal/store"
)

// s3Client is the subset of the S3 API the manager uses, split out for
// testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Status holds the result of the most recent backup attempt.
type Status struct {
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Manager snapshots the database, encrypts the snapshot, and uploads it.
type Manager struct {
	mu     sync.Mutex
	cfg    config.BackupConfig
	db     *sql.DB
	status Status

	records *store.BackupStore
	client  s3Client
	logger  *slog.Logger
}

// NewManager creates a backup manager. Enabled() reports whether the
// configuration is complete enough to run.
func NewManager(cfg config.BackupConfig, db *sql.DB, records *store.BackupStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		db:      db,
		records: records,
		logger:  logger,
	}
	if m.Enabled() {
		m.client = s3.New(s3.Options{
			BaseEndpoint: aws.String(cfg.Endpoint),
			Region:       cfg.Region,
			Credentials:  awscreds.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		})
	}
	return m
}

// Enabled reports whether backups are configured.
func (m *Manager) Enabled() bool {
	return m.cfg.Bucket != "" && m.cfg.Passphrase != ""
}

// Status returns the last run result.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Run performs one backup: snapshot via VACUUM INTO, encrypt, upload
// with bounded retry, and record the outcome in the history table.
func (m *Manager) Run(ctx context.Context) error {
	if !m.Enabled() {
		return fmt.Errorf("backup is not configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("iljeong/%s.db.enc", time.Now().UTC().Format("20060102-150405"))
	err := m.run(ctx, key)

	now := time.Now().UTC()
	m.status.LastRun = &now
	if err != nil {
		m.status.LastError = err.Error()
		if _, rerr := m.records.Record(key, 0, "failed", err.Error()); rerr != nil {
			m.logger.Error("record backup failure", "error", rerr)
		}
		return err
	}

	m.status.LastError = ""
	return nil
}

func (m *Manager) run(ctx context.Context, key string) error {
	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return err
	}
	defer os.RemoveAll(filepath.Dir(snapshot))

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	encrypted, err := Encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}

	// Transient storage errors get a few backed-off retries; anything
	// still failing after that surfaces as a failed run.
	backoff := retry.WithMaxRetries(3, retry.NewExponential(2*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(encrypted),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}

	if _, err := m.records.Record(key, int64(len(encrypted)), "ok", ""); err != nil {
		return fmt.Errorf("record backup: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(encrypted))
	return nil
}

// snapshot writes a consistent copy of the live database to a temp file
// and returns its path. VACUUM INTO works while WAL writers are active.
func (m *Manager) snapshot(ctx context.Context) (string, error) {
	dir, err := os.MkdirTemp("", "iljeong-backup-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(dir, "snapshot.db")

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("vacuum into: %w", err)
	}
	return path, nil
}
