// Package backup creates, verifies and restores logical database backups with pg_dump and psql.
//
// Every artifact gets a JSON sidecar carrying its sha256 checksum and a hash of the sidecar
// itself, so both the dump and its description can be checked before a restore.
package backup

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pipe-company/internal/config"
	"pipe-company/internal/storage"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

var (
	ErrBackupNotFound    = errors.New("backup not found")
	ErrInvalidID         = errors.New("invalid backup id")
	ErrInvalidLabel      = errors.New("backup label must be lowercase letters, digits and single dashes")
	ErrChecksumMismatch  = errors.New("backup corrupted: checksum mismatch")
	ErrSizeMismatch      = errors.New("backup corrupted: size mismatch")
	ErrMetadataCorrupted = errors.New("metadata corrupted: hash mismatch")
	ErrToolFailed        = errors.New("database tool failed")
	ErrEmptyDump         = errors.New("pg_dump produced an empty dump")
)

const (
	safetyLabel   = "pre-restore"
	maxLabelLen   = 40
	offsitePrefix = "backups/"
)

// CreateOptions tune a single backup. A nil Compress falls back to the configured default.
type CreateOptions struct {
	Label    string
	Compress *bool
}

// RestoreOptions tune a restore
type RestoreOptions struct {
	SkipSafetyBackup bool
}

// RestoreResult reports what a restore did
type RestoreResult struct {
	ID             string        `json:"id"`
	SafetyBackupID string        `json:"safety_backup_id,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// RetentionPolicy decides which backups Cleanup removes. A backup is removed only when it
// falls outside the newest KeepLast and is older than MaxAge. Zero disables a rule.
type RetentionPolicy struct {
	KeepLast int
	MaxAge   time.Duration
}

// Option configures a Manager
type Option func(*Manager)

// WithRunner replaces the process runner used for pg_dump and psql
func WithRunner(r Runner) Option {
	return func(m *Manager) {
		if r != nil {
			m.runner = r
		}
	}
}

// WithSchemaVersion sets the function used to stamp the applied migration version on new backups
func WithSchemaVersion(fn func(ctx context.Context) (int64, error)) Option {
	return func(m *Manager) {
		m.schemaVersion = fn
	}
}

// Manager owns the backup directory. Operations run one at a time.
type Manager struct {
	mu            sync.Mutex
	cfg           config.BackupConfig
	db            config.DatabaseConfig
	logger        *zap.Logger
	runner        Runner
	schemaVersion func(ctx context.Context) (int64, error)
	now           func() time.Time
}

func NewManager(cfg config.BackupConfig, db config.DatabaseConfig, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger,
		runner: ExecRunner{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.PgDumpPath == "" {
		m.cfg.PgDumpPath = "pg_dump"
	}
	if m.cfg.PsqlPath == "" {
		m.cfg.PsqlPath = "psql"
	}
	return m
}

// Dir returns the backup directory
func (m *Manager) Dir() string {
	return m.cfg.Dir
}

// Policy returns the retention policy from configuration
func (m *Manager) Policy() RetentionPolicy {
	return RetentionPolicy{
		KeepLast: m.cfg.RetentionCount,
		MaxAge:   time.Duration(m.cfg.RetentionDays) * 24 * time.Hour,
	}
}

func (m *Manager) metadataPath(id string) string {
	return filepath.Join(m.cfg.Dir, id+metadataExt)
}

func (m *Manager) artifactPath(meta *Metadata) string {
	return filepath.Join(m.cfg.Dir, meta.FileName)
}

func (m *Manager) pgEnv() []string {
	env := []string{
		"PGHOST=" + m.db.Host,
		"PGPORT=" + m.db.Port,
		"PGUSER=" + m.db.User,
		"PGPASSWORD=" + m.db.Password,
		"PGDATABASE=" + m.db.Database,
	}
	if m.db.SSLMode != "" {
		env = append(env, "PGSSLMODE="+m.db.SSLMode)
	}
	if m.db.Schema != "" && m.db.Schema != "public" {
		env = append(env, "PGOPTIONS=-c search_path="+m.db.Schema)
	}
	return env
}

func (m *Manager) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	stdout, stderr, err := m.runner.Run(ctx, name, args, m.pgEnv())
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return stdout, fmt.Errorf("%w: %s: %s", ErrToolFailed, filepath.Base(name), msg)
	}
	return stdout, nil
}

// ToolVersion reports the pg_dump version string
func (m *Manager) ToolVersion(ctx context.Context) (string, error) {
	out, err := m.run(ctx, m.cfg.PgDumpPath, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Create dumps the database into a new backup
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	meta, err := m.create(ctx, opts)
	observe("create", time.Since(start).Seconds(), err)
	return meta, err
}

func (m *Manager) newID(label string) string {
	base := "backup-" + m.now().UTC().Format("20060102-150405")
	if label != "" {
		base += "-" + label
	}

	id := base
	for n := 2; ; n++ {
		if _, err := os.Stat(m.metadataPath(id)); errors.Is(err, os.ErrNotExist) {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func (m *Manager) create(ctx context.Context, opts CreateOptions) (*Metadata, error) {
	label := strings.ToLower(strings.TrimSpace(opts.Label))
	if label != "" && (len(label) > maxLabelLen || !labelPattern.MatchString(label)) {
		return nil, ErrInvalidLabel
	}
	compress := m.cfg.Compress
	if opts.Compress != nil {
		compress = *opts.Compress
	}

	if err := os.MkdirAll(m.cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}

	id := m.newID(label)
	logger := m.logger.With(zap.String("backup_id", id))
	logger.Info("Creating backup", zap.Bool("compress", compress))

	toolVersion, err := m.ToolVersion(ctx)
	if err != nil {
		return nil, err
	}

	var schemaVersion int64
	if m.schemaVersion != nil {
		if schemaVersion, err = m.schemaVersion(ctx); err != nil {
			return nil, fmt.Errorf("failed to read schema version: %w", err)
		}
	}

	dumpPath := filepath.Join(m.cfg.Dir, id+".dump.tmp")
	defer os.Remove(dumpPath)

	// drop statements ahead of every create, so a restore can replay over the live schema
	args := []string{"--clean", "--if-exists", "--no-owner", "--no-privileges", "--format=plain", "--file", dumpPath}
	if m.db.Schema != "" && m.db.Schema != "public" {
		args = append(args, "--schema="+m.db.Schema)
	}
	if _, err := m.run(ctx, m.cfg.PgDumpPath, args...); err != nil {
		logger.Error("pg_dump failed", zap.Error(err))
		return nil, err
	}

	info, err := os.Stat(dumpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat dump: %w", err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyDump
	}

	fileName := id + plainExt
	if compress {
		fileName = id + compressedExt
	}
	meta := &Metadata{
		ID:                id,
		Label:             label,
		CreatedAt:         m.now().UTC(),
		Database:          m.db.Database,
		FileName:          fileName,
		UncompressedBytes: info.Size(),
		ChecksumAlgorithm: checksumAlgorithm,
		Compressed:        compress,
		SchemaVersion:     schemaVersion,
		ToolVersion:       toolVersion,
	}

	finalPath := m.artifactPath(meta)
	size, checksum, err := writeArtifact(dumpPath, finalPath, compress)
	if err != nil {
		return nil, err
	}
	meta.SizeBytes = size
	meta.Checksum = checksum

	if err := writeMetadata(m.metadataPath(id), meta); err != nil {
		os.Remove(finalPath)
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	lastBackupSize.Set(float64(size))
	logger.Info("Backup created",
		zap.String("file", fileName),
		zap.Int64("size_bytes", size),
		zap.Int64("uncompressed_bytes", meta.UncompressedBytes),
		zap.String("checksum", checksum),
	)
	return meta, nil
}

// countingWriter counts bytes passing through it
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// writeArtifact copies the dump to finalPath, optionally gzipped, hashing the bytes written.
// The artifact only appears at finalPath once it is complete.
func writeArtifact(srcPath, finalPath string, compress bool) (size int64, checksum string, err error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open dump: %w", err)
	}
	defer src.Close()

	tmpPath := finalPath + ".tmp"
	dst, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create artifact: %w", err)
	}
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			dst.Close()
			os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	counter := &countingWriter{w: dst}
	out := io.MultiWriter(counter, hasher)

	if compress {
		gz, err := gzip.NewWriterLevel(out, gzip.DefaultCompression)
		if err != nil {
			return 0, "", fmt.Errorf("create gzip writer: %w", err)
		}
		if _, err := io.Copy(gz, src); err != nil {
			gz.Close()
			return 0, "", fmt.Errorf("compress dump: %w", err)
		}
		if err := gz.Close(); err != nil {
			return 0, "", fmt.Errorf("close gzip: %w", err)
		}
	} else if _, err := io.Copy(out, src); err != nil {
		return 0, "", fmt.Errorf("copy dump: %w", err)
	}

	if err := dst.Sync(); err != nil {
		return 0, "", fmt.Errorf("sync artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		return 0, "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return 0, "", fmt.Errorf("rename artifact: %w", err)
	}
	cleanupTmp = false

	return counter.n, hex.EncodeToString(hasher.Sum(nil)), nil
}

// List returns every readable backup, newest first
func (m *Manager) List() ([]*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list()
}

func (m *Manager) list() ([]*Metadata, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*Metadata{}, nil
		}
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	backups := make([]*Metadata, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, metadataExt) {
			continue
		}
		if !ValidID(strings.TrimSuffix(name, metadataExt)) {
			continue
		}
		meta, err := readMetadata(filepath.Join(m.cfg.Dir, name))
		if err != nil {
			m.logger.Warn("Skipping unreadable backup metadata", zap.String("file", name), zap.Error(err))
			continue
		}
		backups = append(backups, meta)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Get returns the metadata of one backup
func (m *Manager) Get(id string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *Manager) get(id string) (*Metadata, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	meta, err := readMetadata(m.metadataPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBackupNotFound
		}
		return nil, err
	}
	if meta.ID != id {
		return nil, fmt.Errorf("%w: sidecar describes %q", ErrMetadataCorrupted, meta.ID)
	}
	return meta, nil
}

// Verify checks the artifact against its sidecar: presence, size, checksum and, for
// compressed backups, that the gzip stream decodes to the recorded dump size.
func (m *Manager) Verify(id string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	meta, err := m.verify(id)
	observe("verify", time.Since(start).Seconds(), err)
	return meta, err
}

func (m *Manager) verify(id string) (*Metadata, error) {
	meta, err := m.get(id)
	if err != nil {
		return nil, err
	}

	path := m.artifactPath(meta)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: artifact %s is missing", ErrBackupNotFound, meta.FileName)
		}
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.Size() != meta.SizeBytes {
		return nil, fmt.Errorf("%w: expected=%d, actual=%d", ErrSizeMismatch, meta.SizeBytes, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return nil, fmt.Errorf("failed to hash artifact: %w", err)
	}
	if actual := hex.EncodeToString(hasher.Sum(nil)); actual != meta.Checksum {
		return nil, fmt.Errorf("%w: expected=%s, actual=%s", ErrChecksumMismatch, meta.Checksum, actual)
	}

	if meta.Compressed {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind artifact: %w", err)
		}
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrChecksumMismatch, err)
		}
		n, err := io.Copy(io.Discard, gz)
		gz.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: gzip stream: %v", ErrChecksumMismatch, err)
		}
		if n != meta.UncompressedBytes {
			return nil, fmt.Errorf("%w: decompressed=%d, recorded=%d", ErrSizeMismatch, n, meta.UncompressedBytes)
		}
	}

	return meta, nil
}

// Restore verifies a backup and replays it with psql in a single transaction.
// Unless skipped or disabled, a safety backup of the current database is taken first.
func (m *Manager) Restore(ctx context.Context, id string, opts RestoreOptions) (*RestoreResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	result, err := m.restore(ctx, id, opts)
	observe("restore", time.Since(start).Seconds(), err)
	if result != nil {
		result.Duration = time.Since(start)
	}
	return result, err
}

func (m *Manager) restore(ctx context.Context, id string, opts RestoreOptions) (*RestoreResult, error) {
	meta, err := m.verify(id)
	if err != nil {
		return nil, err
	}
	logger := m.logger.With(zap.String("backup_id", id))
	result := &RestoreResult{ID: id}

	if m.cfg.PreRestoreSnapshot && !opts.SkipSafetyBackup {
		safety, err := m.create(ctx, CreateOptions{Label: safetyLabel})
		if err != nil {
			return nil, fmt.Errorf("failed to create safety backup: %w", err)
		}
		result.SafetyBackupID = safety.ID
		logger.Info("Safety backup created", zap.String("safety_backup_id", safety.ID))
	}

	sqlPath := m.artifactPath(meta)
	if meta.Compressed {
		sqlPath = filepath.Join(m.cfg.Dir, id+".restore.tmp")
		defer os.Remove(sqlPath)
		if err := decompressTo(m.artifactPath(meta), sqlPath); err != nil {
			return nil, err
		}
	}

	logger.Info("Restoring backup")
	if _, err := m.run(ctx, m.cfg.PsqlPath,
		"-v", "ON_ERROR_STOP=1",
		"--single-transaction",
		"--quiet",
		"--file", sqlPath,
	); err != nil {
		logger.Error("Restore failed", zap.Error(err))
		return nil, err
	}

	logger.Info("Backup restored")
	return result, nil
}

func decompressTo(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer src.Close()

	gz, err := gzip.NewReader(src)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create restore file: %w", err)
	}
	if _, err := io.Copy(dst, gz); err != nil {
		dst.Close()
		return fmt.Errorf("decompress artifact: %w", err)
	}
	return dst.Close()
}

// Delete removes a backup's artifact and sidecar
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	err := m.delete(id)
	observe("delete", time.Since(start).Seconds(), err)
	return err
}

func (m *Manager) delete(id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}

	removed := false
	for _, name := range []string{id + compressedExt, id + plainExt, id + metadataExt} {
		err := os.Remove(filepath.Join(m.cfg.Dir, name))
		if err == nil {
			removed = true
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
	}
	if !removed {
		return ErrBackupNotFound
	}

	m.logger.Info("Backup deleted", zap.String("backup_id", id))
	return nil
}

// Cleanup applies policy and returns the ids of removed backups
func (m *Manager) Cleanup(policy RetentionPolicy) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	removed, err := m.cleanup(policy)
	observe("cleanup", time.Since(start).Seconds(), err)
	return removed, err
}

func (m *Manager) cleanup(policy RetentionPolicy) ([]string, error) {
	removed := []string{}
	if policy.KeepLast <= 0 && policy.MaxAge <= 0 {
		return removed, nil
	}

	backups, err := m.list()
	if err != nil {
		return nil, err
	}

	now := m.now()
	for i, b := range backups {
		if policy.KeepLast > 0 && i < policy.KeepLast {
			continue
		}
		if policy.MaxAge > 0 && b.Age(now) <= policy.MaxAge {
			continue
		}
		if err := m.delete(b.ID); err != nil {
			return removed, err
		}
		removed = append(removed, b.ID)
	}

	if len(removed) > 0 {
		m.logger.Info("Old backups removed", zap.Strings("backup_ids", removed))
	}
	return removed, nil
}

// UploadOffsite copies a verified backup and its sidecar to object storage under backups/
func (m *Manager) UploadOffsite(ctx context.Context, id string, store storage.ObjectStorage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	err := m.uploadOffsite(ctx, id, store)
	observe("upload", time.Since(start).Seconds(), err)
	return err
}

func (m *Manager) uploadOffsite(ctx context.Context, id string, store storage.ObjectStorage) error {
	meta, err := m.verify(id)
	if err != nil {
		return err
	}

	f, err := os.Open(m.artifactPath(meta))
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	contentType := "application/sql"
	if meta.Compressed {
		contentType = "application/gzip"
	}
	if err := store.Put(ctx, offsitePrefix+meta.FileName, f, meta.SizeBytes, contentType); err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}

	sidecar, err := os.ReadFile(m.metadataPath(id))
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := store.Put(ctx, offsitePrefix+id+metadataExt, bytes.NewReader(sidecar), int64(len(sidecar)), "application/json"); err != nil {
		return fmt.Errorf("failed to upload metadata: %w", err)
	}

	m.logger.Info("Backup uploaded offsite", zap.String("backup_id", id), zap.String("key", offsitePrefix+meta.FileName))
	return nil
}
