package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/noot-app/nutrition-log-mcp-server/internal/config"
	"github.com/noot-app/nutrition-log-mcp-server/internal/version"
)

// Metadata holds information about the downloaded dataset
type Metadata struct {
	SHA256       string    `json:"sha256"`
	DownloadedAt time.Time `json:"downloaded_at"`
	ETag         string    `json:"etag,omitempty"`
	Size         int64     `json:"size"`
}

// Manager keeps the local Open Food Facts parquet file present and current
type Manager struct {
	parquetURL   string
	parquetPath  string
	metadataPath string
	lockPath     string
	config       *config.Config
	log          *slog.Logger

	headClient     *http.Client
	downloadClient *http.Client
	lockPoll       time.Duration
	lockWait       time.Duration
}

// NewManager creates a dataset manager for the paths in cfg
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		parquetURL:     cfg.ParquetURL,
		parquetPath:    cfg.ParquetPath,
		metadataPath:   cfg.MetadataPath,
		lockPath:       cfg.LockFile,
		config:         cfg,
		log:            logger,
		headClient:     &http.Client{Timeout: 30 * time.Second},
		downloadClient: &http.Client{Timeout: 30 * time.Minute},
		lockPoll:       2 * time.Second,
		lockWait:       10 * time.Minute,
	}
}

// EnsureDataset ensures the dataset is available and up-to-date
func (m *Manager) EnsureDataset(ctx context.Context) error {
	start := time.Now()
	m.log.Info("Ensuring dataset is available", "parquet_path", m.parquetPath)

	if _, err := os.Stat(m.parquetPath); err == nil {
		if m.config.DisableRemoteCheck {
			m.log.Info("Remote checks disabled, using local dataset", "duration", time.Since(start))
			return nil
		}

		upToDate, err := m.isUpToDate(ctx)
		if err != nil {
			m.log.Warn("Failed to verify dataset freshness", "error", err)
		}
		if upToDate {
			m.log.Info("Dataset is up-to-date", "duration", time.Since(start))
			return nil
		}
	}

	if err := m.downloadWithLock(ctx); err != nil {
		return fmt.Errorf("failed to download dataset: %w", err)
	}

	m.log.Info("Dataset ensured", "duration", time.Since(start))
	return nil
}

// Status returns the metadata of the local dataset
func (m *Manager) Status() (*Metadata, error) {
	return m.loadMetadata()
}

// Verify recomputes the local file's SHA256 and compares it with the recorded one
func (m *Manager) Verify() error {
	meta, err := m.loadMetadata()
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	sum, err := computeSHA256(m.parquetPath)
	if err != nil {
		return fmt.Errorf("failed to hash dataset: %w", err)
	}

	if sum != meta.SHA256 {
		return fmt.Errorf("dataset checksum mismatch: have %s, recorded %s", shortHash(sum), shortHash(meta.SHA256))
	}
	return nil
}

// isUpToDate compares local metadata with the remote ETag, falling back to size
func (m *Manager) isUpToDate(ctx context.Context) (bool, error) {
	localMeta, err := m.loadMetadata()
	if err != nil {
		m.log.Debug("No local metadata found", "error", err)
		return false, nil
	}

	remoteMeta, err := m.getRemoteMetadata(ctx)
	if err != nil {
		return false, err
	}

	if remoteMeta.ETag != "" && localMeta.ETag != "" {
		upToDate := remoteMeta.ETag == localMeta.ETag
		m.log.Debug("ETag comparison", "local", localMeta.ETag, "remote", remoteMeta.ETag, "up_to_date", upToDate)
		return upToDate, nil
	}

	upToDate := remoteMeta.Size == localMeta.Size
	m.log.Debug("Size comparison", "local", localMeta.Size, "remote", remoteMeta.Size, "up_to_date", upToDate)
	return upToDate, nil
}

// getRemoteMetadata fetches ETag and size with a HEAD request
func (m *Manager) getRemoteMetadata(ctx context.Context) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.parquetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := m.headClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HEAD request failed with status: %d", resp.StatusCode)
	}

	return &Metadata{
		ETag: resp.Header.Get("ETag"),
		Size: resp.ContentLength,
	}, nil
}

// downloadWithLock downloads the dataset while holding the lock file
func (m *Manager) downloadWithLock(ctx context.Context) error {
	m.log.Info("Attempting to acquire download lock", "lock_path", m.lockPath)

	if m.config.IgnoreLock {
		if err := os.Remove(m.lockPath); err == nil {
			m.log.Warn("IGNORE_LOCK enabled, removed existing lock file", "lock_path", m.lockPath)
		}
	}

	lockFile, err := acquireLock(m.lockPath)
	switch {
	case err == nil:
		defer releaseLock(lockFile, m.lockPath)
	case m.config.IgnoreLock:
		m.log.Warn("IGNORE_LOCK enabled but still failed to acquire lock, proceeding anyway", "error", err)
	default:
		m.log.Info("Another instance is downloading, waiting", "lock_path", m.lockPath)
		return m.waitForDownload(ctx)
	}

	if err := os.MkdirAll(filepath.Dir(m.parquetPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Download next to the target so the final rename stays on one filesystem
	tmpPath := m.parquetPath + ".tmp"
	meta, err := m.downloadFile(ctx, tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, m.parquetPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move dataset into place: %w", err)
	}

	if err := m.saveMetadata(meta); err != nil {
		m.log.Warn("Failed to save metadata", "error", err)
	}

	m.log.Info("Dataset downloaded successfully", "size", meta.Size, "sha256", shortHash(meta.SHA256))
	return nil
}

// downloadFile streams the dataset to filePath, hashing it on the way
func (m *Manager) downloadFile(ctx context.Context, filePath string) (*Metadata, error) {
	start := time.Now()
	m.log.Info("Downloading dataset", "url", m.parquetURL, "path", filePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.parquetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := m.downloadClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}

	hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(file, hash), resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}

	m.log.Info("Download completed", "bytes", written, "duration", time.Since(start))
	return &Metadata{
		SHA256:       hex.EncodeToString(hash.Sum(nil)),
		DownloadedAt: time.Now().UTC(),
		ETag:         resp.Header.Get("ETag"),
		Size:         written,
	}, nil
}

// waitForDownload waits for another instance to complete the download
func (m *Manager) waitForDownload(ctx context.Context) error {
	ticker := time.NewTicker(m.lockPoll)
	defer ticker.Stop()

	timeout := time.NewTimer(m.lockWait)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			return errors.New("timeout waiting for download by other instance")
		case <-ticker.C:
			if _, err := os.Stat(m.parquetPath); err == nil {
				m.log.Info("Dataset now available after other instance completed")
				return nil
			}
		}
	}
}

func (m *Manager) loadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(m.metadataPath)
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (m *Manager) saveMetadata(meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.metadataPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.metadataPath, data, 0o644)
}

// acquireLock attempts to acquire an exclusive lock
func acquireLock(lockPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	// O_CREATE|O_EXCL will fail if file exists
	return os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
}

// releaseLock releases the lock file
func releaseLock(f *os.File, lockPath string) {
	f.Close()
	os.Remove(lockPath)
}

// computeSHA256 computes the SHA256 hash of a file
func computeSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

func shortHash(sum string) string {
	if len(sum) > 16 {
		return sum[:16] + "..."
	}
	return sum
}
