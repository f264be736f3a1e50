package backup

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/models"
)

// SnapshotName is the archive entry holding the ledger listing.
const SnapshotName = "approvals.json"

// Lister reads the whole ledger.
type Lister interface {
	ListAll(ctx context.Context) ([]models.ApprovalRecord, error)
}

// GetDefaultBackupDir returns the default backup directory
func GetDefaultBackupDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, "backups"), nil
}

// CreateBackup archives a snapshot of the ledger, whatever its backend,
// together with the operator logs found under dataDir. It is the hand-off
// for manual reconciliation of authorizations that were confirmed on-chain
// but never recorded.
func CreateBackup(ctx context.Context, ledger Lister, dataDir, backupDir string) (string, error) {
	records, err := ledger.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read ledger: %w", err)
	}

	if backupDir == "" {
		backupDir, err = GetDefaultBackupDir()
		if err != nil {
			return "", fmt.Errorf("failed to get default backup directory: %w", err)
		}
	}
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupFile := filepath.Join(backupDir, fmt.Sprintf("approvals_backup_%s.zip", timestamp))

	zipFile, err := os.Create(backupFile)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}

	if err := writeArchive(zipFile, records, dataDir); err != nil {
		zipFile.Close()
		if rmErr := os.Remove(backupFile); rmErr != nil {
			logger.Warn("Failed to remove partial backup %s: %v", backupFile, rmErr)
		}
		return "", err
	}
	if err := zipFile.Close(); err != nil {
		os.Remove(backupFile)
		return "", fmt.Errorf("failed to finish backup: %w", err)
	}

	logger.Info("Backup of %d approvals created: %s", len(records), backupFile)
	return backupFile, nil
}

// writeArchive streams the snapshot and the included data files into w.
func writeArchive(w io.Writer, records []models.ApprovalRecord, dataDir string) error {
	zipWriter := zip.NewWriter(w)

	if err := writeSnapshot(zipWriter, records); err != nil {
		return err
	}

	if dataDir != "" {
		err := filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
			return AddToZip(path, info, err, dataDir, zipWriter)
		})
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish backup: %w", err)
	}
	return nil
}

func writeSnapshot(zipWriter *zip.Writer, records []models.ApprovalRecord) error {
	if records == nil {
		records = []models.ApprovalRecord{}
	}
	writer, err := zipWriter.CreateHeader(&zip.FileHeader{
		Name:     SnapshotName,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to create snapshot in zip: %w", err)
	}

	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func AddToZip(path string, info os.FileInfo, err error, dataDir string, zipWriter *zip.Writer) error {
	if err != nil {
		return err
	}

	if path == dataDir {
		return nil
	}

	relPath, err := filepath.Rel(dataDir, path)
	if err != nil {
		return fmt.Errorf("failed to get relative path: %w", err)
	}

	if !ShouldIncludeInBackup(relPath, info.IsDir()) {
		if info.IsDir() {
			logger.Debug("Skipping directory: %s", relPath)
			return filepath.SkipDir
		}
		logger.Debug("Skipping file: %s", relPath)
		return nil
	}

	if info.IsDir() {
		_, err = zipWriter.Create(filepath.ToSlash(relPath) + "/")
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create file header: %w", err)
	}

	header.Name = filepath.ToSlash(relPath)
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create file in zip: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	_, err = io.Copy(writer, file)
	if err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	logger.Debug("Added file to backup: %s", relPath)
	return nil
}

// ShouldIncludeInBackup keeps the operator logs. The ledger file itself is
// covered by the snapshot, and earlier backups are never nested.
func ShouldIncludeInBackup(relPath string, isDir bool) bool {
	components := strings.Split(relPath, string(filepath.Separator))
	if len(components) == 0 {
		return false
	}

	switch components[0] {
	case "logs":
		if isDir {
			return len(components) == 1
		}
		return len(components) == 2 && strings.HasSuffix(components[1], ".log")
	default:
		return false
	}
}
