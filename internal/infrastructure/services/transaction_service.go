package services

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
)

const currentFile = "current.yaml"

// Snapshot describes one open transaction. It is kept on disk so a
// transaction can span several invocations.
type Snapshot struct {
	ID      string         `yaml:"id"`
	Created time.Time      `yaml:"created"`
	Files   []SnapshotFile `yaml:"files"`
}

// SnapshotFile maps a saved copy to the file it was taken from
type SnapshotFile struct {
	Path string `yaml:"path"`
	Copy string `yaml:"copy"`
}

// TransactionService snapshots the native configuration files selected by
// the backend globs and restores them on rollback
type TransactionService struct {
	fileSystem interfaces.FileSystem
	clock      interfaces.Clock
	logger     *logrus.Logger
	root       string
	stateDir   string
	globs      []string
}

var _ interfaces.Transactor = (*TransactionService)(nil)

func NewTransactionService(
	fs interfaces.FileSystem,
	clock interfaces.Clock,
	logger *logrus.Logger,
	root string,
	stateDir string,
	globs []string,
) *TransactionService {
	return &TransactionService{
		fileSystem: fs,
		clock:      clock,
		logger:     logger,
		root:       root,
		stateDir:   stateDir,
		globs:      globs,
	}
}

// Begin copies every configuration file into a fresh snapshot directory
func (s *TransactionService) Begin(ctx context.Context) error {
	if s.fileSystem.Exists(s.currentPath()) {
		return errors.NewInvalidOpError("a transaction is already open", nil)
	}

	snapshot := Snapshot{ID: uuid.New().String(), Created: s.clock.Now()}
	dir := filepath.Join(s.stateDir, snapshot.ID)
	if err := s.fileSystem.MkdirAll(dir, 0755); err != nil {
		return errors.NewFileError("failed to create snapshot directory", err)
	}

	files, err := s.configFiles()
	if err != nil {
		return err
	}
	for i, file := range files {
		content, err := s.fileSystem.ReadFile(file)
		if err != nil {
			return errors.NewFileError("failed to read "+file, err)
		}
		copyName := strconv.Itoa(i)
		if err := s.fileSystem.WriteFile(filepath.Join(dir, copyName), content, 0600); err != nil {
			return errors.NewFileError("failed to save snapshot of "+file, err)
		}
		snapshot.Files = append(snapshot.Files, SnapshotFile{Path: s.rel(file), Copy: copyName})
	}

	data, err := yaml.Marshal(&snapshot)
	if err != nil {
		return errors.NewInternalError("failed to encode snapshot", err)
	}
	if err := s.fileSystem.WriteFile(s.currentPath(), data, 0600); err != nil {
		return errors.NewFileError("failed to record snapshot", err)
	}

	s.logger.WithFields(logrus.Fields{
		"snapshot": snapshot.ID,
		"files":    len(snapshot.Files),
	}).Info("Configuration snapshot taken")
	return nil
}

// Rollback puts back the files of the open snapshot and deletes files that
// appeared since it was taken
func (s *TransactionService) Rollback(ctx context.Context) error {
	snapshot, err := s.open()
	if err != nil {
		return err
	}
	dir := filepath.Join(s.stateDir, snapshot.ID)

	saved := map[string]bool{}
	for _, f := range snapshot.Files {
		saved[f.Path] = true
	}
	current, err := s.configFiles()
	if err != nil {
		return err
	}
	for _, file := range current {
		if saved[s.rel(file)] {
			continue
		}
		if err := s.fileSystem.Remove(file); err != nil {
			return errors.NewFileError("failed to remove "+file, err)
		}
		s.logger.WithField("file", file).Debug("Removed file created during the transaction")
	}

	for _, f := range snapshot.Files {
		content, err := s.fileSystem.ReadFile(filepath.Join(dir, f.Copy))
		if err != nil {
			return errors.NewFileError("failed to read snapshot of "+f.Path, err)
		}
		target := s.abs(f.Path)
		if err := s.fileSystem.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return errors.NewFileError("failed to restore "+f.Path, err)
		}
		if err := s.fileSystem.WriteFile(target, content, 0644); err != nil {
			return errors.NewFileError("failed to restore "+f.Path, err)
		}
	}

	if err := s.discard(snapshot); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"snapshot": snapshot.ID,
		"files":    len(snapshot.Files),
	}).Info("Configuration rolled back")
	return nil
}

// Commit keeps the current files and drops the snapshot
func (s *TransactionService) Commit(ctx context.Context) error {
	snapshot, err := s.open()
	if err != nil {
		return err
	}
	if err := s.discard(snapshot); err != nil {
		return err
	}
	s.logger.WithField("snapshot", snapshot.ID).Info("Configuration committed")
	return nil
}

func (s *TransactionService) open() (*Snapshot, error) {
	if !s.fileSystem.Exists(s.currentPath()) {
		return nil, errors.NewInvalidOpError("no transaction is open", nil)
	}
	data, err := s.fileSystem.ReadFile(s.currentPath())
	if err != nil {
		return nil, errors.NewFileError("failed to read snapshot record", err)
	}
	var snapshot Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil || snapshot.ID == "" {
		return nil, errors.NewOtherError("corrupt snapshot record "+s.currentPath(), err)
	}
	return &snapshot, nil
}

func (s *TransactionService) discard(snapshot *Snapshot) error {
	dir := filepath.Join(s.stateDir, snapshot.ID)
	for _, f := range snapshot.Files {
		if err := s.fileSystem.Remove(filepath.Join(dir, f.Copy)); err != nil {
			s.logger.WithError(err).WithField("copy", f.Copy).Warn("Failed to remove snapshot copy")
		}
	}
	if err := s.fileSystem.Remove(dir); err != nil {
		s.logger.WithError(err).WithField("dir", dir).Warn("Failed to remove snapshot directory")
	}
	if err := s.fileSystem.Remove(s.currentPath()); err != nil {
		return errors.NewFileError("failed to close transaction", err)
	}
	return nil
}

// configFiles lists the existing files matched by the globs, sorted and unique
func (s *TransactionService) configFiles() ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, glob := range s.globs {
		matches, err := s.fileSystem.Glob(s.abs(glob))
		if err != nil {
			return nil, errors.NewFileError("bad file pattern "+glob, err)
		}
		for _, m := range matches {
			if !seen[m] && !s.fileSystem.IsDir(m) {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func (s *TransactionService) currentPath() string {
	return filepath.Join(s.stateDir, currentFile)
}

func (s *TransactionService) abs(rel string) string {
	return filepath.Join(s.root, rel)
}

func (s *TransactionService) rel(abs string) string {
	rel := strings.TrimPrefix(abs, filepath.Clean(s.root))
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}
