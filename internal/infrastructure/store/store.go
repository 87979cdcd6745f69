// Package store implements the path addressed configuration tree over the
// native network configuration files of the host.
package store

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"ifsync/internal/domain/constants"
	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
	"ifsync/pkg/treepath"
)

// editor and package manager leftovers never loaded from an include directory
var leftoverSuffixes = []string{"~", ".bak", ".orig", ".rpmnew", ".rpmsave", ".swp"}

// Options tunes a Store
type Options struct {
	// Debug logs every file that failed to load
	Debug bool
	// Watch marks the tree dirty when watched directories change on disk
	Watch bool
}

// Store is the configuration tree loaded from the files selected by its
// includes. It is not safe for concurrent use.
type Store struct {
	root     string
	fs       interfaces.FileSystem
	logger   *logrus.Logger
	opts     Options
	includes []Include

	tree   *node
	clean  map[string][]byte // file -> serialization at load or last save
	lenses map[string]Lens   // file -> lens it was loaded with
	dirty  bool

	watcher *fsnotify.Watcher
}

// Open loads the files under root selected by includes
func Open(root string, includes []Include, fs interfaces.FileSystem, logger *logrus.Logger, opts Options) (*Store, error) {
	if !fs.IsDir(root) {
		return nil, domainErrors.NewFileError(fmt.Sprintf("root %s is not a directory", root), nil)
	}

	s := &Store{
		root:     root,
		fs:       fs,
		logger:   logger,
		opts:     opts,
		includes: append([]Include(nil), includes...),
		dirty:    true,
	}

	if opts.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, domainErrors.NewOtherError("failed to initialize file watcher", err)
		}
		s.watcher = watcher
	}

	if err := s.Refresh(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// SetIncludes replaces the file allow-list; the tree is reloaded on the next Refresh
func (s *Store) SetIncludes(includes []Include) {
	s.includes = append([]Include(nil), includes...)
	s.dirty = true
}

// Invalidate forces a reload on the next Refresh
func (s *Store) Invalidate() {
	s.dirty = true
}

// Refresh reloads the tree if the allow-list or a watched directory changed
func (s *Store) Refresh() error {
	s.drainEvents()
	if !s.dirty {
		return nil
	}
	if err := s.load(); err != nil {
		return err
	}
	s.dirty = false
	s.watch()
	return nil
}

func (s *Store) drainEvents() {
	if s.watcher == nil {
		return
	}
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Chmod) || isLeftover(ev.Name) {
				continue
			}
			s.logger.WithFields(logrus.Fields{
				"file": ev.Name,
				"op":   ev.Op.String(),
			}).Debug("Configuration file changed on disk")
			s.dirty = true
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Warn("File watcher error")
			s.dirty = true
		default:
			return
		}
	}
}

func (s *Store) watch() {
	if s.watcher == nil {
		return
	}
	for _, inc := range s.includes {
		dir := filepath.Dir(s.abs(inc.Glob))
		if !s.fs.IsDir(dir) {
			continue
		}
		if err := s.watcher.Add(dir); err != nil {
			s.logger.WithError(err).WithField("dir", dir).Warn("Failed to watch directory")
		}
	}
}

func (s *Store) load() error {
	tree := newNode("", "")
	files := tree.add(constants.FilesLabel, "")
	clean := map[string][]byte{}
	lenses := map[string]Lens{}
	var failed []string

	for _, inc := range s.includes {
		matches, err := s.fs.Glob(s.abs(inc.Glob))
		if err != nil {
			return domainErrors.NewOtherError(fmt.Sprintf("invalid include %s", inc.Glob), err)
		}
		sort.Strings(matches)
		for _, abs := range matches {
			rel := s.rel(abs)
			if isLeftover(rel) || s.fs.IsDir(abs) {
				continue
			}
			if _, seen := lenses[rel]; seen {
				continue
			}
			data, err := s.fs.ReadFile(abs)
			if err != nil {
				failed = append(failed, rel)
				s.debugFailure(rel, err)
				continue
			}
			parsed, err := inc.Lens.Parse(data)
			if err != nil {
				failed = append(failed, rel)
				s.debugFailure(rel, err)
				continue
			}
			fileNode, err := files.ensure(treepath.FromFile(rel))
			if err != nil {
				return domainErrors.NewOtherError("failed to attach "+rel, err)
			}
			for _, c := range parsed.children {
				fileNode.append(c)
			}
			out, err := inc.Lens.Serialize(fileNode)
			if err != nil {
				failed = append(failed, rel)
				s.debugFailure(rel, err)
				fileNode.detach()
				continue
			}
			clean[rel] = out
			lenses[rel] = inc.Lens
		}
	}

	s.tree, s.clean, s.lenses = tree, clean, lenses

	s.logger.WithFields(logrus.Fields{
		"root":  s.root,
		"files": len(clean),
	}).Debug("Configuration tree loaded")

	if len(failed) > 0 {
		return &domainErrors.DomainError{
			Code:    domainErrors.CodeOther,
			Message: "errors in loading some config files",
			Details: strings.Join(failed, ", "),
		}
	}
	return nil
}

func (s *Store) debugFailure(file string, err error) {
	if !s.opts.Debug {
		return
	}
	s.logger.WithError(err).WithField("file", file).Warn("Failed to load configuration file")
}

// Match returns the paths selected by pattern
func (s *Store) Match(pattern treepath.Pattern) ([]treepath.Path, error) {
	nodes := s.tree.match(pattern)
	out := make([]treepath.Path, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.path())
	}
	return out, nil
}

// Get returns the value at path
func (s *Store) Get(path treepath.Path) (string, bool, error) {
	n := s.tree.lookup(path)
	if n == nil {
		return "", false, nil
	}
	return n.value, true, nil
}

// Set assigns value at path, creating missing nodes
func (s *Store) Set(path treepath.Path, value string) error {
	if len(path) < 2 || path[0].Label != constants.FilesLabel {
		return domainErrors.NewOtherError(fmt.Sprintf("cannot set %s outside of files", path), nil)
	}
	n, err := s.tree.ensure(path)
	if err != nil {
		return domainErrors.NewOtherError("failed to set "+path.String(), err)
	}
	n.value = value
	return nil
}

// Remove deletes the nodes selected by pattern with their subtrees
func (s *Store) Remove(pattern treepath.Pattern) (int, error) {
	nodes := s.tree.match(pattern)
	for _, n := range nodes {
		n.detach()
	}
	return len(nodes), nil
}

// Save writes every changed file and deletes files whose node was removed
func (s *Store) Save() error {
	files := s.tree.nth(constants.FilesLabel, 1)
	seen := map[string]bool{}
	var failed []string

	for _, inc := range s.includes {
		for _, fileNode := range s.fileNodes(files, inc.Glob) {
			rel := "/" + fileNode.path()[1:].String()
			if seen[rel] {
				continue
			}
			seen[rel] = true

			lens := inc.Lens
			if loadedWith, ok := s.lenses[rel]; ok {
				lens = loadedWith
			}
			out, err := lens.Serialize(fileNode)
			if err != nil {
				s.logger.WithError(err).WithField("file", rel).Error("Failed to render configuration file")
				failed = append(failed, rel)
				continue
			}
			if prev, ok := s.clean[rel]; ok && bytes.Equal(prev, out) {
				continue
			}
			if err := s.write(rel, out); err != nil {
				s.logger.WithError(err).WithField("file", rel).Error("Failed to write configuration file")
				failed = append(failed, rel)
				continue
			}
			s.clean[rel] = out
			s.lenses[rel] = lens
			s.logger.WithField("file", rel).Debug("Configuration file written")
		}
	}

	for rel := range s.clean {
		if seen[rel] {
			continue
		}
		if err := s.fs.Remove(s.abs(rel)); err != nil && s.fs.Exists(s.abs(rel)) {
			s.logger.WithError(err).WithField("file", rel).Error("Failed to delete configuration file")
			failed = append(failed, rel)
			continue
		}
		delete(s.clean, rel)
		delete(s.lenses, rel)
		s.logger.WithField("file", rel).Debug("Configuration file deleted")
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		return &domainErrors.DomainError{
			Code:    domainErrors.CodeOther,
			Message: "failed to save configuration files",
			Details: strings.Join(failed, ", "),
		}
	}
	return nil
}

// fileNodes returns the nodes below files that correspond to glob
func (s *Store) fileNodes(files *node, glob string) []*node {
	if files == nil {
		return nil
	}
	pattern := treepath.Match(treepath.FromFile(glob).Labels()...)
	var out []*node
	for _, n := range files.match(pattern) {
		if !isLeftover(n.label) {
			out = append(out, n)
		}
	}
	return out
}

func (s *Store) write(rel string, data []byte) error {
	abs := s.abs(rel)
	if err := s.fs.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	return s.fs.WriteFile(abs, data, constants.ConfigFilePermission)
}

// Close stops watching; the tree stays readable
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

// Dump renders the subtree at path, one "path = value" line per node
func (s *Store) Dump(path treepath.Path) string {
	n := s.tree.lookup(path)
	if n == nil {
		return ""
	}
	var b strings.Builder
	n.walk(func(cur *node) {
		fmt.Fprintf(&b, "%s = %q\n", cur.path(), cur.value)
	})
	return b.String()
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, rel)
}

func (s *Store) rel(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return abs
	}
	return "/" + filepath.ToSlash(rel)
}

func isLeftover(name string) bool {
	base := filepath.Base(name)
	for _, suffix := range leftoverSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return strings.Contains(base, ".dpkg-")
}
