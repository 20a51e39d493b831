package collections

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/diffsec/vectorcore/internal/vectorindex"
)

// diskConfig is the exact {name}.json layout §6 mandates.
type diskConfig struct {
	Name           string `json:"name"`
	Dimension      int    `json:"dimension"`
	MetricInt      int    `json:"metric_int"`
	M              int    `json:"M"`
	EfConstruction int    `json:"ef_construction"`
	EfSearch       int    `json:"ef_search"`
}

func (m *Manager) saveConfigLocked(name string, cfg vectorindex.Config) error {
	dc := diskConfig{
		Name:           name,
		Dimension:      cfg.Dimension,
		MetricInt:      int(cfg.Metric),
		M:              cfg.M,
		EfConstruction: cfg.EfConstruction,
		EfSearch:       cfg.EfSearch,
	}
	data, err := json.MarshalIndent(dc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.configPath(name), data, 0o644)
}

// SaveAll flushes every collection's config, graph header, and meta payload
// to disk. Collections are saved independently; one failure does not stop
// the rest from being attempted.
func (m *Manager) SaveAll() error {
	m.mu.RLock()
	names := make([]string, 0, len(m.collections))
	entries := make(map[string]*entry, len(m.collections))
	for name, e := range m.collections {
		names = append(names, name)
		entries[name] = e
	}
	m.mu.RUnlock()

	var firstErr error
	for _, name := range names {
		if err := m.saveOne(name, entries[name]); err != nil {
			slog.Error("save collection failed", slog.String("collection", name), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Manager) saveOne(name string, e *entry) error {
	if err := m.saveConfigLocked(name, e.cfg); err != nil {
		return err
	}

	if err := writeAtomic(m.graphPath(name), e.index.SaveGraph); err != nil {
		return err
	}
	return writeAtomic(m.metaPath(name), e.index.SaveMeta)
}

// writeAtomic writes through write into a temp file beside path and renames
// it into place only once write has fully succeeded, so a failure partway
// through a dump can't truncate or corrupt the last good file at path.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// LoadAll (re)populates the registry from dataDir's *.json config sidecars.
// A collection whose .hnsw/.hnsw.meta pair is missing or unreadable is
// registered empty and rebuildable rather than treated as an error — the
// config sidecar alone is enough to recreate a fresh index.
func (m *Manager) LoadAll() {
	entriesOnDisk, err := os.ReadDir(m.dataDir)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, de := range entriesOnDisk {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(de.Name(), ".json")

		cfg, ok := m.readConfig(name)
		if !ok {
			continue
		}

		idx := m.loadOne(name, cfg)
		m.collections[name] = &entry{cfg: cfg, index: idx}
		slog.Info("collection loaded", slog.String("collection", name), slog.Int("count", idx.Len()))
	}
}

func (m *Manager) readConfig(name string) (vectorindex.Config, bool) {
	data, err := os.ReadFile(m.configPath(name))
	if err != nil {
		return vectorindex.Config{}, false
	}
	var dc diskConfig
	if err := json.Unmarshal(data, &dc); err != nil {
		slog.Error("malformed collection config", slog.String("collection", name), slog.Any("error", err))
		return vectorindex.Config{}, false
	}
	return vectorindex.Config{
		Dimension:      dc.Dimension,
		Metric:         vectorindex.Metric(dc.MetricInt),
		M:              dc.M,
		EfConstruction: dc.EfConstruction,
		EfSearch:       dc.EfSearch,
	}, true
}

func (m *Manager) loadOne(name string, cfg vectorindex.Config) *vectorindex.Index {
	metaFile, err := os.Open(m.metaPath(name))
	if err != nil {
		return vectorindex.New(cfg)
	}
	defer metaFile.Close()

	graphFile, err := os.Open(m.graphPath(name))
	if err != nil {
		return vectorindex.New(cfg)
	}
	defer graphFile.Close()

	if _, err := vectorindex.LoadGraphHeader(graphFile); err != nil {
		slog.Warn("unreadable graph header, rebuilding empty", slog.String("collection", name), slog.Any("error", err))
		return vectorindex.New(cfg)
	}

	idx, err := vectorindex.LoadMeta(metaFile, cfg)
	if err != nil {
		slog.Warn("unreadable meta file, rebuilding empty", slog.String("collection", name), slog.Any("error", err))
		return vectorindex.New(cfg)
	}
	return idx
}
