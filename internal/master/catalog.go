package master

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

//go:embed masterdata.yaml
var defaultFiles embed.FS

// Row is one master-data record, all values in string form the way the
// master sheet exports them. Typed parsing happens at the consumer.
type Row map[string]string

// AIRule is a named prompt template. <Description> and <User> are the
// substitution points filled by the sakura engine.
type AIRule struct {
	RuleText string
}

type snapshot struct {
	tables  map[string][]Row
	aiRules map[string]AIRule
}

// Catalog serves read-only master data loaded from the embedded defaults
// plus an optional override directory. Reload rebuilds the whole snapshot
// and swaps it atomically; rows are never patched in place.
type Catalog struct {
	mu          sync.RWMutex
	snap        *snapshot
	overrideDir string
}

func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{overrideDir: strings.TrimSpace(overrideDir)}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads embedded defaults and overrides into a fresh snapshot.
func (c *Catalog) Reload() error {
	snap := &snapshot{
		tables:  make(map[string][]Row),
		aiRules: make(map[string]AIRule),
	}

	raw, err := fs.ReadFile(defaultFiles, "masterdata.yaml")
	if err != nil {
		return fmt.Errorf("read embedded master data: %w", err)
	}
	if err := applyYAML(snap, raw); err != nil {
		return fmt.Errorf("parse embedded master data: %w", err)
	}

	if c.overrideDir != "" {
		if err := applyDir(snap, c.overrideDir); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return nil
}

func applyDir(snap *snapshot, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read master override dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	// deterministic application order
	sort.Strings(files)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := applyYAML(snap, b); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return nil
}

type fileShape struct {
	Tables  map[string][]map[string]any `yaml:"tables"`
	AIRules map[string]string           `yaml:"airules"`
}

func applyYAML(snap *snapshot, b []byte) error {
	var f fileShape
	if err := yaml.Unmarshal(b, &f); err != nil {
		return err
	}
	for table, rows := range f.Tables {
		out := make([]Row, 0, len(rows))
		for _, raw := range rows {
			row := make(Row, len(raw))
			for k, v := range raw {
				row[k] = fmt.Sprint(v)
			}
			out = append(out, row)
		}
		// later files replace the table wholesale
		snap.tables[table] = out
	}
	for key, text := range f.AIRules {
		snap.aiRules[key] = AIRule{RuleText: text}
	}
	return nil
}

// GetMaster returns the rows of a table, or nil when the table is unknown.
func (c *Catalog) GetMaster(table string) []Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.tables[table]
}

// GetAIRule returns the prompt rule registered under key.
func (c *Catalog) GetAIRule(key string) (AIRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.snap.aiRules[key]
	return r, ok
}
