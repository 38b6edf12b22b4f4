// Package config loads the project configuration that describes a document
// chain: which document types exist, where their markdown lives, the order
// in which they derive from each other, and which document owns which
// identifier prefix.
//
// The configuration is read-only for the engine. It is parsed from a YAML
// file (specchain.yaml) and every relative path in it resolves against the
// directory holding that file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up when no explicit
// path is given.
const DefaultFileName = "specchain.yaml"

// ErrConfig marks missing, unreadable or invalid configuration.
var ErrConfig = errors.New("configuration error")

// VModelOrder is the default chain order, from the functions list down to
// operations and migration design.
var VModelOrder = []string{
	"functions-list",
	"requirements",
	"nfr",
	"basic-design",
	"security-design",
	"detail-design",
	"test-plan",
	"ut-spec",
	"it-spec",
	"test-spec",
	"st-spec",
	"uat-spec",
	"operation-design",
	"migration-design",
}

// builtinOwners lists, per known prefix, the document types that define it.
// The first configured candidate wins.
var builtinOwners = map[string][]string{
	"F":   {"functions-list"},
	"REQ": {"requirements"},
	"NFR": {"nfr", "requirements"},
	"SCR": {"basic-design"},
	"TBL": {"basic-design"},
	"API": {"basic-design"},
	"RPT": {"basic-design"},
	"SEC": {"security-design", "basic-design"},
	"CLS": {"detail-design"},
	"UT":  {"ut-spec", "test-spec"},
	"IT":  {"it-spec", "test-spec"},
	"ST":  {"st-spec", "test-spec"},
	"UAT": {"uat-spec", "test-spec"},
}

// Config is the parsed specchain.yaml.
type Config struct {
	Project        Project            `yaml:"project"`
	Output         Output             `yaml:"output"`
	Chain          Chain              `yaml:"chain"`
	IDOwners       map[string]string  `yaml:"id_owners,omitempty"`
	FeatureFileMap map[string]Feature `yaml:"feature_file_map,omitempty"`

	dir string // absolute directory of the configuration file
}

// Project holds descriptive metadata.
type Project struct {
	Name string `yaml:"name"`
}

// Output names the directory holding generated documents.
type Output struct {
	Directory string `yaml:"directory"`
}

// Chain describes the document chain.
type Chain struct {
	Order     []string            `yaml:"order,omitempty"`
	Pairs     [][]string          `yaml:"pairs,omitempty"`
	Documents map[string]Document `yaml:"documents"`
}

// Document locates one chain document. A document is either a single file
// (Output) or split into a system part and a features part, each of which
// may be a file or a directory of markdown files.
type Document struct {
	Output         string `yaml:"output,omitempty"`
	SystemOutput   string `yaml:"system_output,omitempty"`
	FeaturesOutput string `yaml:"features_output,omitempty"`
}

// Feature maps a feature identifier to the source files implementing it.
type Feature struct {
	Label string   `yaml:"label"`
	Files []string `yaml:"files"`
}

// Pair is a directed upstream → downstream edge of the chain.
type Pair struct {
	Upstream   string `json:"upstream"`
	Downstream string `json:"downstream"`
}

// Load reads, parses and validates the configuration at path.
func Load(path string) (*Config, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %w", ErrConfig, path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s not found", ErrConfig, path)
		}
		return nil, fmt.Errorf("%w: reading config: %w", ErrConfig, err)
	}

	return Parse(data, filepath.Dir(abs))
}

// Parse decodes YAML configuration whose relative paths resolve against dir.
func Parse(data []byte, dir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config: %w", ErrConfig, err)
	}
	cfg.dir = dir
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Exists reports whether a configuration file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// validatePath rejects traversal and non-YAML files before touching disk.
func validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: config path is required", ErrConfig)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("%w: config path %q must not contain '..'", ErrConfig, path)
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return nil
	default:
		return fmt.Errorf("%w: config path %q must be a .yaml or .yml file", ErrConfig, path)
	}
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if len(c.Chain.Documents) == 0 {
		return fmt.Errorf("%w: chain.documents is empty", ErrConfig)
	}
	for docType, d := range c.Chain.Documents {
		if d.Output == "" && d.SystemOutput == "" && d.FeaturesOutput == "" {
			return fmt.Errorf("%w: document %q has no output path", ErrConfig, docType)
		}
	}
	for _, docType := range c.Chain.Order {
		if !c.HasDocument(docType) {
			return fmt.Errorf("%w: chain.order references unknown document %q", ErrConfig, docType)
		}
	}
	for _, p := range c.Chain.Pairs {
		if len(p) != 2 {
			return fmt.Errorf("%w: chain.pairs entries must have exactly two document types, got %v", ErrConfig, p)
		}
		for _, docType := range p {
			if !c.HasDocument(docType) {
				return fmt.Errorf("%w: chain.pairs references unknown document %q", ErrConfig, docType)
			}
		}
	}
	for prefix, owner := range c.IDOwners {
		if !c.HasDocument(owner) {
			return fmt.Errorf("%w: id_owners maps %s to unknown document %q", ErrConfig, prefix, owner)
		}
	}
	for id, f := range c.FeatureFileMap {
		if len(f.Files) == 0 {
			return fmt.Errorf("%w: feature %s has no file globs", ErrConfig, id)
		}
	}
	return nil
}

// Dir returns the absolute directory of the configuration file.
func (c *Config) Dir() string { return c.dir }

// HasDocument reports whether docType is configured.
func (c *Config) HasDocument(docType string) bool {
	_, ok := c.Chain.Documents[docType]
	return ok
}

// Order returns the chain order. When none is configured, the V-model order
// restricted to configured documents is used, followed by any remaining
// documents sorted by name.
func (c *Config) Order() []string {
	if len(c.Chain.Order) > 0 {
		return append([]string(nil), c.Chain.Order...)
	}

	seen := make(map[string]bool)
	var order []string
	for _, docType := range VModelOrder {
		if c.HasDocument(docType) {
			order = append(order, docType)
			seen[docType] = true
		}
	}
	var extra []string
	for docType := range c.Chain.Documents {
		if !seen[docType] {
			extra = append(extra, docType)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// Position returns the index of docType in the chain order, or -1.
func (c *Config) Position(docType string) int {
	for i, d := range c.Order() {
		if d == docType {
			return i
		}
	}
	return -1
}

// Pairs returns the configured pairs, or adjacent pairs over Order.
func (c *Config) Pairs() []Pair {
	if len(c.Chain.Pairs) > 0 {
		out := make([]Pair, 0, len(c.Chain.Pairs))
		for _, p := range c.Chain.Pairs {
			out = append(out, Pair{Upstream: p[0], Downstream: p[1]})
		}
		return out
	}

	order := c.Order()
	var out []Pair
	for i := 0; i+1 < len(order); i++ {
		out = append(out, Pair{Upstream: order[i], Downstream: order[i+1]})
	}
	return out
}

// DocumentPaths returns the absolute paths configured for docType, in the
// order output, system_output, features_output.
func (c *Config) DocumentPaths(docType string) []string {
	d, ok := c.Chain.Documents[docType]
	if !ok {
		return nil
	}
	var out []string
	for _, p := range []string{d.Output, d.SystemOutput, d.FeaturesOutput} {
		if p != "" {
			out = append(out, c.Resolve(p))
		}
	}
	return out
}

// Resolve makes p absolute relative to the configuration directory.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.dir, p)
}

// CheckpointPaths returns the files a pre-propagation checkpoint may
// commit: every document of the chain in order, then the output directory
// when output.directory is set explicitly. The configuration directory is
// never included as a whole.
func (c *Config) CheckpointPaths() []string {
	var out []string
	for _, docType := range c.Order() {
		out = append(out, c.DocumentPaths(docType)...)
	}
	if c.Output.Directory != "" {
		out = append(out, c.Resolve(c.Output.Directory))
	}
	return out
}

// Owner returns the document type that defines identifiers with prefix, or
// "" when neither id_owners nor the built-in table names a configured
// document. Callers then infer the owner from the documents themselves.
func (c *Config) Owner(prefix string) string {
	if owner, ok := c.IDOwners[prefix]; ok {
		return owner
	}
	for _, candidate := range builtinOwners[prefix] {
		if c.HasDocument(candidate) {
			return candidate
		}
	}
	return ""
}

// OwnedPrefixes returns the prefixes whose owner (per Owner) is docType.
// Only id_owners entries and known prefixes are considered.
func (c *Config) OwnedPrefixes(docType string) []string {
	seen := make(map[string]bool)
	var out []string
	for prefix := range c.IDOwners {
		if c.Owner(prefix) == docType && !seen[prefix] {
			seen[prefix] = true
			out = append(out, prefix)
		}
	}
	for prefix := range builtinOwners {
		if c.Owner(prefix) == docType && !seen[prefix] {
			seen[prefix] = true
			out = append(out, prefix)
		}
	}
	sort.Strings(out)
	return out
}

// FeatureIDs returns the configured feature identifiers, sorted.
func (c *Config) FeatureIDs() []string {
	out := make([]string, 0, len(c.FeatureFileMap))
	for id := range c.FeatureFileMap {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
