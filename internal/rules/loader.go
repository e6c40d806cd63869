package rules

import (
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/JNZader/shapescan/internal/ast"
	"github.com/JNZader/shapescan/internal/logger"
	"github.com/JNZader/shapescan/internal/query"
)

//go:embed defaults/*.yaml
var embeddedRules embed.FS

// DefaultKey is the key of a rule loaded from a string.
const DefaultKey = "default"

// BuiltinPrefix prefixes the keys of the embedded rules.
const BuiltinPrefix = "builtin/"

// RuleSet maps provenance keys to rules. It is read-only once built and
// safe to share between goroutines.
type RuleSet struct {
	keys  []string
	rules map[string]*Rule
}

// Option configures rule loading.
type Option func(*loadOptions)

type loadOptions struct {
	engine query.Engine
	log    *logger.Logger
}

// WithEngine compiles patterns with engine instead of the tree-sitter engine.
func WithEngine(engine query.Engine) Option {
	return func(o *loadOptions) { o.engine = engine }
}

// WithLogger sets the logger used to report skipped files.
func WithLogger(log *logger.Logger) Option {
	return func(o *loadOptions) { o.log = log }
}

func newLoadOptions(opts []Option) *loadOptions {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.engine == nil {
		o.engine = ast.NewEngine()
	}
	if o.log == nil {
		o.log = logger.Default()
	}
	o.log = o.log.WithPrefix("RULES")
	return o
}

// NewRuleSet builds a rule set from already loaded rules.
func NewRuleSet(rules map[string]*Rule) *RuleSet {
	rs := &RuleSet{rules: make(map[string]*Rule, len(rules))}
	for k, r := range rules {
		rs.rules[k] = r
		rs.keys = append(rs.keys, k)
	}
	sort.Strings(rs.keys)
	return rs
}

// FromString loads a single rule from YAML text under DefaultKey.
func FromString(text string, opts ...Option) (*RuleSet, error) {
	o := newLoadOptions(opts)
	rule, err := ParseRule([]byte(text), o.engine)
	if err != nil {
		return nil, err
	}
	return NewRuleSet(map[string]*Rule{DefaultKey: rule}), nil
}

// FromFile loads a single rule file keyed by its path.
func FromFile(path string, opts ...Option) (*RuleSet, error) {
	o := newLoadOptions(opts)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	rule, err := ParseRule(data, o.engine)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return NewRuleSet(map[string]*Rule{path: rule}), nil
}

// FromDirectory loads every .yml and .yaml file below root, keyed by path.
// With ignoreErrors set, files that fail to read, parse or compile are
// skipped; otherwise the first failure is returned as a *FileError.
func FromDirectory(root string, ignoreErrors bool, opts ...Option) (*RuleSet, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &FileError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &FileError{Path: root, Err: errors.New("not a directory")}
	}
	return load(os.DirFS(root), ".", ignoreErrors, func(p string) string {
		return filepath.Join(root, filepath.FromSlash(p))
	}, newLoadOptions(opts))
}

// FromFS loads every rule file below root in fsys, keyed by its path in fsys.
func FromFS(fsys fs.FS, root string, ignoreErrors bool, opts ...Option) (*RuleSet, error) {
	return load(fsys, root, ignoreErrors, func(p string) string { return p }, newLoadOptions(opts))
}

// LoadBuiltin loads the rules embedded in the binary.
func LoadBuiltin(opts ...Option) (*RuleSet, error) {
	return load(embeddedRules, "defaults", false, func(p string) string {
		return BuiltinPrefix + strings.TrimPrefix(p, "defaults/")
	}, newLoadOptions(opts))
}

func load(fsys fs.FS, root string, ignoreErrors bool, key func(string) string, o *loadOptions) (*RuleSet, error) {
	rules := make(map[string]*Rule)

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if ignoreErrors && p != root {
				o.log.Debug("Skipping %s: %v", key(p), err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			return &FileError{Path: key(p), Err: err}
		}
		if d.IsDir() || !IsRuleFile(p) {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err == nil {
			var rule *Rule
			if rule, err = ParseRule(data, o.engine); err == nil {
				rules[key(p)] = rule
				return nil
			}
		}
		if ignoreErrors {
			o.log.Debug("Skipping rule file %s: %v", key(p), err)
			return nil
		}
		return &FileError{Path: key(p), Err: err}
	})
	if err != nil {
		return nil, err
	}

	o.log.Debug("Loaded %d rules", len(rules))
	return NewRuleSet(rules), nil
}

// IsRuleFile reports whether name has a rule file extension.
func IsRuleFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.keys) }

// Keys returns the rule keys in lexical order.
func (rs *RuleSet) Keys() []string {
	return append([]string(nil), rs.keys...)
}

// Get returns the rule stored under key.
func (rs *RuleSet) Get(key string) (*Rule, bool) {
	r, ok := rs.rules[key]
	return r, ok
}

// Rules returns the rules in key order.
func (rs *RuleSet) Rules() []*Rule {
	out := make([]*Rule, 0, len(rs.keys))
	for _, k := range rs.keys {
		out = append(out, rs.rules[k])
	}
	return out
}

// FindByID returns the first rule, in key order, with the given id.
func (rs *RuleSet) FindByID(id string) (*Rule, bool) {
	for _, k := range rs.keys {
		if rs.rules[k].id == id {
			return rs.rules[k], true
		}
	}
	return nil, false
}

// Merge returns a rule set holding the rules of rs and other. Rules of
// other replace rules of rs stored under the same key.
func (rs *RuleSet) Merge(other *RuleSet) *RuleSet {
	all := make(map[string]*Rule, len(rs.rules)+len(other.rules))
	for k, r := range rs.rules {
		all[k] = r
	}
	for k, r := range other.rules {
		all[k] = r
	}
	return NewRuleSet(all)
}

// ViableChecker is a check whose identifiers all occur in a source.
type ViableChecker struct {
	Key     string
	Rule    *Rule
	Index   int
	Checker *Checker
}

// ViableCheckers returns, in key and declaration order, the checks that
// may match source.
func (rs *RuleSet) ViableCheckers(source string) []ViableChecker {
	var out []ViableChecker
	for _, k := range rs.keys {
		rule := rs.rules[k]
		for i, c := range rule.checks {
			if c.CanMatch(source) {
				out = append(out, ViableChecker{Key: k, Rule: rule, Index: i, Checker: c})
			}
		}
	}
	return out
}

// Fingerprint identifies the loaded rule content. It changes whenever a
// key is added or removed or a rule document changes.
func (rs *RuleSet) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, k := range rs.keys {
		_, _ = h.WriteString(k)
		binary.LittleEndian.PutUint64(buf[:], rs.rules[k].digest)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// String returns a short description of the set.
func (rs *RuleSet) String() string {
	return fmt.Sprintf("RuleSet(%d rules)", rs.Len())
}
