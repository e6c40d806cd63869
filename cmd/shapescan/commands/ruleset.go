package commands

import (
	"fmt"
	"os"

	"github.com/JNZader/shapescan/internal/ast"
	"github.com/JNZader/shapescan/internal/config"
	"github.com/JNZader/shapescan/internal/logger"
	"github.com/JNZader/shapescan/internal/rules"
)

// newEngine returns the structural engine configured by cfg. Rules and
// matchers of one run must share it.
func newEngine(cfg *config.Config) *ast.Engine {
	engine := ast.NewEngine()
	if cfg.Scan.ParseTimeout > 0 {
		engine.ParseTimeout = cfg.Scan.ParseTimeout
	}
	return engine
}

// loadRuleSet loads the built-in rules and every configured rule path,
// then applies the configured filter.
func loadRuleSet(cfg *config.Config, engine *ast.Engine, log *logger.Logger, extra rules.Filter) (*rules.RuleSet, error) {
	opts := []rules.Option{rules.WithEngine(engine), rules.WithLogger(log)}

	rs := rules.NewRuleSet(nil)
	if cfg.Rules.Builtin {
		builtin, err := rules.LoadBuiltin(opts...)
		if err != nil {
			return nil, fmt.Errorf("loading built-in rules: %w", err)
		}
		rs = rs.Merge(builtin)
	}

	for _, path := range cfg.Rules.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("loading rules: %w", err)
		}
		var loaded *rules.RuleSet
		if info.IsDir() {
			loaded, err = rules.FromDirectory(path, cfg.Rules.IgnoreErrors, opts...)
		} else {
			loaded, err = rules.FromFile(path, opts...)
		}
		if err != nil {
			return nil, fmt.Errorf("loading rules: %w", err)
		}
		log.Debug("Loaded %d rules from %s", loaded.Len(), path)
		rs = rs.Merge(loaded)
	}

	filter := cfg.Filter()
	filter.IDs = extra.IDs
	return rs.Filter(filter), nil
}
