package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JNZader/shapescan/internal/ast"
	"github.com/JNZader/shapescan/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the loaded rules",
	Long: `List the rules a scan would run with the current configuration.

Examples:
  # Built-in and project rules
  shapescan rules list --rules rules/

  # Only memory safety rules, as JSON
  shapescan rules list --tags memory --json`,
	Args: cobra.NoArgs,
	RunE: runRulesList,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <paths...>",
	Short: "Check rule files for errors",
	Long: `Load every rule file under the given paths and report each file that
fails to load. The command exits non-zero if any file is invalid.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRulesValidate,
}

var rulesListBindings = []flagBinding{
	{"rules.paths", "rules"},
	{"rules.min_severity", "min-severity"},
	{"rules.tags", "tags"},
	{"rules.exclude_tags", "exclude-tags"},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesValidateCmd)

	rulesListCmd.Flags().StringSliceP("rules", "r", nil, "Rule files or directories to load")
	rulesListCmd.Flags().Bool("no-builtin", false, "Do not load the built-in rules")
	rulesListCmd.Flags().String("min-severity", "none", "Drop rules below this severity")
	rulesListCmd.Flags().StringSlice("tags", nil, "Only rules with one of these tags")
	rulesListCmd.Flags().StringSlice("exclude-tags", nil, "Skip rules with any of these tags")
	rulesListCmd.Flags().Bool("json", false, "output as JSON")
}

// ruleInfo is the listed form of a rule.
type ruleInfo struct {
	Key         string   `json:"key"`
	ID          string   `json:"id"`
	Author      string   `json:"author,omitempty"`
	Description string   `json:"description,omitempty"`
	Severity    string   `json:"severity"`
	Tags        []string `json:"tags,omitempty"`
	Checks      []string `json:"checks"`
}

func runRulesList(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, rulesListBindings)
	if err != nil {
		return err
	}
	if noBuiltin, _ := cmd.Flags().GetBool("no-builtin"); noBuiltin {
		cfg.Rules.Builtin = false
	}

	log := newLogger(cfg)
	rs, err := loadRuleSet(cfg, newEngine(cfg), log, rules.Filter{})
	if err != nil {
		return err
	}

	infos := make([]ruleInfo, 0, rs.Len())
	for _, key := range rs.Keys() {
		r, _ := rs.Get(key)
		info := ruleInfo{
			Key:         key,
			ID:          r.ID(),
			Author:      r.Author(),
			Description: r.Description(),
			Severity:    r.Severity().String(),
			Tags:        r.Tags(),
		}
		for _, c := range r.Checks() {
			info.Checks = append(info.Checks, c.Name())
		}
		infos = append(infos, info)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	return writeRuleTable(out, infos)
}

func writeRuleTable(w io.Writer, infos []ruleInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tCHECKS\tTAGS\tSOURCE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			info.ID, info.Severity, strings.Join(info.Checks, ","), strings.Join(info.Tags, ","), info.Key)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !isQuiet() {
		fmt.Fprintf(w, "\n%d rules\n", len(infos))
	}
	return nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	files, err := collectRuleFiles(args)
	if err != nil {
		return err
	}

	engine := ast.NewEngine()
	out := cmd.OutOrStdout()
	var errs []error
	for _, path := range files {
		rs, err := rules.FromFile(path, rules.WithEngine(engine))
		if err != nil {
			errs = append(errs, err)
			fmt.Fprintf(out, "FAIL  %v\n", err)
			continue
		}
		if isVerbose() {
			r, _ := rs.Get(path)
			fmt.Fprintf(out, "ok    %s (%s, %d checks)\n", path, r.ID(), len(r.Checks()))
		}
	}

	if !isQuiet() {
		fmt.Fprintf(out, "%d files, %d invalid\n", len(files), len(errs))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d invalid rule files: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// collectRuleFiles expands directories into the rule files below them.
// Files named directly are kept whatever their extension.
func collectRuleFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && rules.IsRuleFile(d.Name()) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
