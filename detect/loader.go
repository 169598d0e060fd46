package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"argus/core"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a catalog document
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the catalog format from a file extension
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ValidationError lists every problem found in a catalog document
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid rule catalog %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

type catalogFile struct {
	Actions []string   `json:"actions"`
	Rules   []ruleFile `json:"rules"`
}

type ruleFile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Tags        []string `json:"tags"`
	Condition   string   `json:"condition"`
	Window      int      `json:"window"`
	Threshold   int      `json:"threshold"`
	Actions     []string `json:"actions"`
}

// Catalog is the validated, immutable set of rules loaded at startup
type Catalog struct {
	rules         []*core.Rule
	byID          map[string]*core.Rule
	globalActions []string
	version       string
	source        string
}

// LoadCatalog reads and validates the catalog at path. On any error no
// catalog is returned.
func LoadCatalog(path string, regexTimeout time.Duration, logger *zap.SugaredLogger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule catalog %s: %w", path, err)
	}
	catalog, err := parseCatalog(data, FormatFromPath(path), path, regexTimeout)
	if err != nil {
		return nil, err
	}
	logger.Infof("Loaded %d rules from %s (version %s)", len(catalog.rules), path, catalog.version)
	return catalog, nil
}

// ParseCatalog validates a catalog document held in memory
func ParseCatalog(data []byte, format Format, regexTimeout time.Duration) (*Catalog, error) {
	return parseCatalog(data, format, "<inline>", regexTimeout)
}

func parseCatalog(data []byte, format Format, source string, regexTimeout time.Duration) (*Catalog, error) {
	doc, err := toJSON(data, format)
	if err != nil {
		return nil, &ValidationError{Source: source, Problems: []string{err.Error()}}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(catalogSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return nil, &ValidationError{Source: source, Problems: []string{fmt.Sprintf("schema validation failed: %v", err)}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &ValidationError{Source: source, Problems: problems}
	}

	var file catalogFile
	if err := json.Unmarshal(doc, &file); err != nil {
		return nil, &ValidationError{Source: source, Problems: []string{err.Error()}}
	}

	catalog := &Catalog{
		byID:          make(map[string]*core.Rule, len(file.Rules)),
		globalActions: file.Actions,
		source:        source,
	}
	var problems []string
	for i, rf := range file.Rules {
		if _, dup := catalog.byID[rf.ID]; dup {
			problems = append(problems, fmt.Sprintf("rules.%d: duplicate rule id %q", i, rf.ID))
			continue
		}
		rule, err := resolveRule(rf, regexTimeout)
		if err != nil {
			problems = append(problems, fmt.Sprintf("rules.%d (%s): %v", i, rf.ID, err))
			continue
		}
		catalog.byID[rule.ID] = rule
		catalog.rules = append(catalog.rules, rule)
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Source: source, Problems: problems}
	}

	sum := sha256.Sum256(doc)
	catalog.version = hex.EncodeToString(sum[:])[:12]
	return catalog, nil
}

// resolveRule fixes the evaluation strategy of a rule once:
// window and threshold together make a threshold rule, a condition alone
// makes a pattern rule, anything else is inert. A threshold rule that also
// has a condition is a hybrid: the count decides, and the condition must
// match the triggering event. Counting ignores the condition.
func resolveRule(rf ruleFile, regexTimeout time.Duration) (*core.Rule, error) {
	severity, err := core.ParseSeverity(rf.Severity)
	if err != nil {
		return nil, err
	}

	rule := &core.Rule{
		ID:          rf.ID,
		Name:        rf.Name,
		Description: rf.Description,
		Severity:    severity,
		Tags:        rf.Tags,
		Condition:   rf.Condition,
		Window:      time.Duration(rf.Window) * time.Second,
		Threshold:   rf.Threshold,
		Actions:     rf.Actions,
	}

	if rf.Condition != "" {
		re, err := CompilePattern(rf.Condition, regexTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid condition %q: %w", rf.Condition, err)
		}
		rule.Pattern = re
	}

	switch {
	case rf.Window > 0 && rf.Threshold > 0:
		rule.Kind = core.RuleKindThreshold
	case rule.Pattern != nil:
		rule.Kind = core.RuleKindPattern
	default:
		rule.Kind = core.RuleKindInert
	}
	return rule, nil
}

func toJSON(data []byte, format Format) ([]byte, error) {
	if format != FormatYAML {
		if !json.Valid(data) {
			return nil, fmt.Errorf("catalog is not valid JSON")
		}
		return data, nil
	}
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML catalog: %w", err)
	}
	return out, nil
}

// Rules returns the rules in catalog order
func (c *Catalog) Rules() []*core.Rule {
	out := make([]*core.Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Rule looks up a rule by id
func (c *Catalog) Rule(id string) (*core.Rule, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// Len returns the number of rules
func (c *Catalog) Len() int {
	return len(c.rules)
}

// GlobalActions returns the actions used by rules that name none
func (c *Catalog) GlobalActions() []string {
	out := make([]string, len(c.globalActions))
	copy(out, c.globalActions)
	return out
}

// ActionsFor returns the notification channels for rule
func (c *Catalog) ActionsFor(rule *core.Rule) []string {
	if len(rule.Actions) > 0 {
		out := make([]string, len(rule.Actions))
		copy(out, rule.Actions)
		return out
	}
	return c.GlobalActions()
}

// ActionNames returns every distinct channel name referenced by the catalog
func (c *Catalog) ActionNames() []string {
	seen := make(map[string]struct{})
	for _, a := range c.globalActions {
		seen[a] = struct{}{}
	}
	for _, r := range c.rules {
		for _, a := range r.Actions {
			seen[a] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for a := range seen {
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}

// Version identifies the loaded catalog content
func (c *Catalog) Version() string {
	return c.version
}

// Source is the path the catalog was loaded from
func (c *Catalog) Source() string {
	return c.source
}
