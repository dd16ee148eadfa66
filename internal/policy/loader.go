// Package policy turns declarative policy documents into the validated
// records the authorization engine consumes: a YAML loader, a fluent
// builder, and optional Postgres persistence.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhawalhost/mcpguard/internal/authz"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ValidationError reports a field-level policy shape violation found at
// load time.
type ValidationError struct {
	Policy string
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("policy %q: field %s: %s", e.Policy, e.Field, e.Detail)
	}
	return fmt.Sprintf("policy %q: %s", e.Policy, e.Detail)
}

// Loader parses and validates policy documents.
type Loader struct {
	validate *validator.Validate
	logger   *zap.Logger
}

// NewLoader creates a loader. A nil logger is replaced with a no-op.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		validate: validator.New(),
		logger:   logger.Named("policy.loader"),
	}
}

// LoadBytes parses one YAML policy document and validates it.
func (l *Loader) LoadBytes(data []byte) (authz.Policy, error) {
	var p authz.Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return authz.Policy{}, &ValidationError{Policy: p.Name, Detail: fmt.Sprintf("invalid yaml: %v", err)}
	}
	if err := l.Validate(&p); err != nil {
		return authz.Policy{}, err
	}
	return p, nil
}

// LoadFile loads and validates a single YAML policy file.
func (l *Loader) LoadFile(path string) (authz.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return authz.Policy{}, fmt.Errorf("read policy file %s: %w", path, err)
	}
	p, err := l.LoadBytes(data)
	if err != nil {
		return authz.Policy{}, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Info("policy loaded", zap.String("policy", p.Name), zap.String("file", path))
	return p, nil
}

// LoadDir loads every *.yaml / *.yml file in a directory. A file that
// fails to parse or validate is logged and skipped; the batch continues
// with the remaining files.
func (l *Loader) LoadDir(dir string) ([]authz.Policy, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read policy directory %s: %w", dir, err)
	}

	var policies []authz.Policy
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		p, err := l.LoadFile(path)
		if err != nil {
			l.logger.Error("skipping invalid policy file",
				zap.String("file", path), zap.Error(err))
			continue
		}
		policies = append(policies, p)
	}
	l.logger.Info("policy directory loaded",
		zap.String("dir", dir), zap.Int("policies", len(policies)))
	return policies, nil
}

// SaveFile serializes a policy back to YAML.
func (l *Loader) SaveFile(p authz.Policy, path string) error {
	if err := l.Validate(&p); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal policy %q: %w", p.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate normalizes effects to lower case and checks the policy shape:
// struct tags via go-playground/validator plus rule-name uniqueness
// within the policy.
func (l *Loader) Validate(p *authz.Policy) error {
	p.DefaultEffect = authz.Effect(strings.ToLower(string(p.DefaultEffect)))
	for i := range p.Rules {
		p.Rules[i].Effect = authz.Effect(strings.ToLower(string(p.Rules[i].Effect)))
	}

	if err := l.validate.Struct(p); err != nil {
		var invalid validator.ValidationErrors
		if ok := errors.As(err, &invalid); ok && len(invalid) > 0 {
			first := invalid[0]
			return &ValidationError{
				Policy: p.Name,
				Field:  first.Namespace(),
				Detail: fmt.Sprintf("failed %q validation", first.Tag()),
			}
		}
		return &ValidationError{Policy: p.Name, Detail: err.Error()}
	}

	seen := make(map[string]struct{}, len(p.Rules))
	for _, r := range p.Rules {
		if _, dup := seen[r.Name]; dup {
			return &ValidationError{
				Policy: p.Name,
				Field:  "rules",
				Detail: fmt.Sprintf("duplicate rule name %q", r.Name),
			}
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}
