package automation

import (
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry and Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds validated rules keyed by ID.
//
// All public methods are thread-safe.
type Registry struct {
	mu     sync.RWMutex
	rules  map[string]Rule
	logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:  make(map[string]Rule),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Add validates rule and stores it, generating an ID when it has none.
// It returns the stored rule.
func (r *Registry) Add(rule Rule) (Rule, error) {
	if err := ValidateRule(rule); err != nil {
		if rule.ID != "" {
			return Rule{}, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		return Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = GenerateID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID]; exists {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleExists, rule.ID)
	}
	r.rules[rule.ID] = rule
	r.logger.Debug("automation rule added", "id", rule.ID, "rule", rule.String())
	return rule, nil
}

// Get returns the rule with the given ID.
func (r *Registry) Get(id string) (Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rule, nil
}

// Remove deletes a rule. Events already scheduled for it are unaffected.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(r.rules, id)
	return nil
}

// List returns all rules ordered by ID.
func (r *Registry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
