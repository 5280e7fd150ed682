// Package access decides whether an application may use a device API
// feature.
//
// A feature is permitted only when the application declares its privilege.
// Beyond that, an ordered list of rules applies; the first rule whose feature
// matches and whose condition holds decides. Conditions are expr programs
// evaluated natively against the application and the requested feature.
package access

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/wrtplugins/wrt/internal/apierr"
)

// Decision is the outcome of an access check.
type Decision int

const (
	Deny Decision = iota
	Permit
)

func (d Decision) String() string {
	if d == Permit {
		return "permit"
	}
	return "deny"
}

// ParseDecision parses "permit" or "deny".
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "permit", "allow":
		return Permit, nil
	case "deny":
		return Deny, nil
	}
	return Deny, fmt.Errorf("invalid decision %q (want permit or deny)", s)
}

// App is the subject of an access check, as seen by rule conditions.
type App struct {
	ID         string   `expr:"id"`
	Name       string   `expr:"name"`
	Version    string   `expr:"version"`
	Trusted    bool     `expr:"trusted"`
	Privileges []string `expr:"privileges"`
}

// Declares reports whether the app lists privilege.
func (a App) Declares(privilege string) bool {
	return slices.Contains(a.Privileges, privilege)
}

// Env is the expr environment rule conditions are evaluated against.
type Env struct {
	App       App    `expr:"app"`
	Feature   string `expr:"feature"`
	Privilege string `expr:"privilege"`
}

// AnyFeature matches every feature in a rule.
const AnyFeature = "*"

// Rule is one policy line.
type Rule struct {
	Feature   string
	Decision  Decision
	Condition string
}

// ParseRule parses "<feature|*> <permit|deny> [condition]".
func ParseRule(line string) (Rule, error) {
	feature, rest := cutField(line)
	decision, rest := cutField(rest)
	if feature == "" || decision == "" {
		return Rule{}, fmt.Errorf("access rule %q: want <feature|*> <permit|deny> [condition]", line)
	}
	d, err := ParseDecision(decision)
	if err != nil {
		return Rule{}, fmt.Errorf("access rule %q: %w", line, err)
	}
	if feature != AnyFeature {
		if _, ok := Lookup(feature); !ok {
			return Rule{}, fmt.Errorf("access rule %q: unknown feature %q", line, feature)
		}
	}
	r := Rule{Feature: feature, Decision: d, Condition: strings.TrimSpace(rest)}
	return r, nil
}

// String formats r the way ParseRule reads it.
func (r Rule) String() string {
	s := r.Feature + " " + r.Decision.String()
	if r.Condition != "" {
		s += " " + r.Condition
	}
	return s
}

func cutField(s string) (field, rest string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// Policy is a default decision plus ordered rules.
type Policy struct {
	Default Decision
	Rules   []Rule
}

type compiledRule struct {
	Rule
	program *vm.Program
}

// Checker evaluates a policy. It is safe for concurrent use.
type Checker struct {
	def    Decision
	rules  []compiledRule
	logger *slog.Logger
}

// NewChecker compiles every rule condition up front.
func NewChecker(p Policy, logger *slog.Logger) (*Checker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{def: p.Default, logger: logger}
	for i, r := range p.Rules {
		cr := compiledRule{Rule: r}
		if r.Condition != "" {
			program, err := expr.Compile(r.Condition,
				expr.Env(Env{}),
				expr.AsBool(),
				expr.AllowUndefinedVariables(),
			)
			if err != nil {
				return nil, fmt.Errorf("access rule %d (%s): %w", i+1, r.Feature, err)
			}
			cr.program = program
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Check decides whether app may use feature.
func (c *Checker) Check(app App, feature string) Decision {
	f, ok := Lookup(feature)
	if !ok {
		c.logger.Warn("[Access] unknown feature", "feature", feature, "app", app.ID)
		return Deny
	}
	if !app.Declares(f.Privilege) {
		c.logger.Debug("[Access] privilege not declared", "feature", feature, "privilege", f.Privilege, "app", app.ID)
		return Deny
	}
	env := Env{App: app, Feature: f.Name, Privilege: f.Privilege}
	for _, r := range c.rules {
		if r.Feature != AnyFeature && r.Feature != f.Name {
			continue
		}
		if r.program != nil {
			out, err := expr.Run(r.program, env)
			if err != nil {
				c.logger.Error("[Access] rule evaluation failed", "condition", r.Condition, "feature", feature, "error", err)
				return Deny
			}
			if matched, _ := out.(bool); !matched {
				continue
			}
		}
		return r.Decision
	}
	return c.def
}

// Guard binds a checker to one application.
type Guard struct {
	checker *Checker
	app     App
}

// NewGuard returns a guard for app.
func NewGuard(c *Checker, app App) *Guard {
	return &Guard{checker: c, app: app}
}

// App returns the guarded application.
func (g *Guard) App() App { return g.app }

// Check returns a SecurityError unless the app may use feature.
func (g *Guard) Check(feature string) error {
	if g.checker.Check(g.app, feature) == Permit {
		return nil
	}
	return apierr.New(apierr.Security, "permission denied for %s", feature)
}
