package pattern

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/intentest/intentest/internal/model"
	interrors "github.com/intentest/intentest/pkg/errors"
)

type tier int

const (
	tierExact tier = iota
	tierCustom
	tierBuiltin
)

// ParamSpec declares one extracted parameter. Value is either a literal
// or a $N reference to a capture group; order in the slice is the
// pattern's declared extraction order.
type ParamSpec struct {
	Name  string
	Value string
}

// StepPattern is an ordered-priority matcher mapping raw step text to an
// action kind. Immutable after registration.
type StepPattern struct {
	Source string
	Action model.ActionKind
	Params []ParamSpec

	tier        tier
	specificity int
	seq         int
	re          *regexp.Regexp
}

// Registry holds built-in and user-defined step patterns. Lookup is
// deterministic: exact literal > custom > built-in, and within a tier by
// descending specificity (count of fixed tokens), then registration
// order. Registration is a load-time operation; Match is pure.
type Registry struct {
	mu       sync.RWMutex
	patterns []*StepPattern
	nextSeq  int
	sorted   bool
}

// NewRegistry returns a registry pre-loaded with the built-in patterns.
func NewRegistry() *Registry {
	r := &Registry{}
	for _, b := range builtinPatterns() {
		// Builtin definitions are vetted at development time; a non
		// compiling pattern here is a programming error.
		if err := r.register(b.pattern, b.action, b.params, tierBuiltin); err != nil {
			panic(err)
		}
	}
	return r
}

// RegisterCustom adds a user-defined pattern. Patterns without regular
// expression metacharacters are treated as exact literals, which outrank
// every other tier.
func (r *Registry) RegisterCustom(pattern string, action model.ActionKind, params []ParamSpec) error {
	t := tierCustom
	if isLiteral(pattern) {
		t = tierExact
	}
	return r.register(pattern, action, params, t)
}

func (r *Registry) register(pattern string, action model.ActionKind, params []ParamSpec, t tier) error {
	if !action.IsValid() {
		return interrors.NewValidationError("action", "unknown action kind "+string(action), nil)
	}

	// The non-capturing group keeps the anchors binding the whole
	// pattern even when it carries a top-level alternation; group
	// numbering is unaffected.
	re, err := regexp.Compile(`(?i)^\s*(?:` + pattern + `)\s*$`)
	if err != nil {
		return interrors.NewValidationError("pattern", err.Error(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.patterns = append(r.patterns, &StepPattern{
		Source:      pattern,
		Action:      action,
		Params:      append([]ParamSpec(nil), params...),
		tier:        t,
		specificity: specificity(pattern),
		seq:         r.nextSeq,
		re:          re,
	})
	r.nextSeq++
	r.sorted = false
	return nil
}

// Match finds the highest-priority pattern matching the raw step text and
// returns the action kind with raw extracted parameters in declared
// order. Returns UnmatchedStepError when nothing matches: an unrecognized
// step is surfaced, never skipped.
func (r *Registry) Match(raw string) (model.ActionKind, []model.Param, error) {
	r.mu.Lock()
	if !r.sorted {
		sort.SliceStable(r.patterns, func(i, j int) bool {
			a, b := r.patterns[i], r.patterns[j]
			if a.tier != b.tier {
				return a.tier < b.tier
			}
			if a.specificity != b.specificity {
				return a.specificity > b.specificity
			}
			return a.seq < b.seq
		})
		r.sorted = true
	}
	patterns := r.patterns
	r.mu.Unlock()

	text := strings.TrimSpace(raw)
	for _, p := range patterns {
		groups := p.re.FindStringSubmatch(text)
		if groups == nil {
			continue
		}

		params := make([]model.Param, 0, len(p.Params))
		for _, spec := range p.Params {
			params = append(params, model.Param{
				Name:  spec.Name,
				Value: strings.TrimSpace(expandGroups(spec.Value, groups)),
			})
		}
		return p.Action, params, nil
	}

	return "", nil, interrors.NewUnmatchedStepError(raw)
}

// Actions lists every action kind reachable through registered patterns,
// sorted for stable output.
func (r *Registry) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]struct{}{}
	for _, p := range r.patterns {
		seen[string(p.Action)] = struct{}{}
	}
	actions := make([]string, 0, len(seen))
	for a := range seen {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	return actions
}

// Patterns returns the registered pattern sources in priority order.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.patterns))
	for _, p := range r.patterns {
		out = append(out, p.Source)
	}
	return out
}

var groupRef = regexp.MustCompile(`\$(\d+)`)

// expandGroups substitutes $N references with the matched capture groups.
func expandGroups(value string, groups []string) string {
	return groupRef.ReplaceAllStringFunc(value, func(ref string) string {
		idx := 0
		for _, c := range ref[1:] {
			idx = idx*10 + int(c-'0')
		}
		if idx >= 1 && idx < len(groups) {
			return groups[idx]
		}
		return ""
	})
}

var metaChars = "\\^$.|?*+()[]{}"

func isLiteral(pattern string) bool {
	return !strings.ContainsAny(pattern, metaChars)
}

// specificity counts the fixed word tokens of a pattern: the literal
// words left after stripping groups and metacharacters. A pattern that is
// a strict token superset of another scores higher and wins on overlap.
func specificity(pattern string) int {
	depth := 0
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				if strings.ContainsRune(metaChars, rune(c)) {
					b.WriteByte(' ')
				} else {
					b.WriteByte(c)
				}
			}
		}
	}

	count := 0
	for _, token := range strings.Fields(b.String()) {
		if strings.TrimFunc(token, func(r rune) bool { return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') }) != "" {
			count++
		}
	}
	return count
}
