package combine

import (
	"github.com/roach88/peephole/internal/ir"
)

// DefaultMaxIterations bounds the driver's dequeues per function when the
// configuration does not say otherwise.
const DefaultMaxIterations = 10000

// Config is the explicit configuration a Combiner is built from.
type Config struct {
	// Name identifies the combiner in logs and the run log.
	Name string `json:"name"`

	// Filter selects the enabled rules.
	Filter RuleFilter `json:"filter"`

	// MaxIterations bounds dequeues per function. Zero means
	// DefaultMaxIterations.
	MaxIterations int `json:"max_iterations"`

	// AllowIllegal permits rewrites outside the legal set. Post-legalization
	// combiners leave this false.
	AllowIllegal bool `json:"allow_illegal"`

	// DeadCodeElimination erases trivially dead instructions as they are
	// dequeued.
	DeadCodeElimination bool `json:"dce"`

	// DetectCycles stops the run when a function state repeats.
	DetectCycles bool `json:"detect_cycles"`
}

// DefaultConfig returns the post-legalization defaults.
func DefaultConfig() Config {
	return Config{
		Name:                "postlegalizer",
		MaxIterations:       DefaultMaxIterations,
		DeadCodeElimination: true,
	}
}

// Combiner is a rule table with a resolved filter. It holds no per-function
// state, so one Combiner may drive any number of functions concurrently.
type Combiner struct {
	table   *Table
	enabled []bool
	cfg     Config
}

// BuildCombiner resolves cfg against t. Any unknown rule identifier or bad
// budget is a ConfigError and no combiner is returned.
func BuildCombiner(t *Table, cfg Config) (*Combiner, error) {
	if cfg.MaxIterations < 0 {
		return nil, configErrorf("", "max iterations must not be negative, got %d", cfg.MaxIterations)
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	enabled, err := cfg.Filter.Resolve(t)
	if err != nil {
		return nil, err
	}
	return &Combiner{table: t, enabled: enabled, cfg: cfg}, nil
}

// Table returns the underlying rule table.
func (c *Combiner) Table() *Table { return c.table }

// Config returns the configuration with defaults filled in.
func (c *Combiner) Config() Config { return c.cfg }

// Enabled reports whether rule number n runs.
func (c *Combiner) Enabled(n int) bool { return c.enabled[n] }

// EnabledIDs lists the enabled rule IDs in table order.
func (c *Combiner) EnabledIDs() []string {
	var ids []string
	for i, on := range c.enabled {
		if on {
			ids = append(ids, c.table.rules[i].ID)
		}
	}
	return ids
}

// Match tries the enabled rules anchored on mi's opcode in order and
// returns the first that matches. Nothing is mutated.
func (c *Combiner) Match(h *Helper, mi *ir.Instruction) (Rule, MatchInfo, bool) {
	for _, n := range c.table.ForOpcode(mi.Opcode()) {
		if !c.enabled[n] {
			continue
		}
		r := c.table.rules[n]
		if info, ok := r.Match(h, mi); ok {
			return r, info, true
		}
	}
	return Rule{}, nil, false
}

// MatchAll returns every enabled rule whose Match succeeds on mi, without
// stopping at the first. Used for dry runs.
func (c *Combiner) MatchAll(h *Helper, mi *ir.Instruction) []Rule {
	var out []Rule
	for _, n := range c.table.ForOpcode(mi.Opcode()) {
		if !c.enabled[n] {
			continue
		}
		r := c.table.rules[n]
		if _, ok := r.Match(h, mi); ok {
			out = append(out, r)
		}
	}
	return out
}

// Snapshot is the canonical-JSON form of c: plain maps and slices with no
// nil lists, suitable for ir.MarshalCanonical and content hashing.
func (c Config) Snapshot() map[string]any {
	return map[string]any{
		"name": c.Name,
		"filter": map[string]any{
			"disable":     nonNil(c.Filter.Disable),
			"only_enable": nonNil(c.Filter.OnlyEnable),
		},
		"max_iterations": c.MaxIterations,
		"allow_illegal":  c.AllowIllegal,
		"dce":            c.DeadCodeElimination,
		"detect_cycles":  c.DetectCycles,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
