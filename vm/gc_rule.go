package vm

import "fmt"

// DefaultCutoff is the fill ratio at which the size-based rules trigger.
const DefaultCutoff = 0.75

// GCRule decides when a collection pass runs.
type GCRule uint8

const (
	RuleByHeapSize GCRule = iota
	RuleAlways
	RuleByNativePoolSize
)

var gcRuleNames = [...]string{
	RuleByHeapSize:       "heap-size",
	RuleAlways:           "always",
	RuleByNativePoolSize: "pool-size",
}

func (r GCRule) String() string {
	if int(r) < len(gcRuleNames) {
		return gcRuleNames[r]
	}
	return fmt.Sprintf("GCRule(%d)", r)
}

// ParseGCRule maps a rule name to its GCRule.
func ParseGCRule(name string) (GCRule, error) {
	for i, n := range gcRuleNames {
		if n == name {
			return GCRule(i), nil
		}
	}
	return 0, fmt.Errorf("unknown gc rule %q", name)
}

// GCMode is the bitfield form of a rule selection.
type GCMode uint32

const (
	GCModeAlways GCMode = 1 << iota
	GCModeHeapSize
	GCModePoolSize
)

// RuleForMode returns the rule for the lowest set bit of m. A zero mode
// selects RuleByHeapSize.
func RuleForMode(m GCMode) GCRule {
	switch {
	case m&GCModeAlways != 0:
		return RuleAlways
	case m&GCModeHeapSize != 0:
		return RuleByHeapSize
	case m&GCModePoolSize != 0:
		return RuleByNativePoolSize
	}
	return RuleByHeapSize
}

// ShouldGC evaluates rule against the process's heap or native pool.
func ShouldGC(rule GCRule, p *Process, cutoff float64) bool {
	if cutoff <= 0 {
		cutoff = DefaultCutoff
	}
	switch rule {
	case RuleAlways:
		return true
	case RuleByHeapSize:
		return overCutoff(p.heap.Size(), p.heap.MaxSize(), cutoff)
	case RuleByNativePoolSize:
		return overCutoff(p.pool.Size(), p.pool.MaxSize(), cutoff)
	}
	return false
}

// Unbounded stores never trigger the size rules.
func overCutoff(size, max int, cutoff float64) bool {
	if max <= 0 {
		return false
	}
	return float64(size) >= float64(max)*cutoff
}
