package badge

// ══════════════════════════════════════════════════════════════════════════════
// RULE SET
// An ordered collection of pure predicates evaluated on every XP award.
// New rules are added to the registry, not by changing the engine.
// ══════════════════════════════════════════════════════════════════════════════

// RuleContext carries the signals a rule may inspect. Rules are pure: they
// read the context and decide, nothing else.
type RuleContext struct {
	// Username of the user being evaluated.
	Username string

	// OldXP is the XP before the award.
	OldXP int64

	// NewXP is the XP after the award.
	NewXP int64

	// NewLevel is the level after the award.
	NewLevel int

	// Streak is the current consecutive-day streak.
	Streak int
}

// Rule pairs a badge with the predicate that grants it.
type Rule struct {
	// Badge to grant when the predicate holds.
	Badge Badge

	// Satisfied reports whether the badge condition is met.
	Satisfied func(ctx RuleContext) bool
}

// Registry is an ordered rule set. Evaluation order is registration order.
type Registry struct {
	rules []Rule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{rules: make([]Rule, 0)}
}

// Register appends a rule to the registry.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (r *Registry) Rules() []Rule {
	return r.rules
}

// Evaluate returns the badges whose predicates hold for the given context
// and which are not contained in the held set. Held badges are skipped, so
// repeated evaluation is idempotent.
func (r *Registry) Evaluate(ctx RuleContext, held map[string]bool) []Badge {
	var granted []Badge
	for _, rule := range r.rules {
		if held[rule.Badge.Code] {
			continue
		}
		if rule.Satisfied(ctx) {
			granted = append(granted, rule.Badge)
		}
	}
	return granted
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT RULES
// ══════════════════════════════════════════════════════════════════════════════

// xpThresholdRule builds a rule that fires once total XP reaches the threshold.
func xpThresholdRule(b Badge, threshold int64) Rule {
	return Rule{
		Badge: b,
		Satisfied: func(ctx RuleContext) bool {
			return ctx.NewXP >= threshold
		},
	}
}

// DefaultRegistry returns the standard EcoLearn rule set.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(xpThresholdRule(Badge{
		Code:        "GREEN_SPROUT",
		Name:        "Green Sprout",
		Description: "Earn your first 100 XP",
		Tier:        TierBronze,
	}, 100))

	r.Register(xpThresholdRule(Badge{
		Code:        "ECO_WARRIOR",
		Name:        "Eco Warrior",
		Description: "Awarded for reaching 1000 XP",
		Tier:        TierGold,
	}, 1000))

	r.Register(xpThresholdRule(Badge{
		Code:        "KNOWLEDGE_MASTER",
		Name:        "Knowledge Master",
		Description: "Reach 2500 XP",
		Tier:        TierSilver,
	}, 2500))

	r.Register(xpThresholdRule(Badge{
		Code:        "PLANET_GUARDIAN",
		Name:        "Planet Guardian",
		Description: "Reach 5000 XP",
		Tier:        TierDiamond,
	}, 5000))

	r.Register(Rule{
		Badge: Badge{
			Code:        "WEEK_STREAK",
			Name:        "Seven Day Streak",
			Description: "Stay active seven days in a row",
			Tier:        TierSilver,
		},
		Satisfied: func(ctx RuleContext) bool {
			return ctx.Streak >= 7
		},
	})

	return r
}
