// Package policy decides per payment whether an authorization is captured
// immediately, using rules written as govaluate expressions.
package policy

import (
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"

	"github.com/yourorg/payment-gateway/internal/adapter"
)

// PolicyRule is a capture rule. Expressions can reference amount,
// currency, gateway, reuse_source, has_shipping and has_customer.
type PolicyRule struct {
	ID          string `mapstructure:"id"`
	Expression  string `mapstructure:"expression"`
	Priority    int    `mapstructure:"priority"`
	AutoCapture bool   `mapstructure:"auto_capture"`
}

// PolicyDecision is the outcome of a policy evaluation.
type PolicyDecision struct {
	AutoCapture bool
	// RuleID is empty when no rule matched and the gateway default applied.
	RuleID string
}

type compiledRule struct {
	PolicyRule
	expr *govaluate.EvaluableExpression
}

// PaymentPolicyEnforcer evaluates capture rules in ascending priority order.
type PaymentPolicyEnforcer struct {
	rules []compiledRule
}

// NewPaymentPolicyEnforcer compiles rules. It fails on the first empty or
// invalid expression.
func NewPaymentPolicyEnforcer(rules []PolicyRule) (*PaymentPolicyEnforcer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{PolicyRule: r, expr: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority < compiled[j].Priority
	})
	return &PaymentPolicyEnforcer{rules: compiled}, nil
}

// Evaluate returns the capture decision for a payment on gateway. The
// first matching rule wins; otherwise cfg.AutoCapture stands.
func (ppe *PaymentPolicyEnforcer) Evaluate(gateway string, data adapter.PaymentData, cfg adapter.GatewayConfig) (PolicyDecision, error) {
	decision := PolicyDecision{AutoCapture: cfg.AutoCapture}
	if ppe == nil || len(ppe.rules) == 0 {
		return decision, nil
	}

	amount, _ := data.Amount.Float64()
	params := map[string]interface{}{
		"amount":       amount,
		"currency":     adapter.NormalizeCurrency(data.Currency),
		"gateway":      gateway,
		"reuse_source": data.ReuseSource,
		"has_shipping": data.Shipping != nil,
		"has_customer": data.CustomerID != "",
	}

	for _, r := range ppe.rules {
		result, err := r.expr.Evaluate(params)
		if err != nil {
			return decision, fmt.Errorf("failed to evaluate rule ID '%s': %w", r.ID, err)
		}
		matched, ok := result.(bool)
		if !ok {
			return decision, fmt.Errorf("rule ID '%s' did not evaluate to a boolean (got %T)", r.ID, result)
		}
		if matched {
			return PolicyDecision{AutoCapture: r.AutoCapture, RuleID: r.ID}, nil
		}
	}
	return decision, nil
}

// Rules returns the number of compiled rules.
func (ppe *PaymentPolicyEnforcer) Rules() int {
	if ppe == nil {
		return 0
	}
	return len(ppe.rules)
}
