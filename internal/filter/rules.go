package filter

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/router"
	"github.com/vyrodovalexey/avaroute/internal/util"
)

// DefaultRuleStatus is the status written by a rule without one.
const DefaultRuleStatus = http.StatusForbidden

// Rule rejects requests for which Expression evaluates to true.
//
// Expressions see a single variable, request, with the keys method, path,
// headers (lower-cased names) and remote_addr, plus the function
// ip_in_range(ip, cidr).
type Rule struct {
	Name       string
	Expression string
	Status     int
	Message    string
}

type compiledRule struct {
	Rule
	program cel.Program
}

// Rules evaluates request rules in order. The first rule that matches
// rejects the request.
type Rules struct {
	base

	rules []compiledRule
}

// NewRules compiles rules. An expression that does not compile or does not
// produce a bool is a configuration error.
func NewRules(rules []Rule, opts ...Option) (*Rules, error) {
	env, err := newRuleEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	r := &Rules{
		base:  newBase(opts),
		rules: make([]compiledRule, 0, len(rules)),
	}

	for i, rule := range rules {
		field := fmt.Sprintf("rules[%d]", i)
		if rule.Name != "" {
			field = "rules." + rule.Name
		}

		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, util.NewConfigErrorWithCause(field, "failed to compile expression", issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, util.NewConfigError(field,
				fmt.Sprintf("expression must evaluate to bool, got %s", out))
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, util.NewConfigErrorWithCause(field, "failed to create program", err)
		}

		if rule.Status == 0 {
			rule.Status = DefaultRuleStatus
		}
		if rule.Message == "" {
			rule.Message = http.StatusText(rule.Status)
		}

		r.rules = append(r.rules, compiledRule{Rule: rule, program: program})
	}

	return r, nil
}

// newRuleEnvironment creates the CEL environment rules are compiled in.
func newRuleEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
		cel.Function("ip_in_range",
			cel.Overload("ip_in_range_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(ipInRangeBinding),
			),
		),
	)
}

// ipInRangeBinding checks if an IP is in a CIDR range.
func ipInRangeBinding(ip, cidr ref.Val) ref.Val {
	ipStr, ok := ip.Value().(string)
	if !ok {
		return types.False
	}
	cidrStr, ok := cidr.Value().(string)
	if !ok {
		return types.False
	}

	parsedIP := net.ParseIP(ipStr)
	if parsedIP == nil {
		return types.False
	}

	_, network, err := net.ParseCIDR(cidrStr)
	if err != nil {
		return types.False
	}

	return types.Bool(network.Contains(parsedIP))
}

// Apply implements router.Filter.
func (r *Rules) Apply(uri string, ex router.Exchange) (router.Match, error) {
	if len(r.rules) == 0 {
		return router.WrongURL, nil
	}

	activation := map[string]any{
		"request": requestAttributes(uri, ex),
	}

	for i := range r.rules {
		rule := &r.rules[i]

		result, _, err := rule.program.Eval(activation)
		if err != nil {
			r.metrics.recordEvaluationError(rule.Name)
			r.logger.Warn("CEL evaluation error",
				observability.String("rule", rule.Name),
				observability.Error(err),
			)
			continue
		}

		if matched, ok := result.Value().(bool); ok && matched {
			r.logger.Debug("request rejected by rule",
				observability.String("rule", rule.Name),
				observability.String("path", uri),
			)
			return r.reject(nameRules, rule.Name, ex, rule.Status, rule.Message)
		}
	}

	return router.WrongURL, nil
}

// requestAttributes builds the request variable seen by expressions.
func requestAttributes(uri string, ex router.Exchange) map[string]any {
	headers := make(map[string]string)
	if req := ex.Request(); req != nil {
		for name, values := range req.Header {
			headers[strings.ToLower(name)] = strings.Join(values, ",")
		}
	}

	return map[string]any{
		"method":      strings.ToUpper(ex.Method()),
		"path":        uri,
		"headers":     headers,
		"remote_addr": clientIP(ex),
	}
}

// Len returns the number of rules.
func (r *Rules) Len() int {
	return len(r.rules)
}

// String describes the filter for route listings.
func (r *Rules) String() string {
	names := make([]string, 0, len(r.rules))
	for i := range r.rules {
		names = append(names, r.rules[i].Name)
	}
	return nameRules + " [" + strings.Join(names, ", ") + "]"
}
