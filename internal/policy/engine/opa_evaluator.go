package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.memodams.stepup.decision"

// DefaultRegoPolicy adds no requirements. A policy file replaces it and must declare the
// same package and decision rule.
const DefaultRegoPolicy = `package memodams.stepup

default require_security_question := false

default max_device_trust_age_hours := 0

decision := {
	"require_security_question": require_security_question,
	"max_device_trust_age_hours": max_device_trust_age_hours,
}
`

// OPAEvaluator evaluates step-up requirements with a compiled Rego module.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles module, or DefaultRegoPolicy when module is empty.
func NewOPAEvaluator(ctx context.Context, module string) (*OPAEvaluator, error) {
	if module == "" {
		module = DefaultRegoPolicy
	}
	q, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("stepup.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile step-up policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// NewOPAEvaluatorFromFile reads the Rego module at path. An empty path uses the default policy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read step-up policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(src))
}

// HealthCheck evaluates the compiled policy against an empty sign-in.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.EvaluateStepUp(ctx, Input{})
	return err
}

// EvaluateStepUp runs the policy. On error the caller keeps the baseline.
func (e *OPAEvaluator) EvaluateStepUp(ctx context.Context, in Input) (Requirements, error) {
	input := map[string]interface{}{
		"account": map[string]interface{}{
			"id":                    in.AccountID,
			"admin":                 in.Admin,
			"email_verified":        in.EmailVerified,
			"factor_enrolled":       in.FactorEnrolled,
			"security_question_set": in.SecurityQuestionSet,
		},
		"device": map[string]interface{}{
			"known": in.DeviceKnown,
		},
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Requirements{}, fmt.Errorf("eval step-up policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Requirements{}, fmt.Errorf("step-up policy returned no decision")
	}
	decision, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Requirements{}, fmt.Errorf("step-up policy decision is %T, want object", rs[0].Expressions[0].Value)
	}

	var out Requirements
	if v, ok := decision["require_security_question"].(bool); ok {
		out.RequireSecurityQuestion = v
	}
	if hours := toInt64(decision["max_device_trust_age_hours"]); hours > 0 {
		out.MaxDeviceTrustAge = time.Duration(hours) * time.Hour
	}
	return out, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return i
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
