package engine

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"orgchart/internal/instrument"
	"orgchart/internal/metadata"
)

// ValidateRequired reports required attributes that are missing, null or
// blank in record.
func ValidateRequired(entity *metadata.Entity, record map[string]any) []ErrorDetail {
	var errs []ErrorDetail
	for _, f := range entity.Attributes() {
		if !f.Required {
			continue
		}
		val := record[f.Name]
		if s, ok := val.(string); (ok && s == "") || val == nil {
			errs = append(errs, ErrorDetail{Attribute: f.Name, Rule: "required", Message: "can't be blank"})
		}
	}
	return errs
}

// EvaluateRules runs the entity's rules against the record. Attribute names
// in the returned details are model names.
func EvaluateRules(ctx context.Context, reg *metadata.Registry, entityName string, record map[string]any, isCreate bool) []ErrorDetail {
	_, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "rules", "rules.evaluate")
	defer span.End()
	span.SetEntity(entityName, "")

	rules := reg.GetRulesForEntity(entityName)
	if len(rules) == 0 {
		span.SetStatus("ok")
		return nil
	}

	action := "update"
	if isCreate {
		action = "create"
	}
	env := map[string]any{
		"record": record,
		"action": action,
	}

	var errs []ErrorDetail
	for _, r := range rules {
		var detail *ErrorDetail
		switch r.Type {
		case "min_length":
			detail = EvaluateMinLength(r, record)
		case "expression":
			detail = EvaluateExpressionRule(r, env)
		}
		if detail != nil {
			errs = append(errs, *detail)
		}
	}

	if len(errs) > 0 {
		span.SetStatus("error")
	} else {
		span.SetStatus("ok")
	}
	return errs
}

// EvaluateMinLength checks a string attribute's length in characters.
// Absent values pass; use Required for those.
func EvaluateMinLength(rule *metadata.Rule, record map[string]any) *ErrorDetail {
	s, ok := record[rule.Field].(string)
	if !ok || s == "" {
		return nil
	}
	threshold, ok := toFloat64(rule.Value)
	if !ok {
		return nil
	}
	if utf8.RuneCountInString(s) >= int(threshold) {
		return nil
	}
	msg := rule.Message
	if msg == "" {
		msg = fmt.Sprintf("is too short (minimum is %d characters)", int(threshold))
	}
	return &ErrorDetail{Attribute: rule.Field, Rule: "min_length", Message: msg}
}

// CompileExpression compiles an expression string into an expr-lang program.
func CompileExpression(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}
	return prog, nil
}

// EvaluateExpressionRule evaluates a compiled expression rule against an environment.
// The env should contain: record, action.
// Returns nil if the rule passes (expression is false), or an ErrorDetail if violated (expression is true).
func EvaluateExpressionRule(rule *metadata.Rule, env map[string]any) *ErrorDetail {
	prog, ok := rule.Compiled.(*vm.Program)
	if !ok || prog == nil {
		// Lazy compile
		compiled, err := CompileExpression(rule.Expression)
		if err != nil {
			return &ErrorDetail{Attribute: rule.Field, Rule: "expression", Message: fmt.Sprintf("compile error: %v", err)}
		}
		rule.Compiled = compiled
		prog = compiled
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return &ErrorDetail{Attribute: rule.Field, Rule: "expression", Message: fmt.Sprintf("rule evaluation error: %v", err)}
	}

	violated, ok := result.(bool)
	if !ok || !violated {
		return nil
	}

	msg := rule.Message
	if msg == "" {
		msg = "Expression rule violated"
	}
	return &ErrorDetail{Attribute: rule.Field, Rule: "expression", Message: msg}
}

// toFloat64 converts numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// CompileRules compiles every expression rule of the registry up front so
// that request handling never writes rule state.
func CompileRules(reg *metadata.Registry) error {
	for _, entity := range reg.AllEntities() {
		for _, r := range reg.GetRulesForEntity(entity.Name) {
			if r.Type != "expression" {
				continue
			}
			prog, err := CompileExpression(r.Expression)
			if err != nil {
				return fmt.Errorf("rule on %s.%s: %w", r.Entity, r.Field, err)
			}
			r.Compiled = prog
		}
	}
	return nil
}
