package pipeline

import (
	"fmt"
	"reflect"
	"strings"

	"go-ingest-pipeline/internal/model"
	"go-ingest-pipeline/pkg/utils"
)

// OperationFunc applies one transformation to a record. It returns the
// resulting record and whether the record survives; a false keep means
// the record was dropped by a filter and must not reach the store.
type OperationFunc func(rec model.GenericRecord, field string, params map[string]interface{}) (model.GenericRecord, bool, error)

// operations is the closed registry of transformation operations.
// Submissions referencing names outside it are rejected synchronously,
// so execution-time lookups cannot fail.
var operations = map[string]OperationFunc{
	"rename": opRename,
	"filter": opFilter,
}

// filter comparison operators supported by the condition param
var comparators = map[string]bool{
	"eq":       true,
	"neq":      true,
	"gt":       true,
	"lt":       true,
	"contains": true,
}

// KnownOperation reports whether name is in the operation registry.
func KnownOperation(name string) bool {
	_, ok := operations[name]
	return ok
}

// ValidateRule checks a rule against the registry and its
// operation-specific parameter shape. Run at submission time.
func ValidateRule(rule model.TransformationRule) error {
	if rule.Field == "" {
		return &model.ValidationError{Field: "transformation_rules.field", Reason: "must not be empty"}
	}
	if !KnownOperation(rule.Operation) {
		return &model.ValidationError{
			Field:  "transformation_rules.operation",
			Reason: fmt.Sprintf("unknown operation %q", rule.Operation),
		}
	}

	switch rule.Operation {
	case "rename":
		if name, _ := rule.Params["new_name"].(string); name == "" {
			return &model.ValidationError{
				Field:  "transformation_rules.params",
				Reason: "rename requires a non-empty new_name",
			}
		}
	case "filter":
		cond, ok := rule.Params["condition"].(map[string]interface{})
		if !ok {
			return &model.ValidationError{
				Field:  "transformation_rules.params",
				Reason: "filter requires a condition object",
			}
		}
		operator, _ := cond["operator"].(string)
		if !comparators[operator] {
			return &model.ValidationError{
				Field:  "transformation_rules.params",
				Reason: fmt.Sprintf("unknown filter operator %q", operator),
			}
		}
	}
	return nil
}

// ApplyRules runs the rule chain over one record in declaration order.
// The input record is never mutated. A false keep means a filter
// dropped the record; an error means the chain hit a fatal per-record
// failure (e.g. an incomparable filter type).
func ApplyRules(rec model.GenericRecord, rules []model.TransformationRule) (model.GenericRecord, bool, error) {
	result := rec.Clone()

	for _, rule := range rules {
		op := operations[rule.Operation] // registry validated at submission
		var (
			keep bool
			err  error
		)
		result, keep, err = op(result, rule.Field, rule.Params)
		if err != nil {
			return nil, false, &model.TransformationError{
				Operation: rule.Operation,
				Field:     rule.Field,
				Err:       err,
			}
		}
		if !keep {
			return nil, false, nil
		}
	}
	return result, true, nil
}

// opRename replaces the key named by field with params.new_name,
// leaving the value unchanged. Missing fields are a no-op, not an
// error.
func opRename(rec model.GenericRecord, field string, params map[string]interface{}) (model.GenericRecord, bool, error) {
	newName, _ := params["new_name"].(string)
	val, ok := rec[field]
	if !ok {
		return rec, true, nil
	}
	delete(rec, field)
	rec[newName] = val
	return rec, true, nil
}

// opFilter drops the record unless the value at field satisfies the
// condition. A missing field fails the predicate, keeping filtering
// conservative.
func opFilter(rec model.GenericRecord, field string, params map[string]interface{}) (model.GenericRecord, bool, error) {
	cond, _ := params["condition"].(map[string]interface{})
	operator, _ := cond["operator"].(string)
	want := cond["value"]

	got, ok := rec[field]
	if !ok {
		return nil, false, nil
	}

	match, err := compare(got, operator, want)
	if err != nil {
		return nil, false, err
	}
	if !match {
		return nil, false, nil
	}
	return rec, true, nil
}

// compare evaluates got <operator> want. Numeric comparisons coerce
// across int/float; anything incomparable is an error rather than a
// silent guess.
func compare(got interface{}, operator string, want interface{}) (bool, error) {
	switch operator {
	case "eq":
		return equal(got, want), nil
	case "neq":
		return !equal(got, want), nil
	case "gt", "lt":
		gn, gok := utils.AsNumber(got)
		wn, wok := utils.AsNumber(want)
		if !gok || !wok {
			return false, fmt.Errorf("operator %s needs numeric operands, got %T and %T", operator, got, want)
		}
		if operator == "gt" {
			return gn > wn, nil
		}
		return gn < wn, nil
	case "contains":
		gs, gok := got.(string)
		ws, wok := want.(string)
		if !gok || !wok {
			return false, fmt.Errorf("operator contains needs string operands, got %T and %T", got, want)
		}
		return strings.Contains(gs, ws), nil
	default:
		// unreachable: operators are validated at submission
		return false, fmt.Errorf("unknown filter operator %q", operator)
	}
}

func equal(a, b interface{}) bool {
	an, aok := utils.AsNumber(a)
	bn, bok := utils.AsNumber(b)
	if aok && bok {
		return an == bn
	}
	if aok != bok {
		return false
	}
	// DeepEqual instead of == so uncomparable payload values (nested
	// maps, lists) cannot panic the worker
	return reflect.DeepEqual(a, b)
}
