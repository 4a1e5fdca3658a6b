package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-ingest-pipeline/internal/model"
)

func renameRule(field, newName string) model.TransformationRule {
	return model.TransformationRule{
		Field:     field,
		Operation: "rename",
		Params:    map[string]interface{}{"new_name": newName},
	}
}

func filterRule(field, operator string, value interface{}) model.TransformationRule {
	return model.TransformationRule{
		Field:     field,
		Operation: "filter",
		Params: map[string]interface{}{
			"condition": map[string]interface{}{"operator": operator, "value": value},
		},
	}
}

func TestRenameMovesValue(t *testing.T) {
	rec := model.GenericRecord{"cases": float64(10), "country": "X"}

	out, keep, err := ApplyRules(rec, []model.TransformationRule{renameRule("cases", "total_cases")})
	require.NoError(t, err)
	require.True(t, keep)

	assert.Equal(t, float64(10), out["total_cases"], "value must survive the rename unchanged")
	assert.NotContains(t, out, "cases", "old key must be gone")
	assert.Equal(t, "X", out["country"])
}

func TestRenameAbsentFieldIsNoOp(t *testing.T) {
	rec := model.GenericRecord{"country": "X"}

	out, keep, err := ApplyRules(rec, []model.TransformationRule{renameRule("cases", "total_cases")})
	require.NoError(t, err)
	require.True(t, keep)
	assert.Equal(t, model.GenericRecord{"country": "X"}, out)
}

func TestApplyRulesDoesNotMutateInput(t *testing.T) {
	rec := model.GenericRecord{"cases": float64(10)}

	_, _, err := ApplyRules(rec, []model.TransformationRule{renameRule("cases", "total_cases")})
	require.NoError(t, err)
	assert.Equal(t, float64(10), rec["cases"], "input record must stay untouched")
}

func TestFilterOperators(t *testing.T) {
	tests := []struct {
		name     string
		record   model.GenericRecord
		rule     model.TransformationRule
		wantKeep bool
	}{
		{"eq match", model.GenericRecord{"n": float64(5)}, filterRule("n", "eq", float64(5)), true},
		{"eq mismatch", model.GenericRecord{"n": float64(4)}, filterRule("n", "eq", float64(5)), false},
		{"eq coerces int and float", model.GenericRecord{"n": float64(5)}, filterRule("n", "eq", 5), true},
		{"neq match", model.GenericRecord{"n": "a"}, filterRule("n", "neq", "b"), true},
		{"gt keeps larger", model.GenericRecord{"n": float64(10)}, filterRule("n", "gt", float64(5)), true},
		{"gt drops equal", model.GenericRecord{"n": float64(5)}, filterRule("n", "gt", float64(5)), false},
		{"lt keeps smaller", model.GenericRecord{"n": float64(1)}, filterRule("n", "lt", float64(5)), true},
		{"contains match", model.GenericRecord{"s": "hello world"}, filterRule("s", "contains", "world"), true},
		{"contains mismatch", model.GenericRecord{"s": "hello"}, filterRule("s", "contains", "world"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, keep, err := ApplyRules(tt.record, []model.TransformationRule{tt.rule})
			require.NoError(t, err)
			assert.Equal(t, tt.wantKeep, keep)
		})
	}
}

func TestFilterMissingFieldDropsRecord(t *testing.T) {
	rec := model.GenericRecord{"other": float64(1)}

	_, keep, err := ApplyRules(rec, []model.TransformationRule{filterRule("n", "eq", float64(5))})
	require.NoError(t, err)
	assert.False(t, keep, "missing field fails the predicate")
}

func TestFilterIsIdempotent(t *testing.T) {
	batch := []model.GenericRecord{
		{"n": float64(5)},
		{"n": float64(3)},
		{"n": float64(5)},
	}
	rules := []model.TransformationRule{filterRule("n", "eq", float64(5))}

	var once []model.GenericRecord
	for _, rec := range batch {
		out, keep, err := ApplyRules(rec, rules)
		require.NoError(t, err)
		if keep {
			once = append(once, out)
		}
	}
	require.Len(t, once, 2)

	// re-applying the same filter to the already-filtered batch changes nothing
	var twice []model.GenericRecord
	for _, rec := range once {
		out, keep, err := ApplyRules(rec, rules)
		require.NoError(t, err)
		require.True(t, keep)
		twice = append(twice, out)
	}
	assert.Equal(t, once, twice)
}

func TestRuleChainOrderMatters(t *testing.T) {
	rec := model.GenericRecord{"a": float64(5)}
	rename := renameRule("a", "b")
	filter := filterRule("b", "eq", float64(5))

	// rename then filter: the filter sees the renamed field and keeps the record
	out, keep, err := ApplyRules(rec, []model.TransformationRule{rename, filter})
	require.NoError(t, err)
	require.True(t, keep)
	assert.Equal(t, float64(5), out["b"])

	// reversed: the filter runs before b exists, so the record is dropped
	_, keep, err = ApplyRules(rec, []model.TransformationRule{filter, rename})
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestFilterIncomparableTypesIsTransformationError(t *testing.T) {
	rec := model.GenericRecord{"n": "not-a-number"}

	_, _, err := ApplyRules(rec, []model.TransformationRule{filterRule("n", "gt", float64(5))})
	require.Error(t, err)

	var terr *model.TransformationError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "filter", terr.Operation)
	assert.Equal(t, "n", terr.Field)
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		rule    model.TransformationRule
		wantErr bool
	}{
		{"valid rename", renameRule("a", "b"), false},
		{"valid filter", filterRule("a", "eq", float64(1)), false},
		{"unknown operation", model.TransformationRule{Field: "a", Operation: "aggregate", Params: map[string]interface{}{}}, true},
		{"empty field", model.TransformationRule{Operation: "rename", Params: map[string]interface{}{"new_name": "b"}}, true},
		{"rename without new_name", model.TransformationRule{Field: "a", Operation: "rename", Params: map[string]interface{}{}}, true},
		{"filter without condition", model.TransformationRule{Field: "a", Operation: "filter", Params: map[string]interface{}{}}, true},
		{"filter with unknown operator", filterRule("a", "between", float64(1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRule(tt.rule)
			if tt.wantErr {
				var verr *model.ValidationError
				require.Error(t, err)
				assert.True(t, errors.As(err, &verr), "expected a ValidationError, got %T", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKnownOperation(t *testing.T) {
	assert.True(t, KnownOperation("rename"))
	assert.True(t, KnownOperation("filter"))
	assert.False(t, KnownOperation("aggregate"))
}
