package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		sup  core.Suppression
		ev   core.ValidationEvent
		want bool
	}{
		{"exact", core.Suppression{ID: "r"}, core.ValidationEvent{RuleID: "r", ShapeID: "a#B"}, true},
		{"other rule", core.Suppression{ID: "r"}, core.ValidationEvent{RuleID: "x"}, false},
		{"rule glob", core.Suppression{ID: "naming-*"}, core.ValidationEvent{RuleID: "naming-shape"}, true},
		{"shape glob", core.Suppression{ID: "*", Shapes: []string{"legacy.*#*"}}, core.ValidationEvent{RuleID: "r", ShapeID: "legacy.v1#Old"}, true},
		{"shape miss", core.Suppression{ID: "*", Shapes: []string{"legacy#*"}}, core.ValidationEvent{RuleID: "r", ShapeID: "current#New"}, false},
		{"char class", core.Suppression{ID: "r", Shapes: []string{"a#[AB]"}}, core.ValidationEvent{RuleID: "r", ShapeID: "a#B"}, true},
		{"no shape", core.Suppression{ID: "r", Shapes: []string{"a#*"}}, core.ValidationEvent{RuleID: "r"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.sup, tt.ev))
		})
	}
}

func TestValidateSuppressions(t *testing.T) {
	assert.NoError(t, ValidateSuppressions([]core.Suppression{{ID: "a*", Shapes: []string{"x#?"}}}))
	assert.Error(t, ValidateSuppressions([]core.Suppression{{ID: ""}}))
	assert.Error(t, ValidateSuppressions([]core.Suppression{{ID: "[unclosed"}}))
}

func TestSuppressionsFromMetadata(t *testing.T) {
	m := core.NewModelBuilder().
		SetMetadata(MetadataSuppressionsKey, []any{
			map[string]any{"id": "no-*", "shapes": []any{"a#B"}, "reason": "known"},
		}).
		Build()

	got, err := SuppressionsFromMetadata(m)
	require.NoError(t, err)
	assert.Equal(t, []core.Suppression{{ID: "no-*", Shapes: []string{"a#B"}, Reason: "known"}}, got)

	none, err := SuppressionsFromMetadata(core.EmptyModel())
	require.NoError(t, err)
	assert.Nil(t, none)

	bad := core.NewModelBuilder().SetMetadata(MetadataSuppressionsKey, "nope").Build()
	_, err = SuppressionsFromMetadata(bad)
	assert.Error(t, err)
}
