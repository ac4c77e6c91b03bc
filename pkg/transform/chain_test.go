package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

func TestChain_EmptyIsIdentity(t *testing.T) {
	m := abcModel()
	out, err := NewChain().Apply(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, m.Equal(out))
}

func TestChain_AppliesInOrder(t *testing.T) {
	var seen []int
	record := func(n int) Transformer {
		return Func("record", "", nil, func(_ context.Context, m *core.Model, _ struct{}) (*core.Model, error) {
			seen = append(seen, n, m.Len())
			return m.ToBuilder().RemoveShape(m.ShapeIDs()[0]).Build(), nil
		})
	}

	out, err := NewChain(Step{Transformer: record(1)}, Step{Transformer: record(2)}).Apply(context.Background(), abcModel())
	require.NoError(t, err)
	// Step 2 observes the output of step 1, never the source model.
	assert.Equal(t, []int{1, 6, 2, 5}, seen)
	assert.Equal(t, 4, out.Len())
}

func TestChain_ErrorCarriesStep(t *testing.T) {
	chain := NewChain(
		Step{Transformer: ExcludeShapesByTag, Options: Options{"tags": []string{"internal"}}},
		Step{Transformer: ExcludeShapes, Options: Options{"shapes": []string{"ex#Missing"}}},
	)
	_, err := chain.Apply(context.Background(), abcModel())

	var te *TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, te.Step)
	assert.Equal(t, "excludeShapes", te.Transform)
	assert.ErrorIs(t, err, ErrMissingShape)
}

func TestChain_CancelledBeforeStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain(Step{Transformer: RemoveUnusedShapes}).Apply(ctx, abcModel())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestChain_DoesNotMutateInput(t *testing.T) {
	m := abcModel()
	before := m.ToBuilder().Build()

	_, err := NewChain(
		Step{Transformer: ExcludeTraits, Options: Options{"traits": []string{"internal", core.TraitDocumentation}}},
		Step{Transformer: RenameShapes, Options: Options{"renamed": map[string]string{"ex#A": "ex#Alpha"}}},
	).Apply(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, before.Equal(m))
}
