package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithLabels_Merges(t *testing.T) {
	base := context.Background()
	ctx := WithPurpose(base, "product_matching")
	ctx = WithLabels(ctx, map[string]string{"talk_script_id": "abc"})

	assert.Nil(t, Labels(base))
	assert.Equal(t, map[string]string{
		"purpose":        "product_matching",
		"talk_script_id": "abc",
	}, Labels(ctx))
}

func TestLabels_ReturnsCopy(t *testing.T) {
	ctx := WithPurpose(context.Background(), "csv_analysis")
	got := Labels(ctx)
	got["purpose"] = "mutated"
	assert.Equal(t, "csv_analysis", Labels(ctx)["purpose"])
}

func TestWithLabels_ParentUnchanged(t *testing.T) {
	parent := WithPurpose(context.Background(), "a")
	_ = WithPurpose(parent, "b")
	assert.Equal(t, "a", Labels(parent)["purpose"])
}
