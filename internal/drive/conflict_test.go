package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictBehavior(t *testing.T) {
	tests := []struct {
		policy CollisionPolicy
		want   string
	}{
		{FailIfExists, "fail"},
		{ReplaceExisting, "replace"},
		{GenerateUniqueName, "rename"},
	}

	for _, tt := range tests {
		got, err := ConflictBehavior(tt.policy)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		// Round trip back through the reverse lookup.
		back, err := PolicyFromBehavior(got)
		require.NoError(t, err)
		assert.Equal(t, tt.policy, back)
	}
}

func TestConflictBehavior_Unmapped(t *testing.T) {
	_, err := ConflictBehavior(CollisionPolicy(42))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPolicy)
}

func TestPolicyFromBehavior_Unknown(t *testing.T) {
	_, err := PolicyFromBehavior("overwrite")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedPolicy)
}

func TestCollisionPolicy_String(t *testing.T) {
	assert.Equal(t, "fail", FailIfExists.String())
	assert.Equal(t, "rename", GenerateUniqueName.String())
	assert.Equal(t, "CollisionPolicy(42)", CollisionPolicy(42).String())
}
