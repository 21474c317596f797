package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"goregime/domain/core"
)

func TestRuleValidate(t *testing.T) {
	assert.NoError(t, NewRule(LastStrictlyBefore, 0).Validate())
	assert.NoError(t, NewRule(FirstOnOrAfter, 2).WithAlignment(PeriodMajority).Validate())

	bad := NewRule("nearest", 0)
	assert.ErrorIs(t, bad.Validate(), core.ErrInvalidRule)
}

func TestRuleHashStampsEveryField(t *testing.T) {
	base := NewRule(LastStrictlyBefore, 1)

	assert.Equal(t, base.Hash(), NewRule(LastStrictlyBefore, 1).Hash())
	assert.NotEqual(t, base.Hash(), base.WithEndLag(2).Hash())
	assert.NotEqual(t, base.Hash(), NewRule(FirstOnOrAfter, 1).Hash())
	assert.True(t, base.WithEndLag(2).Asymmetric())
}
