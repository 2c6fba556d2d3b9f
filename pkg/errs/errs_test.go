package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errThingMissing = New(KindNotFound, "thing_not_found")

func TestSentinelMatchesCategory(t *testing.T) {
	err := fmt.Errorf("load thing: %w", errThingMissing)

	assert.ErrorIs(t, err, errThingMissing)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "load thing: thing_not_found", err.Error())
}

func TestCategoryDoesNotMatchSibling(t *testing.T) {
	other := New(KindNotFound, "other_not_found")

	assert.False(t, errors.Is(other, errThingMissing))
	assert.False(t, errors.Is(ErrNotFound, errThingMissing))
}

func TestWrappedDomainEffectKeepsCause(t *testing.T) {
	cause := errors.New("provisioning down")
	err := fmt.Errorf("%w: %w", ErrDomainEffect, cause)

	assert.ErrorIs(t, err, ErrDomainEffect)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindDomainEffect, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("x: %w", errThingMissing)))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("%w: bad amount", ErrValidation)))
	assert.Equal(t, KindStore, KindOf(errors.New("connection reset")))
}
