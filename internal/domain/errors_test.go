package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("reserving line 2: %w", InsufficientStockf("requested %d, available %d", 5, 3))

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrInsufficientReserved))
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Equal(t, "reserving line 2: requested 5, available 3", err.Error())

	assert.Equal(t, KindInternal, KindOf(errors.New("disk full")))
	assert.Equal(t, KindInternal, KindOf(nil))
	assert.Equal(t, "not_found", KindOf(NotFoundf("x")).String())
	assert.ErrorIs(t, Conflictf("dup"), ErrConflict)
}
