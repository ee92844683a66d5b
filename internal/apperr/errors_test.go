package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormattedErrorMatchesCatalogue(t *testing.T) {
	err := TicketsNotAvailable.Withf(3)
	assert.Equal(t, "3 tickets not available. Try lowering tickets amount.", err.Message)
	assert.ErrorIs(t, err, TicketsNotAvailable)
	assert.NotErrorIs(t, err, CannotCancel)
	assert.Equal(t, "%d tickets not available. Try lowering tickets amount.", TicketsNotAvailable.Message)
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("verify: %w", AlreadyVerified)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))

	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, 25, e.Code)
}
