package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventKindValid(t *testing.T) {
	assert.True(t, EventKindIncome.Valid())
	assert.True(t, EventKindExpense.Valid())
	assert.False(t, EventKind("transfer").Valid())
	assert.False(t, EventKind("").Valid())
}
