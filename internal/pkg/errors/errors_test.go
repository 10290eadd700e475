package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarksSurviveWrapping(t *testing.T) {
	base := fmt.Errorf("extract: %w", context.DeadlineExceeded)
	err := Wrap(MarkTransient(base), "analyze step")

	assert.True(t, IsTransient(err))
	assert.True(t, Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "analyze step")
}

func TestPermanentWinsOverTransient(t *testing.T) {
	err := MarkPermanent(MarkTransient(New("bad dims")))
	assert.False(t, IsTransient(err))
	assert.True(t, Is(err, ErrPermanent))
}

func TestNilMarks(t *testing.T) {
	assert.Nil(t, MarkTransient(nil))
	assert.Nil(t, MarkPermanent(nil))
	assert.False(t, IsTransient(nil))
}
