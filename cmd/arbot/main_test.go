package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGracefulShutdown(t *testing.T) {
	assert.True(t, gracefulShutdown(context.Canceled))
	assert.True(t, gracefulShutdown(fmt.Errorf("app: wire venues: %w", context.Canceled)))

	assert.False(t, gracefulShutdown(errors.New("leg execution failed")))
	assert.False(t, gracefulShutdown(context.DeadlineExceeded))
}
