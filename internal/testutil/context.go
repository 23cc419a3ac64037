package testutil

import (
	"context"
	"testing"
	"time"
)

// DefaultTimeout ограничивает тесты, которые ходят в контейнер.
const DefaultTimeout = 30 * time.Second

// Context возвращает context с DefaultTimeout, отменяемый при завершении теста.
func Context(tb testing.TB) context.Context {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	tb.Cleanup(cancel)
	return ctx
}
