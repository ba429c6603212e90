package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background())
	assert.Len(t, RequestIDFromCtx(ctx), 36)

	ctx = WithRequestIDValue(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromCtx(ctx))

	ctx = WithRequestIDValue(context.Background(), "")
	assert.NotEmpty(t, RequestIDFromCtx(ctx))

	assert.Empty(t, RequestIDFromCtx(context.Background()))
}

func TestAddRequestAttributes_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		AddRequestAttributes(WithRequestIDValue(context.Background(), "req-1"),
			attribute.String("integration.provider", "hubspot"))
	})
}
