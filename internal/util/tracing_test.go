package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test", attribute.Int64("order_id", 1))
	defer span.End()

	assert.NotNil(t, ctx)
	assert.NotNil(t, GetTracer())
}
