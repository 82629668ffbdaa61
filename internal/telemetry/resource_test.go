package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestNewResource(t *testing.T) {
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment=staging,service.name=overridden")

	res, err := newResource(context.Background(), "contract-promoter", "1.2.3")
	require.NoError(t, err)

	attrs := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}

	assert.Equal(t, "contract-promoter", attrs[semconv.ServiceNameKey])
	assert.Equal(t, "1.2.3", attrs[semconv.ServiceVersionKey])
	assert.Equal(t, instanceID, attrs[semconv.ServiceInstanceIDKey])
	assert.Equal(t, "staging", attrs["deployment.environment"])
	assert.NotEmpty(t, attrs[semconv.ProcessRuntimeNameKey])
}
