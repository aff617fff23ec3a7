package modality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

func TestDefaultOptions_HasSaneDefaults(t *testing.T) {
	o := defaultOptions()
	assert.Equal(t, "localhost:8765", o.Endpoint)
	assert.Equal(t, 64, o.LRUCapacity)
	assert.Equal(t, 4096, o.QueueSize)
	assert.NotNil(t, o.Logger)
}

func TestWithMetadata_PrefixesUnprefixedKeys(t *testing.T) {
	o := defaultOptions()
	WithMetadata("region", types.StringValue("us-east"))(&o)

	assert.Len(t, o.Metadata, 1)
	assert.Equal(t, "timeline.region", o.Metadata[0].Key)
}

func TestWithMetadata_LeavesAlreadyPrefixedKeysAlone(t *testing.T) {
	o := defaultOptions()
	WithMetadata("timeline.region", types.StringValue("us-east"))(&o)

	assert.Equal(t, "timeline.region", o.Metadata[0].Key)
}

func TestOptions_ApplyInOrder(t *testing.T) {
	o := defaultOptions()
	for _, opt := range []Option{
		WithEndpoint("example.com:1234"),
		WithLRUCapacity(8),
		WithQueueSize(16),
		WithRootTimelineName("my-root"),
	} {
		opt(&o)
	}

	assert.Equal(t, "example.com:1234", o.Endpoint)
	assert.Equal(t, 8, o.LRUCapacity)
	assert.Equal(t, 16, o.QueueSize)
	assert.Equal(t, "my-root", o.RootTimelineName)
}
