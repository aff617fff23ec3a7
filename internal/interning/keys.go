// Package interning memoizes remote attribute-key handles so the
// record translator never round-trips to the remote session for a
// key it has already seen in a given scope (spec §4.1).
package interning

import (
	"context"

	apperrors "github.com/auxoncorp/modality-tracing-go/pkg/errors"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// keyRequester is the subset of session.Client this package needs;
// kept narrow so interning can be unit-tested without the full
// session contract.
type keyRequester interface {
	AttrKey(ctx context.Context, scope types.AttrScope, key string) (types.AttributeKey, error)
}

// Interner holds two independent caches, one per scope (spec §4.1).
// It has no eviction: process-lifetime cache bounded by the
// cardinality of distinct keys, which source code bounds.
type Interner struct {
	client keyRequester

	event    map[string]types.AttributeKey
	timeline map[string]types.AttributeKey
}

// New builds an Interner backed by client.
func New(client keyRequester) *Interner {
	return &Interner{
		client:   client,
		event:    make(map[string]types.AttributeKey),
		timeline: make(map[string]types.AttributeKey),
	}
}

// Intern returns the remote handle for (scope, key), requesting one
// from the session on first use. Event keys are normalized: any key
// not already prefixed with "event." is prefixed (spec §4.1).
func (in *Interner) Intern(ctx context.Context, scope types.AttrScope, key string) (types.AttributeKey, error) {
	if scope == types.ScopeEvent {
		key = normalizeEventKey(key)
	}

	cache := in.cacheFor(scope)
	if handle, ok := cache[key]; ok {
		return handle, nil
	}

	handle, err := in.client.AttrKey(ctx, scope, key)
	if err != nil {
		return types.AttributeKey{}, apperrors.UnexpectedFailure("interning", "intern", "failed to intern attribute key "+key, err)
	}
	cache[key] = handle
	return handle, nil
}

func (in *Interner) cacheFor(scope types.AttrScope) map[string]types.AttributeKey {
	if scope == types.ScopeTimeline {
		return in.timeline
	}
	return in.event
}

func normalizeEventKey(key string) string {
	const prefix = "event."
	if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
		return key
	}
	return prefix + key
}
