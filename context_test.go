package gatekit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestContextIdentity tests identity storage and retrieval
func TestContextIdentity(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", GetIdentity(ctx))

	ctx = WithIdentity(ctx, "id-1")
	assert.Equal(t, "id-1", GetIdentity(ctx))
}

// TestContextMustGetIdentity tests the panicking accessor
func TestContextMustGetIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), "id-1")
	assert.Equal(t, "id-1", MustGetIdentity(ctx))

	assert.Panics(t, func() {
		MustGetIdentity(context.Background())
	})
}

// TestContextActorIDFallback tests that the actor ID falls back to identity
func TestContextActorIDFallback(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetActorID(ctx))

	// Falls back to identity when no explicit actor.
	ctx = WithIdentity(ctx, "id-1")
	assert.Equal(t, "id-1", GetActorID(ctx))

	// Explicit actor wins.
	ctx = WithActorID(ctx, "id-admin")
	assert.Equal(t, "id-admin", GetActorID(ctx))
	assert.Equal(t, "id-1", GetIdentity(ctx))
}

// TestContextAuditFields tests IP, user agent, and request ID accessors
func TestContextAuditFields(t *testing.T) {
	ctx := context.Background()

	ctx = WithIPAddress(ctx, "203.0.113.7")
	ctx = WithUserAgent(ctx, "test-agent/1.0")
	ctx = WithRequestID(ctx, "req-123")

	assert.Equal(t, "203.0.113.7", GetIPAddress(ctx))
	assert.Equal(t, "test-agent/1.0", GetUserAgent(ctx))
	assert.Equal(t, "req-123", GetRequestID(ctx))
}

// TestContextChecker tests checker storage and retrieval
func TestContextChecker(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetChecker(ctx))
	assert.Nil(t, FromContext(ctx))

	checker := NewChecker("id-1", "acct-1", []string{"operator"}, nil)
	ctx = WithChecker(ctx, checker)

	assert.Same(t, checker, GetChecker(ctx))
	assert.Same(t, checker, FromContext(ctx))
}

// TestContextAuditBundle tests the AuditContext round trip
func TestContextAuditBundle(t *testing.T) {
	ctx := context.Background()
	ctx = WithAuditContext(ctx, AuditContext{
		ActorID:   "id-admin",
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent/1.0",
		RequestID: "req-123",
	})

	ac := GetAuditContext(ctx)
	assert.Equal(t, "id-admin", ac.ActorID)
	assert.Equal(t, "203.0.113.7", ac.IPAddress)
	assert.Equal(t, "test-agent/1.0", ac.UserAgent)
	assert.Equal(t, "req-123", ac.RequestID)
}

// TestContextAuditBundleEmptyValues tests that empty fields don't overwrite
func TestContextAuditBundleEmptyValues(t *testing.T) {
	ctx := WithActorID(context.Background(), "id-admin")
	ctx = WithAuditContext(ctx, AuditContext{RequestID: "req-123"})

	ac := GetAuditContext(ctx)
	assert.Equal(t, "id-admin", ac.ActorID)
	assert.Equal(t, "req-123", ac.RequestID)
}
