package tracing

import (
	"testing"
)

func TestAttrErrorTypeNormalizesValue(t *testing.T) {
	attr := AttrErrorType("ApiCallError")
	if attr.Value.AsString() != "api_call_error" {
		t.Fatalf("expected api_call_error, got %s", attr.Value.AsString())
	}
}

func TestAttrsForGame(t *testing.T) {
	attrs := AttrsForGame("default", "doom-arena-1")
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attrs, got %d", len(attrs))
	}
	if attrs[0].Key != gameNamespaceKey || attrs[0].Value.AsString() != "default" {
		t.Fatalf("expected namespace attr first, got %v", attrs[0])
	}
	if attrs[1].Key != gameNameKey || attrs[1].Value.AsString() != "doom-arena-1" {
		t.Fatalf("expected name attr second, got %v", attrs[1])
	}
}

func TestAttrsForGameOmitsEmpty(t *testing.T) {
	attrs := AttrsForGame("", "doom-arena-1")
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attr when namespace is empty, got %d", len(attrs))
	}
}

func TestAttrReconcileRequeue(t *testing.T) {
	attr := AttrReconcileRequeue(true)
	if !attr.Value.AsBool() {
		t.Fatalf("expected true")
	}
}
