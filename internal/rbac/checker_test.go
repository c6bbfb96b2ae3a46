package rbac

import (
	"context"
	"testing"
)

func TestCheckerHas(t *testing.T) {
	c := NewChecker(nil)

	if !c.Has("student", "attempt:create") {
		t.Error("student should create attempts")
	}
	if c.Has("student", "test:create") {
		t.Error("student must not create tests")
	}
	if !c.Has("teacher", "analytics:view") {
		t.Error("teacher should view analytics")
	}
	if !c.Has("admin", "anything:at-all") {
		t.Error("admin wildcard should match everything")
	}
	if c.Has("ghost", "test:view") {
		t.Error("unknown role has no permissions")
	}
}

func TestCheckerPrefixPattern(t *testing.T) {
	c := NewChecker(map[string][]string{"grader": {"attempt:*"}})
	if !c.Has("grader", "attempt:view-all") {
		t.Error("prefix pattern should match")
	}
	if c.Has("grader", "test:view") {
		t.Error("prefix pattern must not leak across resources")
	}
}

func TestCheckerAnyAll(t *testing.T) {
	c := NewChecker(nil)
	if !c.Any("student", "test:create", "attempt:create") {
		t.Error("Any should pass with one match")
	}
	if c.All("student", "attempt:create", "test:create") {
		t.Error("All should fail with one miss")
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := WithSubject(WithRole(context.Background(), "teacher"), "u-1")
	if RoleFromContext(ctx) != "teacher" || SubjectFromContext(ctx) != "u-1" {
		t.Error("round trip through context failed")
	}
	if RoleFromContext(context.Background()) != "" {
		t.Error("empty context has no role")
	}
}
