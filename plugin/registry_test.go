package plugin

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/user"
)

// testPlugin implements Plugin + PermissionsCreated + OrganizationPersisted.
type testPlugin struct {
	name           string
	createdCalls   int
	persistedCalls int
	persistErr     error
	createdErr     error
}

func (t *testPlugin) Name() string { return t.name }

func (t *testPlugin) OnPermissionsCreated(_ context.Context, _ string, _ *permission.Permission) error {
	t.createdCalls++
	return t.createdErr
}

func (t *testPlugin) OnOrganizationPersisted(_ context.Context, _ *organization.Organization) error {
	t.persistedCalls++
	return t.persistErr
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{name: "test-plugin"}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	reg.EmitPermissionsCreated(ctx, "admin", &permission.Permission{UserID: "u1"})
	if tp.createdCalls != 1 {
		t.Fatal("OnPermissionsCreated was not called")
	}

	org := &organization.Organization{ID: id.NewOrganizationID(), Name: "acme"}
	if err := reg.EmitOrganizationPersisted(ctx, org); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp.persistedCalls != 1 {
		t.Fatal("OnOrganizationPersisted was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitPermissionsRemoved(ctx, "", &permission.Permission{})
	if err := reg.EmitBeforeUserRemoved(ctx, &user.User{ID: "u1"}); err != nil {
		t.Fatal(err)
	}
	reg.EmitShutdown(ctx)
}

func TestGatingHookStopsAtFirstError(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)

	boom := errors.New("veto")
	first := &testPlugin{name: "first", persistErr: boom}
	second := &testPlugin{name: "second"}
	reg.Register(first)
	reg.Register(second)

	err := reg.EmitOrganizationPersisted(ctx, &organization.Organization{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected veto error, got %v", err)
	}
	if !strings.Contains(err.Error(), "first") {
		t.Fatalf("expected plugin name in error, got %q", err.Error())
	}
	if second.persistedCalls != 0 {
		t.Fatal("plugins after a failing hook must not be called")
	}
}

func TestInformationalHookErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))

	failing := &testPlugin{name: "failing", createdErr: errors.New("disk full")}
	after := &testPlugin{name: "after"}
	reg.Register(failing)
	reg.Register(after)

	reg.EmitPermissionsCreated(context.Background(), "", &permission.Permission{})

	if after.createdCalls != 1 {
		t.Fatal("informational hook errors must not stop dispatch")
	}
	if !strings.Contains(buf.String(), "disk full") {
		t.Fatalf("expected hook error in log, got %q", buf.String())
	}
}
