package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/steward"
	"github.com/xraph/steward/metrics"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/store/memory"
)

func TestPluginCountsLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	m, err := metrics.New(metrics.Options{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	eng, err := steward.NewEngine(steward.WithStore(memory.New()), steward.WithPlugin(m))
	if err != nil {
		t.Fatal(err)
	}
	owner := steward.Actor{UserID: "u1", Name: "one"}

	org, err := eng.Organizations().Create(ctx, owner, &organization.Organization{Name: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Organizations().SetMember(ctx, owner, org.ID, "u2", []string{organization.ActionUpdate}); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Organizations().Update(ctx, owner, org.ID, &organization.Organization{Name: "acme-corp"}); err != nil {
		t.Fatal(err)
	}
	if err := eng.Organizations().Remove(ctx, owner, org.ID); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.PermissionsCreated.WithLabelValues(organization.DomainID)); got != 1 {
		t.Fatalf("expected 1 created grant, got %f", got)
	}
	for _, event := range []string{"persisted", "renamed", "removed"} {
		if got := testutil.ToFloat64(m.Organizations.WithLabelValues(event)); got != 1 {
			t.Fatalf("expected 1 %s event, got %f", event, got)
		}
	}
	if got := testutil.ToFloat64(m.MembersRemoved); got != 2 {
		t.Fatalf("expected 2 stripped members, got %f", got)
	}
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := metrics.New(metrics.Options{Registerer: registry})
	if err != nil {
		t.Fatal(err)
	}
	second, err := metrics.New(metrics.Options{Registerer: registry})
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	if first.PermissionsCreated != second.PermissionsCreated {
		t.Fatal("expected the registered collector to be reused")
	}
}
