// Package metrics exports steward lifecycle events as Prometheus counters.
// Register the plugin with steward.WithPlugin.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
	"github.com/xraph/steward/plugin"
)

// Compile-time plugin checks.
var (
	_ plugin.Plugin                = (*Plugin)(nil)
	_ plugin.PermissionsCreated    = (*Plugin)(nil)
	_ plugin.PermissionsRemoved    = (*Plugin)(nil)
	_ plugin.OrganizationPersisted = (*Plugin)(nil)
	_ plugin.OrganizationRenamed   = (*Plugin)(nil)
	_ plugin.OrganizationRemoved   = (*Plugin)(nil)
)

// Options configures the metrics plugin.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
}

// Plugin counts permission and organization lifecycle events.
type Plugin struct {
	PermissionsCreated *prometheus.CounterVec
	PermissionsRemoved *prometheus.CounterVec
	Organizations      *prometheus.CounterVec
	MembersRemoved     prometheus.Counter
}

// New constructs the collectors and registers them with the provided
// registerer, reusing collectors that are already registered.
func New(opts Options) (*Plugin, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "steward"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	created, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: opts.Subsystem,
		Name:      "permissions_created_total",
		Help:      "Total number of new permission grants partitioned by domain.",
	}, []string{"domain"}))
	if err != nil {
		return nil, err
	}

	removed, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: opts.Subsystem,
		Name:      "permissions_removed_total",
		Help:      "Total number of removed permission grants partitioned by domain.",
	}, []string{"domain"}))
	if err != nil {
		return nil, err
	}

	orgs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: opts.Subsystem,
		Name:      "organization_events_total",
		Help:      "Total number of organization lifecycle events partitioned by event.",
	}, []string{"event"}))
	if err != nil {
		return nil, err
	}

	members, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: opts.Subsystem,
		Name:      "organization_members_removed_total",
		Help:      "Total number of memberships stripped by organization removal.",
	}))
	if err != nil {
		return nil, err
	}

	return &Plugin{
		PermissionsCreated: created,
		PermissionsRemoved: removed,
		Organizations:      orgs,
		MembersRemoved:     members,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "prometheus" }

func (p *Plugin) OnPermissionsCreated(_ context.Context, _ string, perm *permission.Permission) error {
	p.PermissionsCreated.WithLabelValues(perm.DomainID).Inc()
	return nil
}

func (p *Plugin) OnPermissionsRemoved(_ context.Context, _ string, perm *permission.Permission) error {
	p.PermissionsRemoved.WithLabelValues(perm.DomainID).Inc()
	return nil
}

func (p *Plugin) OnOrganizationPersisted(_ context.Context, _ *organization.Organization) error {
	p.Organizations.WithLabelValues("persisted").Inc()
	return nil
}

func (p *Plugin) OnOrganizationRenamed(_ context.Context, _, _, _ string, _ *organization.Organization) error {
	p.Organizations.WithLabelValues("renamed").Inc()
	return nil
}

func (p *Plugin) OnOrganizationRemoved(_ context.Context, _ string, _ *organization.Organization, memberIDs []string) error {
	p.Organizations.WithLabelValues("removed").Inc()
	p.MembersRemoved.Add(float64(len(memberIDs)))
	return nil
}
