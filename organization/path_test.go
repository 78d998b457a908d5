package organization_test

import (
	"testing"

	"github.com/xraph/steward/organization"
)

func TestQualifiedName(t *testing.T) {
	if got := organization.QualifiedName("", "root"); got != "root" {
		t.Fatalf("expected root, got %q", got)
	}
	if got := organization.QualifiedName("root", "child"); got != "root/child" {
		t.Fatalf("expected root/child, got %q", got)
	}
}

func TestRename(t *testing.T) {
	tests := []struct {
		in, name, want string
	}{
		{"root", "top", "top"},
		{"root/child", "kid", "root/kid"},
		{"a/b/c", "d", "a/b/d"},
	}
	for _, tt := range tests {
		if got := organization.Rename(tt.in, tt.name); got != tt.want {
			t.Errorf("Rename(%q, %q) = %q, want %q", tt.in, tt.name, got, tt.want)
		}
	}
}

func TestRebase(t *testing.T) {
	tests := []struct {
		name           string
		qn, old, newer string
		want           string
		ok             bool
	}{
		{"direct child", "root/child/leaf", "root/child", "root/kid", "root/kid/leaf", true},
		{"deep descendant", "root/child/a/b", "root/child", "root/kid", "root/kid/a/b", true},
		{"sibling sharing a prefix", "root/children/x", "root/child", "root/kid", "root/children/x", false},
		{"the node itself", "root/child", "root/child", "root/kid", "root/child", false},
		{"unrelated", "other/child/x", "root/child", "root/kid", "other/child/x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := organization.Rebase(tt.qn, tt.old, tt.newer)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("Rebase = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParentAndLeaf(t *testing.T) {
	if organization.Parent("root") != "" {
		t.Error("root has no parent")
	}
	if organization.Parent("a/b/c") != "a/b" {
		t.Error("unexpected parent of a/b/c")
	}
	if organization.Leaf("a/b/c") != "c" {
		t.Error("unexpected leaf of a/b/c")
	}
	if !organization.IsDescendant("a/b/c", "a") {
		t.Error("a/b/c should descend from a")
	}
	if organization.IsDescendant("ab/c", "a") {
		t.Error("ab/c should not descend from a")
	}
}
