package page_test

import (
	"testing"

	"github.com/xraph/steward/page"
)

func TestOf(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name     string
		max      int
		skip     int64
		want     []int
		wantNext bool
	}{
		{"first page", 2, 0, []int{1, 2}, true},
		{"middle page", 2, 2, []int{3, 4}, true},
		{"last page", 2, 4, []int{5}, false},
		{"past the end", 2, 10, []int{}, false},
		{"unbounded", 0, 1, []int{2, 3, 4, 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := page.Of(all, tt.max, tt.skip)
			if p.TotalCount != 5 {
				t.Fatalf("expected total 5, got %d", p.TotalCount)
			}
			if len(p.Items) != len(tt.want) {
				t.Fatalf("expected %d items, got %d", len(tt.want), len(p.Items))
			}
			for i := range tt.want {
				if p.Items[i] != tt.want[i] {
					t.Errorf("item %d: expected %d, got %d", i, tt.want[i], p.Items[i])
				}
			}
			if p.HasNext() != tt.wantNext {
				t.Errorf("expected HasNext=%v", tt.wantNext)
			}
		})
	}
}

func TestOfCopies(t *testing.T) {
	all := []string{"a", "b"}
	p := page.Of(all, 0, 0)
	p.Items[0] = "z"
	if all[0] != "a" {
		t.Fatal("page shares backing array with the source slice")
	}
}

func TestNextSkip(t *testing.T) {
	p := page.New([]string{"x", "y"}, 2, 4, 10)
	if p.NextSkip() != 6 {
		t.Fatalf("expected next skip 6, got %d", p.NextSkip())
	}
	if p.IsEmpty() || p.Size() != 2 {
		t.Fatal("unexpected page size")
	}
}
