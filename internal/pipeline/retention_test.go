package pipeline_test

import (
	"sort"
	"testing"

	"github.com/eteu-technologies/slipway/internal/pipeline"
)

func TestStale(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		keep  int
		want  []string
	}{
		{
			name:  "fewer releases than keep",
			names: []string{"20240101000000"},
			keep:  2,
			want:  nil,
		},
		{
			name:  "exactly keep releases",
			names: []string{"20240101000000", "20240102000000"},
			keep:  2,
			want:  nil,
		},
		{
			name:  "oldest beyond keep are stale",
			names: []string{"20240103000000", "20240101000000", "20240102000000", "20240104000000"},
			keep:  2,
			want:  []string{"20240101000000", "20240102000000"},
		},
		{
			name:  "keep one",
			names: []string{"20240101000000", "20240102000000", "20240103000000"},
			keep:  1,
			want:  []string{"20240101000000", "20240102000000"},
		},
		{
			name:  "empty listing",
			names: nil,
			keep:  3,
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pipeline.Stale(tt.names, tt.keep)
			if !equal(got, tt.want) {
				t.Fatalf("Stale(%v, %d) = %v, want %v", tt.names, tt.keep, got, tt.want)
			}
		})
	}
}

// Running retention twice with no new release must select nothing the
// second time, and the survivors are always the keep greatest names.
func TestStaleIdempotent(t *testing.T) {
	names := []string{
		"20240101000000", "20240102000000", "20240103000000",
		"20240104000000", "20240105000000",
	}

	for keep := 1; keep <= len(names)+1; keep++ {
		stale := pipeline.Stale(names, keep)

		survivors := survivorsOf(names, stale)
		wantSize := keep
		if len(names) < keep {
			wantSize = len(names)
		}
		if len(survivors) != wantSize {
			t.Fatalf("keep=%d: %d survivors, want %d", keep, len(survivors), wantSize)
		}

		sort.Sort(sort.Reverse(sort.StringSlice(names)))
		for _, name := range names[:wantSize] {
			if !containsString(survivors, name) {
				t.Fatalf("keep=%d: greatest name %s was pruned", keep, name)
			}
		}
		sort.Strings(names)

		if again := pipeline.Stale(survivors, keep); len(again) != 0 {
			t.Fatalf("keep=%d: second pass selected %v, want nothing", keep, again)
		}
	}
}

func survivorsOf(names, stale []string) []string {
	var survivors []string
	for _, name := range names {
		if !containsString(stale, name) {
			survivors = append(survivors, name)
		}
	}
	return survivors
}

func containsString(haystack []string, want string) bool {
	for _, s := range haystack {
		if s == want {
			return true
		}
	}
	return false
}
