package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	set := func(ids ...string) map[string]struct{} {
		s := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			s[id] = struct{}{}
		}
		return s
	}

	tests := []struct {
		name     string
		remote   []string
		existing map[string]struct{}
		want     []string
	}{
		{
			name:     "difference preserves order",
			remote:   []string{"a", "b", "c", "d"},
			existing: set("b", "d"),
			want:     []string{"a", "c"},
		},
		{
			name:     "nothing persisted yet",
			remote:   []string{"a", "b"},
			existing: set(),
			want:     []string{"a", "b"},
		},
		{
			name:     "everything already persisted",
			remote:   []string{"a", "b"},
			existing: set("a", "b"),
			want:     []string{},
		},
		{
			name:     "empty remote list",
			remote:   nil,
			existing: set("a"),
			want:     []string{},
		},
		{
			name:     "persisted ids outside the page are ignored",
			remote:   []string{"c"},
			existing: set("a", "b"),
			want:     []string{"c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.remote, tt.existing))
		})
	}
}
