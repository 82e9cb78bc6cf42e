package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"  Week 36 ", "Week 36"},
		{"Week\t36\n draft", "Week 36 draft"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanString(tt.in), "CleanString(%q)", tt.in)
	}
}

func TestParseOrdering(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []DBOrdering
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "title", want: []DBOrdering{{Field: "title", Ascending: true}}},
		{
			name: "mixed",
			in:   "-created_at, id",
			want: []DBOrdering{{Field: "created_at", Ascending: false}, {Field: "id", Ascending: true}},
		},
		{name: "blank entries", in: ",-, title,", want: []DBOrdering{{Field: "title", Ascending: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrdering(tt.in))
		})
	}
}
