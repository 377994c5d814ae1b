package main

import (
	"reflect"
	"testing"
)

func TestRewriteDirectBugLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"bzboard"},
			want: []string{"bzboard"},
		},
		{
			name: "direct bug id first token",
			in:   []string{"bzboard", "1234"},
			want: []string{"bzboard", "bugs", "show", "1234"},
		},
		{
			name: "hash prefixed bug id",
			in:   []string{"bzboard", "#1234"},
			want: []string{"bzboard", "bugs", "show", "#1234"},
		},
		{
			name: "direct bug id after value flag",
			in:   []string{"bzboard", "--site", "https://bugs.example.com", "1234"},
			want: []string{"bzboard", "--site", "https://bugs.example.com", "bugs", "show", "1234"},
		},
		{
			name: "direct bug id after equals flag",
			in:   []string{"bzboard", "--format=yaml", "1234"},
			want: []string{"bzboard", "--format=yaml", "bugs", "show", "1234"},
		},
		{
			name: "direct bug id after bool flags",
			in:   []string{"bzboard", "--pretty", "--debug", "1234"},
			want: []string{"bzboard", "--pretty", "--debug", "bugs", "show", "1234"},
		},
		{
			name: "direct bug id after double dash",
			in:   []string{"bzboard", "--config", "c.yaml", "--", "1234"},
			want: []string{"bzboard", "--config", "c.yaml", "--", "bugs", "show", "1234"},
		},
		{
			name: "flag value that looks like an id is skipped",
			in:   []string{"bzboard", "--format", "1234"},
			want: []string{"bzboard", "--format", "1234"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"bzboard", "bugs", "show", "1234"},
			want: []string{"bzboard", "bugs", "show", "1234"},
		},
		{
			name: "zero is not a bug id",
			in:   []string{"bzboard", "0"},
			want: []string{"bzboard", "0"},
		},
		{
			name: "unknown command not rewritten",
			in:   []string{"bzboard", "wat"},
			want: []string{"bzboard", "wat"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectBugLookupArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteDirectBugLookupArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
