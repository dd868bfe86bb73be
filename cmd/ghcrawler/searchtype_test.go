package main

import (
	"strings"
	"testing"

	"github.com/nao1215/ghcrawler/internal/model"
)

func TestSearchTypeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    model.SearchType
		wantErr bool
	}{
		{name: "repositories", input: "Repositories", want: model.SearchTypeRepositories},
		{name: "issues", input: "Issues", want: model.SearchTypeIssues},
		{name: "wikis", input: "Wikis", want: model.SearchTypeWikis},
		{name: "lower case is rejected", input: "repositories", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var st model.SearchType
			v := newSearchTypeValue(&st)
			err := v.Set(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), "'Repositories', 'Issues', 'Wikis'") {
					t.Errorf("error should list the choices: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if st != tt.want || v.String() != string(tt.want) {
				t.Errorf("got %q, want %q", st, tt.want)
			}
		})
	}
}
