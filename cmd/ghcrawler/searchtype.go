package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/pflag"

	"github.com/nao1215/ghcrawler/internal/model"
)

// searchTypeValue is a pflag.Value accepting only the supported search types.
type searchTypeValue struct {
	value *model.SearchType
}

var _ pflag.Value = (*searchTypeValue)(nil)

func newSearchTypeValue(p *model.SearchType) *searchTypeValue {
	return &searchTypeValue{value: p}
}

func (v *searchTypeValue) String() string {
	if v.value == nil {
		return ""
	}
	return string(*v.value)
}

func (v *searchTypeValue) Set(s string) error {
	t, ok := model.ParseSearchType(s)
	if !ok {
		return fmt.Errorf("invalid choice: %q (choose from %s)", s, searchTypeChoices())
	}
	*v.value = t
	return nil
}

func (v *searchTypeValue) Type() string {
	return "type"
}

// searchTypeChoices lists the accepted values in the form 'A', 'B', 'C'.
func searchTypeChoices() string {
	quoted := lo.Map(model.SearchTypes(), func(t model.SearchType, _ int) string {
		return "'" + string(t) + "'"
	})
	return strings.Join(quoted, ", ")
}
