package export

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/khoahotran/linkgraph/internal/ingest/csvrow"
)

//go:embed aliases.yaml
var aliasesYAML []byte

// aliasTable maps section -> semantic field -> ordered column names.
type aliasTable map[string]map[string][]string

var aliases = mustLoadAliases(aliasesYAML)

func mustLoadAliases(data []byte) aliasTable {
	var t aliasTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		panic(fmt.Sprintf("export: bad alias table: %v", err))
	}
	return t
}

// pick returns the first non-empty value among the aliases of field.
func (t aliasTable) pick(row csvrow.Row, section, field string) string {
	for _, col := range t[section][field] {
		if v := strings.TrimSpace(row.Value(col)); v != "" {
			return v
		}
	}
	return ""
}
