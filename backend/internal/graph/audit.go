package graph

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// EntityName is one Author or Keyword node with the number of relationships
// pointing at it.
type EntityName struct {
	ID      NodeID
	Name    string
	Inbound int
}

// Auditor reads back what ingestion wrote
type Auditor interface {
	CountNodes(ctx context.Context, label string) (int, error)
	EntityNames(ctx context.Context, label, property string) ([]EntityName, error)
}

// NameGroup is a set of nodes sharing a name, or sharing it once folded
type NameGroup struct {
	Key   string   `json:"key"`
	Names []string `json:"names"`
	Nodes int      `json:"nodes"`
}

// EntityReport describes the health of one entity label
type EntityReport struct {
	Label      string      `json:"label"`
	Total      int         `json:"total"`
	Orphans    int         `json:"orphans"`
	Duplicates []NameGroup `json:"duplicates,omitempty"`
	Variants   []NameGroup `json:"variants,omitempty"`
}

// Report is the result of Audit
type Report struct {
	Documents int            `json:"documents"`
	Entities  []EntityReport `json:"entities"`
}

// Audit counts documents and inspects each entity label for orphans (left
// behind by failed ingestions), exact duplicates (possible without the
// uniqueness constraints) and spelling variants.
func Audit(ctx context.Context, a Auditor, documentLabel string, entityLabels []string, nameProperty string) (*Report, error) {
	docs, err := a.CountNodes(ctx, documentLabel)
	if err != nil {
		return nil, err
	}

	report := &Report{Documents: docs}
	for _, label := range entityLabels {
		names, err := a.EntityNames(ctx, label, nameProperty)
		if err != nil {
			return nil, err
		}
		report.Entities = append(report.Entities, summarizeEntities(label, names))
	}
	return report, nil
}

func summarizeEntities(label string, names []EntityName) EntityReport {
	er := EntityReport{Label: label, Total: len(names)}

	exact := make(map[string]int)
	folded := make(map[string][]string)
	for _, n := range names {
		if n.Inbound == 0 {
			er.Orphans++
		}
		exact[n.Name]++
		key := foldName(n.Name)
		if exact[n.Name] == 1 {
			folded[key] = append(folded[key], n.Name)
		}
	}

	for name, count := range exact {
		if count > 1 {
			er.Duplicates = append(er.Duplicates, NameGroup{Key: name, Names: []string{name}, Nodes: count})
		}
	}
	for key, spellings := range folded {
		if len(spellings) < 2 {
			continue
		}
		nodes := 0
		for _, s := range spellings {
			nodes += exact[s]
		}
		sort.Strings(spellings)
		er.Variants = append(er.Variants, NameGroup{Key: key, Names: spellings, Nodes: nodes})
	}

	sort.Slice(er.Duplicates, func(i, j int) bool { return er.Duplicates[i].Key < er.Duplicates[j].Key })
	sort.Slice(er.Variants, func(i, j int) bool { return er.Variants[i].Key < er.Variants[j].Key })
	return er
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// foldName is the comparison key for spelling variants. Stored names are
// never folded; "Health" and "health" stay distinct entities.
func foldName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = whitespaceRun.ReplaceAllString(name, " ")
	return strings.TrimRight(name, ".,!?;:")
}
