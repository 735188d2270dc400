package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// CountNodes counts nodes carrying label
func (r *Repository) CountNodes(ctx context.Context, label string) (int, error) {
	if err := validateIdentifier("label", label); err != nil {
		return 0, err
	}

	session := r.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS total", label), nil)
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return getInt64FromRecord(record, "total"), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s nodes: %w", label, err)
	}
	return int(out.(int64)), nil
}

// EntityNames lists every node of label with its name and inbound degree
func (r *Repository) EntityNames(ctx context.Context, label, property string) ([]EntityName, error) {
	if err := validateIdentifier("label", label); err != nil {
		return nil, err
	}
	if err := validateIdentifier("property", property); err != nil {
		return nil, err
	}

	session := r.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (n:%s)
		OPTIONAL MATCH (n)<-[rel]-()
		RETURN elementId(n) AS id, n.%s AS name, count(rel) AS inbound
		ORDER BY name
	`, label, property)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}

		names := make([]EntityName, 0, len(records))
		for _, record := range records {
			names = append(names, EntityName{
				ID:      NodeID(getStringFromRecord(record, "id")),
				Name:    getStringFromRecord(record, "name"),
				Inbound: int(getInt64FromRecord(record, "inbound")),
			})
		}
		return names, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s nodes: %w", label, err)
	}
	return out.([]EntityName), nil
}

// CountNodes counts committed nodes carrying label
func (m *MemoryStore) CountNodes(ctx context.Context, label string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateIdentifier("label", label); err != nil {
		return 0, err
	}
	return len(m.Nodes(label)), nil
}

// EntityNames lists committed nodes of label ordered by name
func (m *MemoryStore) EntityNames(ctx context.Context, label, property string) ([]EntityName, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateIdentifier("label", label); err != nil {
		return nil, err
	}
	if err := validateIdentifier("property", property); err != nil {
		return nil, err
	}

	inbound := make(map[NodeID]int)
	for _, rel := range m.Relationships("") {
		inbound[rel.To]++
	}

	nodes := m.Nodes(label)
	names := make([]EntityName, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, EntityName{ID: n.ID, Name: n.Properties[property], Inbound: inbound[n.ID]})
	}
	sort.SliceStable(names, func(i, j int) bool { return names[i].Name < names[j].Name })
	return names, nil
}
