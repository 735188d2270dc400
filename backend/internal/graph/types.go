package graph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// NodeID is the store-assigned identifier of a node (a Neo4j element id)
type NodeID string

// Writer is the set of graph operations available both standalone and
// inside a write transaction.
type Writer interface {
	// CreateNode creates a node with the given labels and string properties
	CreateNode(ctx context.Context, labels []string, properties map[string]string) (NodeID, error)
	// CreateRelationship creates a directed relationship from -> to
	CreateRelationship(ctx context.Context, from NodeID, relType string, to NodeID) error
	// FindNodeByProperty returns a node whose label and property match exactly.
	// When several match, the first is returned and the anomaly is logged.
	FindNodeByProperty(ctx context.Context, label, property, value string) (NodeID, bool, error)
}

// Store is a graph backend
type Store interface {
	Writer
	// WriteTx runs fn in one write transaction. Either every write made
	// through the Writer commits or none does.
	WriteTx(ctx context.Context, fn func(w Writer) error) error
}

var (
	// ErrConstraintViolation is returned when a create collides with a uniqueness constraint
	ErrConstraintViolation = errors.New("graph: constraint violation")
	// ErrNodeNotFound is returned when a relationship endpoint does not exist
	ErrNodeNotFound = errors.New("graph: node not found")
	// ErrInvalidIdentifier is returned for labels, types or keys that cannot be used in a query
	ErrInvalidIdentifier = errors.New("graph: invalid identifier")
)

// Node is a snapshot of a stored node
type Node struct {
	ID         NodeID            `json:"id"`
	Labels     []string          `json:"labels"`
	Properties map[string]string `json:"properties"`
}

// HasLabel reports whether the node carries label
func (n Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Relationship is a snapshot of a stored relationship
type Relationship struct {
	From NodeID `json:"from"`
	Type string `json:"type"`
	To   NodeID `json:"to"`
}

// Labels, relationship types and property keys are spliced into Cypher text
// since the language cannot parameterize them; only plain identifiers pass.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateIdentifier(kind, value string) error {
	if !identifierPattern.MatchString(value) {
		return fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, kind, value)
	}
	return nil
}

func validateLabels(labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("%w: at least one label is required", ErrInvalidIdentifier)
	}
	for _, label := range labels {
		if err := validateIdentifier("label", label); err != nil {
			return err
		}
	}
	return nil
}
