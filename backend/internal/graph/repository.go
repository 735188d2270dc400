package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"docgraph/backend/pkg/logger"
)

const constraintViolationCode = "Neo.ClientError.Schema.ConstraintValidationFailed"

// Repository is the Neo4j implementation of Store
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewRepository creates a new graph repository. An empty database selects
// the server default.
func NewRepository(driver neo4j.DriverWithContext, database string) *Repository {
	return &Repository{
		driver:   driver,
		database: database,
		logger:   logger.With("graph"),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Repository) newSession(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: r.database,
	})
}

// WriteTx runs fn inside a managed write transaction. The driver may retry fn
// on transient cluster errors, so fn must not have side effects outside w.
func (r *Repository) WriteTx(ctx context.Context, fn func(w Writer) error) error {
	session := r.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&txWriter{tx: tx, logger: r.logger})
	})
	return translateError(err)
}

// CreateNode creates a single node in its own transaction
func (r *Repository) CreateNode(ctx context.Context, labels []string, properties map[string]string) (NodeID, error) {
	var id NodeID
	err := r.WriteTx(ctx, func(w Writer) error {
		var err error
		id, err = w.CreateNode(ctx, labels, properties)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateRelationship creates a single relationship in its own transaction
func (r *Repository) CreateRelationship(ctx context.Context, from NodeID, relType string, to NodeID) error {
	return r.WriteTx(ctx, func(w Writer) error {
		return w.CreateRelationship(ctx, from, relType, to)
	})
}

// FindNodeByProperty looks a node up in a read transaction
func (r *Repository) FindNodeByProperty(ctx context.Context, label, property, value string) (NodeID, bool, error) {
	session := r.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	type found struct {
		id NodeID
		ok bool
	}
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		id, ok, err := (&txWriter{tx: tx, logger: r.logger}).FindNodeByProperty(ctx, label, property, value)
		return found{id: id, ok: ok}, err
	})
	if err != nil {
		return "", false, translateError(err)
	}
	res := out.(found)
	return res.id, res.ok, nil
}

// txWriter runs Writer operations against one managed transaction
type txWriter struct {
	tx     neo4j.ManagedTransaction
	logger *zap.Logger
}

func (w *txWriter) CreateNode(ctx context.Context, labels []string, properties map[string]string) (NodeID, error) {
	if err := validateLabels(labels); err != nil {
		return "", err
	}

	query := fmt.Sprintf(`
		CREATE (n:%s)
		SET n = $props
		RETURN elementId(n) AS id
	`, strings.Join(labels, ":"))

	result, err := w.tx.Run(ctx, query, map[string]interface{}{
		"props": toParams(properties),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create node: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to verify node creation: %w", err)
	}

	id := getStringFromRecord(record, "id")
	if id == "" {
		return "", fmt.Errorf("failed to create node: no id returned")
	}
	return NodeID(id), nil
}

func (w *txWriter) CreateRelationship(ctx context.Context, from NodeID, relType string, to NodeID) error {
	if err := validateIdentifier("relationship type", relType); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		MATCH (a) WHERE elementId(a) = $from
		MATCH (b) WHERE elementId(b) = $to
		CREATE (a)-[r:%s]->(b)
		RETURN count(r) AS created
	`, relType)

	result, err := w.tx.Run(ctx, query, map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
	if err != nil {
		return fmt.Errorf("failed to create relationship: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify relationship creation: %w", err)
	}
	if getInt64FromRecord(record, "created") == 0 {
		return fmt.Errorf("%w: %s -[%s]-> %s", ErrNodeNotFound, from, relType, to)
	}
	return nil
}

func (w *txWriter) FindNodeByProperty(ctx context.Context, label, property, value string) (NodeID, bool, error) {
	if err := validateIdentifier("label", label); err != nil {
		return "", false, err
	}
	if err := validateIdentifier("property", property); err != nil {
		return "", false, err
	}

	// LIMIT 2 is enough to notice pre-existing duplicates
	query := fmt.Sprintf(`
		MATCH (n:%s)
		WHERE n.%s = $value
		RETURN elementId(n) AS id
		LIMIT 2
	`, label, property)

	result, err := w.tx.Run(ctx, query, map[string]interface{}{
		"value": value,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to find node: %w", err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch records: %w", err)
	}
	if len(records) == 0 {
		return "", false, nil
	}
	if len(records) > 1 {
		w.logger.Warn("Duplicate nodes for unique name",
			zap.String("label", label),
			zap.String("property", property),
			zap.String("value", value),
		)
	}
	return NodeID(getStringFromRecord(records[0], "id")), true, nil
}

// translateError maps driver errors onto the package's sentinel errors
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == constraintViolationCode {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, neoErr.Msg)
	}
	return err
}
