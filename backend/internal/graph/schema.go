package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"docgraph/backend/internal/constants"
)

const constraintCreationFailedCode = "Neo.DatabaseError.Schema.ConstraintCreationFailed"

// schemaStatements back the resolver's uniqueness guarantee across processes
// and keep document lookups by url cheap.
var schemaStatements = []string{
	fmt.Sprintf("CREATE CONSTRAINT author_name_unique IF NOT EXISTS FOR (a:%s) REQUIRE a.%s IS UNIQUE",
		constants.AuthorLabel, constants.NameProperty),
	fmt.Sprintf("CREATE CONSTRAINT keyword_name_unique IF NOT EXISTS FOR (k:%s) REQUIRE k.%s IS UNIQUE",
		constants.KeywordLabel, constants.NameProperty),
	fmt.Sprintf("CREATE INDEX pdf_document_url IF NOT EXISTS FOR (d:%s) ON (d.%s)",
		constants.DocumentLabel, constants.DocURLProperty),
	fmt.Sprintf("CREATE INDEX pdf_document_run IF NOT EXISTS FOR (d:%s) ON (d.%s)",
		constants.DocumentLabel, constants.DocRunIDProperty),
}

// EnsureSchema creates constraints and indexes. Every statement is attempted;
// failures are logged and returned together. A uniqueness constraint that
// cannot be created because the graph already holds duplicate names is
// skipped with a warning.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	return applySchema(schemaStatements, func(statement string) error {
		result, err := session.Run(ctx, statement, nil)
		if err == nil {
			_, err = result.Consume(ctx)
		}
		return err
	}, r.logger)
}

func applySchema(statements []string, run func(statement string) error, log *zap.Logger) error {
	var errs []error
	for _, statement := range statements {
		err := run(statement)
		switch {
		case err == nil:
		case isExistingDataConflict(err):
			log.Warn("Uniqueness constraint not created, graph holds duplicate names; run `docgraph audit`",
				zap.String("statement", statement),
				zap.Error(err),
			)
		default:
			log.Warn("Failed to apply schema statement",
				zap.String("statement", statement),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to apply %d schema statements: %w", len(errs), errors.Join(errs...))
	}
	log.Info("Graph schema ensured", zap.Int("statements", len(statements)))
	return nil
}

// isExistingDataConflict reports whether a constraint failed on data already in the graph
func isExistingDataConflict(err error) bool {
	var neoErr *neo4j.Neo4jError
	return errors.As(err, &neoErr) && neoErr.Code == constraintCreationFailedCode
}

// EnsureSchema registers the same uniqueness rules on a MemoryStore
func (m *MemoryStore) EnsureSchema(ctx context.Context) error {
	m.RequireUnique(constants.AuthorLabel, constants.NameProperty)
	m.RequireUnique(constants.KeywordLabel, constants.NameProperty)
	return nil
}
