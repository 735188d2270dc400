package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"docgraph/backend/pkg/logger"
)

// MemoryStore is an in-process Store used for dry runs and tests. It honors
// transactions and the uniqueness constraints registered with RequireUnique.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	nodes  map[NodeID]Node
	order  []NodeID
	rels   []Relationship
	unique map[string]bool
	logger *zap.Logger
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:  make(map[NodeID]Node),
		unique: make(map[string]bool),
		logger: logger.With("graph.memory"),
	}
}

// RequireUnique makes CreateNode fail with ErrConstraintViolation when a
// node with label already has the same property value.
func (m *MemoryStore) RequireUnique(label, property string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unique[uniqueKey(label, property)] = true
}

// WriteTx applies fn's writes atomically. Transactions are serialized.
func (m *MemoryStore) WriteTx(ctx context.Context, fn func(w Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, nextID: m.nextID}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, n := range tx.nodes {
		m.nodes[n.ID] = n
		m.order = append(m.order, n.ID)
	}
	m.rels = append(m.rels, tx.rels...)
	m.nextID = tx.nextID
	return nil
}

// CreateNode creates a single node in its own transaction
func (m *MemoryStore) CreateNode(ctx context.Context, labels []string, properties map[string]string) (NodeID, error) {
	var id NodeID
	err := m.WriteTx(ctx, func(w Writer) error {
		var err error
		id, err = w.CreateNode(ctx, labels, properties)
		return err
	})
	return id, err
}

// CreateRelationship creates a single relationship in its own transaction
func (m *MemoryStore) CreateRelationship(ctx context.Context, from NodeID, relType string, to NodeID) error {
	return m.WriteTx(ctx, func(w Writer) error {
		return w.CreateRelationship(ctx, from, relType, to)
	})
}

// FindNodeByProperty scans committed nodes in creation order
func (m *MemoryStore) FindNodeByProperty(ctx context.Context, label, property, value string) (NodeID, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, nextID: m.nextID}
	return tx.FindNodeByProperty(ctx, label, property, value)
}

// Nodes returns committed nodes carrying label, in creation order
func (m *MemoryStore) Nodes(label string) []Node {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Node
	for _, id := range m.order {
		if n := m.nodes[id]; n.HasLabel(label) {
			out = append(out, copyNode(n))
		}
	}
	return out
}

// Node returns one committed node
func (m *MemoryStore) Node(id NodeID) (Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return Node{}, false
	}
	return copyNode(n), true
}

// Relationships returns committed relationships of relType, or all when relType is ""
func (m *MemoryStore) Relationships(relType string) []Relationship {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Relationship
	for _, r := range m.rels {
		if relType == "" || r.Type == relType {
			out = append(out, r)
		}
	}
	return out
}

// memTx buffers writes until WriteTx commits them. The store mutex is held
// for its whole lifetime.
type memTx struct {
	store  *MemoryStore
	nextID int64
	nodes  []Node
	rels   []Relationship
}

func (t *memTx) CreateNode(ctx context.Context, labels []string, properties map[string]string) (NodeID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateLabels(labels); err != nil {
		return "", err
	}
	for _, label := range labels {
		for key, value := range properties {
			if !t.store.unique[uniqueKey(label, key)] {
				continue
			}
			if _, exists := t.lookup(label, key, value); exists {
				return "", fmt.Errorf("%w: %s.%s = %q", ErrConstraintViolation, label, key, value)
			}
		}
	}

	t.nextID++
	n := Node{
		ID:         NodeID(fmt.Sprintf("mem:%d", t.nextID)),
		Labels:     append([]string(nil), labels...),
		Properties: make(map[string]string, len(properties)),
	}
	for k, v := range properties {
		n.Properties[k] = v
	}
	t.nodes = append(t.nodes, n)
	return n.ID, nil
}

func (t *memTx) CreateRelationship(ctx context.Context, from NodeID, relType string, to NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateIdentifier("relationship type", relType); err != nil {
		return err
	}
	if !t.exists(from) || !t.exists(to) {
		return fmt.Errorf("%w: %s -[%s]-> %s", ErrNodeNotFound, from, relType, to)
	}
	t.rels = append(t.rels, Relationship{From: from, Type: relType, To: to})
	return nil
}

func (t *memTx) FindNodeByProperty(ctx context.Context, label, property, value string) (NodeID, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if err := validateIdentifier("label", label); err != nil {
		return "", false, err
	}
	if err := validateIdentifier("property", property); err != nil {
		return "", false, err
	}

	matches, _ := t.lookup(label, property, value)
	if len(matches) == 0 {
		return "", false, nil
	}
	if len(matches) > 1 {
		t.store.logger.Warn("Duplicate nodes for unique name",
			zap.String("label", label),
			zap.String("property", property),
			zap.String("value", value),
			zap.Int("matches", len(matches)),
		)
	}
	return matches[0], true, nil
}

// lookup finds committed then pending matches, in creation order
func (t *memTx) lookup(label, property, value string) ([]NodeID, bool) {
	var matches []NodeID
	for _, id := range t.store.order {
		n := t.store.nodes[id]
		if n.HasLabel(label) && n.Properties[property] == value {
			if _, set := n.Properties[property]; set {
				matches = append(matches, id)
			}
		}
	}
	for _, n := range t.nodes {
		if n.HasLabel(label) && n.Properties[property] == value {
			if _, set := n.Properties[property]; set {
				matches = append(matches, n.ID)
			}
		}
	}
	return matches, len(matches) > 0
}

func (t *memTx) exists(id NodeID) bool {
	if _, ok := t.store.nodes[id]; ok {
		return true
	}
	for _, n := range t.nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}

func uniqueKey(label, property string) string {
	return label + "\x00" + property
}

func copyNode(n Node) Node {
	out := Node{ID: n.ID, Labels: append([]string(nil), n.Labels...), Properties: make(map[string]string, len(n.Properties))}
	for k, v := range n.Properties {
		out.Properties[k] = v
	}
	sort.Strings(out.Labels)
	return out
}
