package storage

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gencode-kg/pkg/graph"
)

// DefaultBatchSize is the number of rows sent per UNWIND statement.
const DefaultBatchSize = 5000

const (
	neo4jIndexQuery = `CREATE INDEX node_id IF NOT EXISTS FOR (n:Node) ON (n.id)`

	neo4jNodeQuery = `
		UNWIND $rows AS row
		MERGE (n:Node {id: row.id})
		SET n.namespace = row.namespace,
			n.label = row.label,
			n.definition = row.definition,
			n.synonyms = row.synonyms,
			n.dbxrefs = row.dbxrefs,
			n.value = row.value,
			n.lowerbound = row.lowerbound,
			n.upperbound = row.upperbound,
			n.unit = row.unit
	`

	neo4jEdgeQuery = `
		UNWIND $rows AS row
		MERGE (s:Node {id: row.subject})
		MERGE (o:Node {id: row.object})
		MERGE (s)-[r:RELATES {predicate: row.predicate}]->(o)
	`
)

// Neo4jStorage bulk-loads a converted graph into Neo4j.
type Neo4jStorage struct {
	driver    neo4j.Driver
	uri       string
	batchSize int
	logger    *logrus.Logger
}

// NewNeo4jStorage creates a new Neo4j storage instance
func NewNeo4jStorage(uri, username, password string, batchSize int, logger *logrus.Logger) (*Neo4jStorage, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	auth := neo4j.BasicAuth(username, password, "")
	driver, err := neo4j.NewDriver(uri, auth)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Neo4j driver")
	}

	return &Neo4jStorage{
		driver:    driver,
		uri:       uri,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// Close releases the driver.
func (s *Neo4jStorage) Close() error {
	if s.driver != nil {
		return s.driver.Close()
	}
	return nil
}

// StoreGraph merges all nodes, then all edges, in batches. Each batch runs
// in its own write transaction. Loading the same graph twice leaves the
// database unchanged.
func (s *Neo4jStorage) StoreGraph(ctx context.Context, g *graph.KnowledgeGraphData) error {
	if err := s.driver.VerifyConnectivity(); err != nil {
		return errors.Wrapf(err, "connect %s", s.uri)
	}

	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if err := s.run(session, neo4jIndexQuery, nil); err != nil {
		return errors.Wrap(err, "create node index")
	}

	for i, batch := range batches(nodeParams(g.Nodes), s.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.run(session, neo4jNodeQuery, map[string]interface{}{"rows": batch}); err != nil {
			return errors.Wrapf(err, "node batch %d", i)
		}
	}
	s.logger.WithField("nodes", len(g.Nodes)).Info("Loaded nodes into Neo4j")

	for i, batch := range batches(edgeParams(g.Edges), s.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.run(session, neo4jEdgeQuery, map[string]interface{}{"rows": batch}); err != nil {
			return errors.Wrapf(err, "edge batch %d", i)
		}
	}
	s.logger.WithField("edges", len(g.Edges)).Info("Loaded edges into Neo4j")
	return nil
}

func (s *Neo4jStorage) run(session neo4j.Session, query string, params map[string]interface{}) error {
	_, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		res, err := tx.Run(query, params)
		if err != nil {
			return nil, err
		}
		return res.Consume()
	})
	return err
}

func nodeParams(nodes []graph.Node) []interface{} {
	rows := make([]interface{}, len(nodes))
	for i, n := range nodes {
		row := map[string]interface{}{
			"id":         n.ID,
			"namespace":  n.Namespace,
			"label":      n.Label,
			"definition": n.Definition,
			"synonyms":   stringList(n.Synonyms),
			"dbxrefs":    stringList(n.DBXrefs),
			"value":      n.Value,
			"lowerbound": nil,
			"upperbound": nil,
			"unit":       n.Unit,
		}
		if n.Bounds != nil {
			row["lowerbound"] = n.Bounds.Lower
			row["upperbound"] = n.Bounds.Upper
		}
		rows[i] = row
	}
	return rows
}

func edgeParams(edges []graph.Edge) []interface{} {
	rows := make([]interface{}, len(edges))
	for i, e := range edges {
		rows[i] = map[string]interface{}{
			"subject":   e.Subject,
			"predicate": e.Predicate,
			"object":    e.Object,
		}
	}
	return rows
}

// stringList converts to the list type the driver serialises.
func stringList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func batches(rows []interface{}, size int) [][]interface{} {
	var out [][]interface{}
	for lo := 0; lo < len(rows); lo += size {
		out = append(out, rows[lo:min(lo+size, len(rows))])
	}
	return out
}
