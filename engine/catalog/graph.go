package catalog

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// result is the minimal interface needed from a neo4j result.
type result interface {
	Consume(ctx context.Context) (neo4j.ResultSummary, error)
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// neo4jSessionAdapter adapts neo4j.SessionWithContext to the runner interface.
type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

const (
	cypherSchema = `CREATE CONSTRAINT oem_number IF NOT EXISTS FOR (o:OEM) REQUIRE o.number IS UNIQUE`
	cypherRecord = `MERGE (v:Vehicle {make: $make, model: $model})
MERGE (o:OEM {number: $oem})
MERGE (o)-[f:FITS {detail: $detail}]->(v)
ON CREATE SET f.learned_at = datetime()`
)

// GraphMirror records learned OEMs as (:OEM)-[:FITS {detail}]->(:Vehicle)
// in Neo4j so they can be explored alongside other vehicle data.
type GraphMirror struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // for testing
}

// NewGraphMirror creates a mirror over driver.
func NewGraphMirror(driver neo4j.DriverWithContext) *GraphMirror {
	return &GraphMirror{driver: driver}
}

func (g *GraphMirror) session(ctx context.Context) runner {
	if g.newSession != nil {
		return g.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})}
}

func (g *GraphMirror) exec(ctx context.Context, cypher string, params map[string]any) error {
	sess := g.session(ctx)
	defer sess.Close(ctx)
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// EnsureSchema creates the OEM uniqueness constraint if missing.
func (g *GraphMirror) EnsureSchema(ctx context.Context) error {
	if err := g.exec(ctx, cypherSchema, nil); err != nil {
		return fmt.Errorf("neo4j schema: %w", err)
	}
	return nil
}

// RecordOEM implements Mirror.
func (g *GraphMirror) RecordOEM(ctx context.Context, mk, model, detail, oem string) error {
	err := g.exec(ctx, cypherRecord, map[string]any{
		"make":   mk,
		"model":  model,
		"detail": detail,
		"oem":    oem,
	})
	if err != nil {
		return fmt.Errorf("neo4j record %s: %w", oem, err)
	}
	return nil
}
