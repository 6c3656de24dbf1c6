// Package memtest provides an in-memory Connector implementation used by
// this module's own tests to drive traversal, query filtering, and masking
// end to end without a real backend. It is not meant for production use:
// concrete backend drivers (SQL, document store) compose the query configs
// in internal/queryconfig with a real driver instead of a map.
package memtest

import (
	"context"
	"sync"

	"github.com/ethyca-go/privacyrun/internal/connector"
	"github.com/ethyca-go/privacyrun/internal/datagraph"
	"github.com/ethyca-go/privacyrun/internal/masking"
	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/queryconfig"
)

// Connector is a Connector backed by an in-memory table per collection.
type Connector struct {
	key        string
	access     connector.AccessMode
	strategies *masking.Registry

	mu     sync.Mutex
	tables map[string][]connector.Row
}

// New builds an in-memory connector seeded with tables, keyed by collection
// name.
func New(key string, access connector.AccessMode, strategies *masking.Registry, tables map[string][]connector.Row) *Connector {
	c := &Connector{key: key, access: access, strategies: strategies, tables: map[string][]connector.Row{}}
	for name, rows := range tables {
		c.tables[name] = append([]connector.Row(nil), rows...)
	}
	return c
}

func (c *Connector) Key() string                 { return c.key }
func (c *Connector) Access() connector.AccessMode { return c.access }

// Snapshot returns a copy of a table's current rows, for test assertions
// against post-mask backend state.
func (c *Connector) Snapshot(collection string) []connector.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]connector.Row(nil), c.tables[collection]...)
}

func (c *Connector) TestConnection(ctx context.Context) (connector.TestResult, error) {
	return connector.TestSucceeded, nil
}

// Retrieve filters the in-memory table for node's collection against
// inputData, OR-ing every query field path's predicate the same way a real
// SQL backend's generated WHERE clause would.
func (c *Connector) Retrieve(ctx context.Context, node *datagraph.Node, inputData map[string][]any, policy model.Policy) ([]connector.Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	qn := queryconfig.Node{Graph: node}
	filtered := qn.TypedFilteredValues(inputData)
	if len(filtered) == 0 {
		return nil, nil
	}

	var matched []connector.Row
	for _, row := range c.tables[node.Address.Collection] {
		if rowMatches(row, filtered) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

func rowMatches(row connector.Row, filtered map[string][]any) bool {
	for path, values := range filtered {
		rv, ok := row[path]
		if !ok {
			continue
		}
		for _, v := range values {
			if rv == v {
				return true
			}
		}
	}
	return false
}

// Mask applies the policy's erasure rules to every matching row in place.
func (c *Connector) Mask(ctx context.Context, node *datagraph.Node, rows []connector.Row, policy model.Policy, request model.PrivacyRequest) (int, error) {
	if c.access != connector.AccessReadWrite {
		return 0, connector.ErrWriteAccessDenied
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	qn := queryconfig.Node{Graph: node}
	table := c.tables[node.Address.Collection]
	pkPaths := qn.PrimaryKeyFieldPaths()

	affected := 0
	for _, row := range rows {
		valueMap, err := qn.UpdateValueMap(queryconfig.Row(row), policy, request.ID, c.strategies)
		if err != nil {
			return affected, err
		}
		if len(valueMap) == 0 {
			continue
		}
		for i, stored := range table {
			if !rowMatchesPrimaryKey(stored, row, pkPaths) {
				continue
			}
			for k, v := range valueMap {
				table[i][k] = v
			}
			affected++
		}
	}
	c.tables[node.Address.Collection] = table
	return affected, nil
}

// rowMatchesPrimaryKey compares through each key field's converter rather
// than by raw Go value: target may have passed through a JSON-backed
// result store (ints round-tripping as float64) while stored never leaves
// this process, so a bare != would spuriously mismatch.
func rowMatchesPrimaryKey(stored, target connector.Row, pkPaths map[string]model.Field) bool {
	if len(pkPaths) == 0 {
		return false
	}
	for path, field := range pkPaths {
		if field.Cast(stored[path]) != field.Cast(target[path]) {
			return false
		}
	}
	return true
}
