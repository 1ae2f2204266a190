package mongodb

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Raw query operations.
const (
	OpFind      = "find"
	OpAggregate = "aggregate"
	OpCount     = "count"
)

// RawRequest is the JSON document RawQuery accepts, e.g.
//
//	{"collection": "users", "operation": "find",
//	 "query": {"filter": {"age": {"$gt": 30}}, "limit": 5}}
//
// It is decoded as relaxed Extended JSON, so {"$oid": "..."} and
// {"$date": "..."} values are understood.
type RawRequest struct {
	Collection string  `bson:"collection"`
	Operation  string  `bson:"operation"`
	Query      RawArgs `bson:"query"`
}

// RawArgs holds the operation arguments of a RawRequest.
type RawArgs struct {
	Filter   bson.D `bson:"filter"`
	Limit    *int64 `bson:"limit"`
	Pipeline bson.A `bson:"pipeline"`
}

// ParseRawRequest decodes and validates a raw query document.
func ParseRawRequest(code string) (RawRequest, error) {
	var req RawRequest
	if err := bson.UnmarshalExtJSON([]byte(code), false, &req); err != nil {
		return req, fmt.Errorf("invalid mongodb query: %w", err)
	}
	if req.Collection == "" {
		return req, &core.ValidationError{Field: "collection", Value: code, Message: "collection is required"}
	}
	if req.Query.Filter == nil {
		req.Query.Filter = bson.D{}
	}
	if req.Query.Pipeline == nil {
		req.Query.Pipeline = bson.A{}
	}
	return req, nil
}

// RawQuery runs a find, aggregate or count described by code. Find and
// aggregate return rows; count returns the number of matching documents.
func (e *Engine) RawQuery(ctx context.Context, code string) (any, error) {
	if e.db == nil {
		return nil, engine.ErrNotConnected
	}

	req, err := ParseRawRequest(code)
	if err != nil {
		return nil, err
	}
	coll := e.db.Collection(req.Collection)

	switch req.Operation {
	case OpFind:
		limit := int64(DefaultRawLimit)
		if req.Query.Limit != nil {
			limit = *req.Query.Limit
		}
		cur, err := coll.Find(ctx, req.Query.Filter, options.Find().SetLimit(limit))
		if err != nil {
			return nil, &core.QueryError{Query: code, Err: err}
		}
		var docs []bson.M
		if err := cur.All(ctx, &docs); err != nil {
			return nil, &core.QueryError{Query: code, Err: err}
		}
		return normalizeAll(docs), nil

	case OpAggregate:
		cur, err := coll.Aggregate(ctx, req.Query.Pipeline)
		if err != nil {
			return nil, &core.QueryError{Query: code, Err: err}
		}
		var docs []bson.M
		if err := cur.All(ctx, &docs); err != nil {
			return nil, &core.QueryError{Query: code, Err: err}
		}
		return normalizeAll(docs), nil

	case OpCount:
		n, err := coll.CountDocuments(ctx, req.Query.Filter)
		if err != nil {
			return nil, &core.QueryError{Query: code, Err: err}
		}
		return n, nil

	default:
		return nil, &core.UnsupportedOperationError{Engine: core.TypeMongoDB, Operation: req.Operation}
	}
}
