package mongodb

import (
	"context"
	"net/url"
	"testing"

	"github.com/leapstack-labs/dbdeck/internal/testutil"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const ns = "test.users"

// mockEngine wires an engine to the mtest mock client.
func mockEngine(mt *mtest.T, params map[string]any) *Engine {
	e := New(core.ConnectionConfig{Type: core.TypeMongoDB, Database: "test", Params: params}, testutil.NewTestLogger(mt.T))
	e.client = mt.Client
	e.db = mt.DB
	return e
}

func TestBuildURI(t *testing.T) {
	p := Params{AuthSource: "admin"}

	uri := buildURI(core.ConnectionConfig{Host: "mongo.internal", Port: 27018, Database: "app"}, p)
	assert.Equal(t, "mongodb://mongo.internal:27018/app", uri)

	uri = buildURI(core.ConnectionConfig{
		Database: "app",
		Username: "svc",
		Password: "p@ss:word",
		Options:  map[string]string{"directConnection": "true"},
	}, p)
	u, err := url.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "localhost:27017", u.Host)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss:word", pass)
	assert.Equal(t, "admin", u.Query().Get("authSource"))
	assert.Equal(t, "true", u.Query().Get("directConnection"))

	assert.Equal(t, "mongodb+srv://x/y", buildURI(core.ConnectionConfig{ConnectionString: "mongodb+srv://x/y"}, p))
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "app", databaseName(core.ConnectionConfig{Database: "app"}, "mongodb://h/other"))
	assert.Equal(t, "other", databaseName(core.ConnectionConfig{}, "mongodb://h/other"))
	assert.Equal(t, "test", databaseName(core.ConnectionConfig{}, "mongodb://h"))
}

func TestEngine_NotConnected(t *testing.T) {
	ctx := context.Background()
	e := New(core.ConnectionConfig{}, nil)

	assert.Equal(t, "mongodb", e.Type())
	assert.False(t, e.IsOkay(ctx))
	assert.Empty(t, e.GetTables(ctx))
	assert.Empty(t, e.GetColumns(ctx, "users"))
	assert.Zero(t, e.GetTotalRows(ctx, "users", nil, nil))
	assert.Nil(t, e.GetRows(ctx, "users", nil, 10, 0, nil))
	assert.Empty(t, e.GetVersion(ctx))
	assert.Empty(t, e.GetTableCreationSQL(ctx, "users"))

	_, err := e.Begin(ctx)
	assert.ErrorIs(t, err, engine.ErrNotConnected)
	_, err = e.RawQuery(ctx, `{"collection":"users","operation":"count"}`)
	assert.ErrorIs(t, err, engine.ErrNotConnected)
	assert.NoError(t, e.Disconnect(ctx))
}

func TestEngine(t *testing.T) {
	ctx := context.Background()
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	oid := primitive.NewObjectID()

	mt.Run("is okay", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.True(mt, e.IsOkay(ctx))

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "denied"}))
		assert.False(mt, e.IsOkay(ctx))
	})

	mt.Run("get tables", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.$cmd.listCollections", mtest.FirstBatch,
			bson.D{{Key: "name", Value: "users"}, {Key: "type", Value: "collection"}},
			bson.D{{Key: "name", Value: "system.views"}, {Key: "type", Value: "collection"}},
			bson.D{{Key: "name", Value: "audit"}, {Key: "type", Value: "collection"}},
		))
		assert.Equal(mt, []string{"audit", "users"}, e.GetTables(ctx))
	})

	mt.Run("get columns", func(mt *mtest.T) {
		e := mockEngine(mt, map[string]any{"schema_sample_size": 2})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: oid}, {Key: "name", Value: "ada"}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: nil}, {Key: "age", Value: int32(36)}},
		))

		cols := e.GetColumns(ctx, "users")
		require.Len(mt, cols, 3)
		assert.Equal(mt, "_id", cols[0].Name)
		assert.Equal(mt, "string | null", cols[1].Type)
		assert.True(mt, cols[2].IsNumeric)
	})

	mt.Run("get columns failure", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 26, Name: "NamespaceNotFound", Message: "ns not found"}))
		cols := e.GetColumns(ctx, "users")
		assert.NotNil(mt, cols)
		assert.Empty(mt, cols)
	})

	mt.Run("get rows", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: oid}, {Key: "name", Value: "ada"}, {Key: "tags", Value: bson.A{"x"}}},
		))

		cols := []core.Column{{Name: "_id", Type: "objectId", IsPrimaryKey: true}, {Name: "name", Type: "string", IsPlainText: true}}
		resp := e.GetRows(ctx, "users", cols, 10, 20, map[string]any{"name": "ad"})
		require.NotNil(mt, resp)
		require.Len(mt, resp.Rows, 1)
		assert.Equal(mt, oid.Hex(), resp.Rows[0]["_id"])
		assert.Equal(mt, `["x"]`, resp.Rows[0]["tags"])
		assert.Contains(mt, resp.SQL, "db.users.find(")
		assert.Contains(mt, resp.SQL, ".skip(20).limit(10)")
	})

	mt.Run("get rows failure", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad"}))
		assert.Nil(mt, e.GetRows(ctx, "users", nil, 10, 0, nil))
	})

	mt.Run("get total rows", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int64(42)}}))
		assert.Equal(mt, 42, e.GetTotalRows(ctx, "users", nil, nil))

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad"}))
		assert.Zero(mt, e.GetTotalRows(ctx, "users", nil, nil))
	})

	mt.Run("commit change", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		tx, err := e.Begin(ctx)
		require.NoError(mt, err)
		assert.IsType(mt, noopTx{}, tx)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		err = e.CommitChange(ctx, core.CellUpdate{
			Table: "users", Column: "name", NewValue: "grace", PrimaryKeyColumn: "_id", PrimaryKey: oid.Hex(),
		}, tx)
		require.NoError(mt, err)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		err = e.CommitChange(ctx, core.RowDelete{Table: "users", PrimaryKeyColumn: "_id", PrimaryKey: oid}, tx)
		require.NoError(mt, err)
		assert.NoError(mt, tx.Commit(ctx))
	})

	mt.Run("commit batch", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		err := engine.CommitBatch(ctx, e, []core.Mutation{
			core.CellUpdate{Table: "users", Column: "age", NewValue: 37, PrimaryKeyColumn: "_id", PrimaryKey: oid.Hex()},
		}, testutil.NewTestLogger(mt.T))
		assert.NoError(mt, err)
	})

	mt.Run("commit change errors", func(mt *mtest.T) {
		e := mockEngine(mt, nil)

		err := e.CommitChange(ctx, core.RowDelete{Table: "users", PrimaryKeyColumn: "_id", PrimaryKey: "nope"}, noopTx{})
		var ve *core.ValidationError
		require.ErrorAs(mt, err, &ve)
		assert.Equal(mt, "_id", ve.Field)

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 121, Name: "DocumentValidationFailure", Message: "Document failed validation"}))
		err = e.CommitChange(ctx, core.CellUpdate{Table: "users", Column: "age", NewValue: "x", PrimaryKeyColumn: "_id", PrimaryKey: oid.Hex()}, noopTx{})
		var qe *core.QueryError
		require.ErrorAs(mt, err, &qe)
		assert.Contains(mt, err.Error(), "Document failed validation")

		err = e.CommitChange(ctx, core.RowDelete{Table: "users", PrimaryKey: oid.Hex()}, nil)
		assert.ErrorContains(mt, err, "a transaction is required")

		var unsupported *core.UnsupportedOperationError
		assert.ErrorAs(mt, e.CommitChange(ctx, nil, noopTx{}), &unsupported)
	})

	mt.Run("begin on a standalone server", func(mt *mtest.T) {
		e := mockEngine(mt, map[string]any{"transactions": true})
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "isWritablePrimary", Value: true}))

		tx, err := e.Begin(ctx)
		require.NoError(mt, err)
		assert.IsType(mt, noopTx{}, tx)
	})

	mt.Run("version", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "version", Value: "7.0.4"}))
		assert.Equal(mt, "7.0.4", e.GetVersion(ctx))
	})

	mt.Run("indexes", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "v", Value: int32(2)}, {Key: "key", Value: bson.D{{Key: "_id", Value: int32(1)}}}, {Key: "name", Value: "_id_"}},
		))

		ddl := e.GetTableCreationSQL(ctx, "users")
		assert.Contains(mt, ddl, `"name": "_id_"`)
		assert.Contains(mt, ddl, `"_id": 1`)
	})

	mt.Run("raw find", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: oid}, {Key: "name", Value: "ada"}},
		))

		out, err := e.RawQuery(ctx, `{"collection":"users","operation":"find","query":{"filter":{"name":"ada"},"limit":5}}`)
		require.NoError(mt, err)
		rows, ok := out.([]core.Row)
		require.True(mt, ok)
		require.Len(mt, rows, 1)
		assert.Equal(mt, oid.Hex(), rows[0]["_id"])
	})

	mt.Run("raw count", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int64(3)}}))

		out, err := e.RawQuery(ctx, `{"collection":"users","operation":"count"}`)
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), out)
	})

	mt.Run("raw aggregate", func(mt *mtest.T) {
		e := mockEngine(mt, nil)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "oslo"}, {Key: "total", Value: int32(4)}},
		))

		out, err := e.RawQuery(ctx, `{"collection":"users","operation":"aggregate","query":{"pipeline":[{"$group":{"_id":"$city","total":{"$sum":1}}}]}}`)
		require.NoError(mt, err)
		assert.Equal(mt, []core.Row{{"_id": "oslo", "total": int32(4)}}, out)
	})

	mt.Run("raw errors", func(mt *mtest.T) {
		e := mockEngine(mt, nil)

		_, err := e.RawQuery(ctx, `{"collection":"users","operation":"drop"}`)
		var unsupported *core.UnsupportedOperationError
		assert.ErrorAs(mt, err, &unsupported)

		_, err = e.RawQuery(ctx, `not json`)
		assert.ErrorContains(mt, err, "invalid mongodb query")

		_, err = e.RawQuery(ctx, `{"operation":"find"}`)
		var ve *core.ValidationError
		assert.ErrorAs(mt, err, &ve)
	})
}

func TestParseRawRequest(t *testing.T) {
	req, err := ParseRawRequest(`{"collection":"users","operation":"find","query":{"filter":{"_id":{"$oid":"65a1f0c2e4b0a1b2c3d4e5f6"}}}}`)
	require.NoError(t, err)
	assert.Nil(t, req.Query.Limit)
	require.Len(t, req.Query.Filter, 1)
	oid, ok := req.Query.Filter[0].Value.(primitive.ObjectID)
	require.True(t, ok)
	assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", oid.Hex())
	assert.NotNil(t, req.Query.Pipeline)
}

func TestEngine_Registry(t *testing.T) {
	factory, ok := engine.Get(core.TypeMongoDB)
	require.True(t, ok)

	_, ok = factory(core.ConnectionConfig{}, nil).(*Engine)
	assert.True(t, ok, "factory should return *Engine")
}
