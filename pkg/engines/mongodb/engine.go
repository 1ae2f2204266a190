// Package mongodb provides the MongoDB engine for dbdeck.
//
// Collections are presented as tables. Their columns are inferred by sampling
// documents, so a column's Type is the union of the BSON types observed for
// that field ("string | null"). Only top-level fields become columns; embedded
// documents and arrays are shown as JSON text.
package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// serverSelectionTimeout bounds Connect when the server is unreachable.
const serverSelectionTimeout = 10 * time.Second

// DefaultRawLimit caps find results of RawQuery when no limit is given.
const DefaultRawLimit = 100

// Engine implements engine.Engine for MongoDB.
type Engine struct {
	Cfg     core.ConnectionConfig
	Logger  *slog.Logger
	Dialect *dialect.Dialect

	params Params
	client *mongo.Client
	db     *mongo.Database
}

// New creates a new MongoDB engine instance.
// If logger is nil, a discard logger is used.
func New(cfg core.ConnectionConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	params, err := DecodeParams(cfg.Params)
	if err != nil {
		logger.Warn("ignoring mongodb params", slog.Any("error", err))
	}
	return &Engine{Cfg: cfg, Logger: logger, Dialect: dialect.MongoDB, params: params}
}

// Type returns the registry name.
func (e *Engine) Type() string {
	return core.TypeMongoDB
}

// Params returns the decoded engine settings.
func (e *Engine) Params() Params {
	return e.params
}

// IsConnected returns true if the client is established.
func (e *Engine) IsConnected() bool {
	return e.db != nil
}

// buildURI constructs a mongodb:// URI. A configured connection string wins.
func buildURI(cfg core.ConnectionConfig, p Params) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = core.DefaultPort(core.TypeMongoDB)
	}

	u := &url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}

	q := url.Values{}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
		q.Set("authSource", p.AuthSource)
	}
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// databaseName returns the configured database, falling back to the one
// named in the connection string.
func databaseName(cfg core.ConnectionConfig, uri string) string {
	if cfg.Database != "" {
		return cfg.Database
	}
	if cs, err := connstring.Parse(uri); err == nil && cs.Database != "" {
		return cs.Database
	}
	return "test"
}

// Connect creates the client and pings the database.
func (e *Engine) Connect(ctx context.Context) bool {
	uri := buildURI(e.Cfg, e.params)
	name := databaseName(e.Cfg, uri)

	e.Logger.Debug("connecting",
		slog.String("engine", core.TypeMongoDB),
		slog.String("host", e.Cfg.Host),
		slog.String("database", name))

	client, err := mongo.Connect(ctx, options.Client().
		SetServerSelectionTimeout(serverSelectionTimeout).
		ApplyURI(uri))
	if err != nil {
		e.Logger.Error("connection failed", slog.String("engine", core.TypeMongoDB), slog.Any("error", err))
		return false
	}

	db := client.Database(name)
	if err := ping(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		e.Logger.Error("connection failed", slog.String("engine", core.TypeMongoDB), slog.Any("error", err))
		return false
	}

	e.client = client
	e.db = db
	return true
}

func ping(ctx context.Context, db *mongo.Database) error {
	return db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}

// IsOkay runs the ping command.
func (e *Engine) IsOkay(ctx context.Context) bool {
	if e.db == nil {
		return false
	}
	if err := ping(ctx, e.db); err != nil {
		e.Logger.Warn("liveness check failed", slog.String("engine", core.TypeMongoDB), slog.Any("error", err))
		return false
	}
	return true
}

// GetTables lists collections, excluding system collections.
func (e *Engine) GetTables(ctx context.Context) []string {
	if e.db == nil {
		return []string{}
	}
	names, err := e.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		e.Logger.Warn("failed to list tables", slog.String("engine", core.TypeMongoDB), slog.Any("error", err))
		return []string{}
	}

	tables := make([]string, 0, len(names))
	for _, n := range names {
		if !strings.HasPrefix(n, "system.") {
			tables = append(tables, n)
		}
	}
	slices.Sort(tables)
	return tables
}

// GetColumns infers columns from up to SchemaSampleSize documents.
func (e *Engine) GetColumns(ctx context.Context, table string) []core.Column {
	if e.db == nil {
		return []core.Column{}
	}

	opts := options.Find().SetLimit(int64(e.params.SchemaSampleSize))
	cur, err := e.db.Collection(table).Find(ctx, bson.D{}, opts)
	if err != nil {
		e.Logger.Warn("failed to sample documents", slog.String("table", table), slog.Any("error", err))
		return []core.Column{}
	}
	defer func() { _ = cur.Close(ctx) }()

	schema := newSchemaBuilder()
	for cur.Next(ctx) {
		if err := schema.Add(cur.Current); err != nil {
			e.Logger.Warn("failed to read document", slog.String("table", table), slog.Any("error", err))
			return []core.Column{}
		}
	}
	if err := cur.Err(); err != nil {
		e.Logger.Warn("error iterating documents", slog.String("table", table), slog.Any("error", err))
		return []core.Column{}
	}
	return schema.Columns(e.Dialect)
}

// GetTotalRows counts documents matching the filter.
func (e *Engine) GetTotalRows(ctx context.Context, table string, columns []core.Column, filter map[string]any) int {
	if e.db == nil {
		return 0
	}
	n, err := e.db.Collection(table).CountDocuments(ctx, BuildFilter(columns, filter))
	if err != nil {
		e.Logger.Warn("failed to count rows", slog.String("table", table), slog.Any("error", err))
		return 0
	}
	return int(n)
}

// GetRows returns one window of documents. A non-positive limit returns
// every document and ignores offset.
func (e *Engine) GetRows(ctx context.Context, table string, columns []core.Column, limit, offset int, filter map[string]any) *core.QueryResponse {
	if e.db == nil {
		return nil
	}

	query := BuildFilter(columns, filter)
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
		if offset > 0 {
			opts.SetSkip(int64(offset))
		}
	}

	cur, err := e.db.Collection(table).Find(ctx, query, opts)
	if err != nil {
		e.Logger.Warn("failed to load rows", slog.String("table", table), slog.Any("error", err))
		return nil
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		e.Logger.Warn("failed to load rows", slog.String("table", table), slog.Any("error", err))
		return nil
	}
	return &core.QueryResponse{Rows: normalizeAll(docs), SQL: describeFind(table, query, limit, offset)}
}

// describeFind renders the shell form of a find for display.
func describeFind(table string, filter bson.D, limit, offset int) string {
	text := "{}"
	if b, err := bson.MarshalExtJSON(filter, false, false); err == nil {
		text = string(b)
	}
	s := fmt.Sprintf("db.%s.find(%s)", table, text)
	if limit > 0 {
		if offset > 0 {
			s += fmt.Sprintf(".skip(%d)", offset)
		}
		s += fmt.Sprintf(".limit(%d)", limit)
	}
	return s
}

// GetTableCreationSQL describes the collection's indexes as indented JSON.
func (e *Engine) GetTableCreationSQL(ctx context.Context, table string) string {
	if e.db == nil {
		return ""
	}
	cur, err := e.db.Collection(table).Indexes().List(ctx)
	if err != nil {
		e.Logger.Warn("failed to list indexes", slog.String("table", table), slog.Any("error", err))
		return ""
	}
	var indexes []bson.M
	if err := cur.All(ctx, &indexes); err != nil {
		e.Logger.Warn("failed to list indexes", slog.String("table", table), slog.Any("error", err))
		return ""
	}

	out := make([]any, len(indexes))
	for i, idx := range indexes {
		out[i] = plain(idx)
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

// Begin starts the transaction a commit batch runs in. Without the
// "transactions" param, or against a standalone server, mutations are
// applied individually.
func (e *Engine) Begin(ctx context.Context) (engine.Tx, error) {
	if e.client == nil {
		return nil, engine.ErrNotConnected
	}
	if !e.params.Transactions {
		return noopTx{}, nil
	}

	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := e.db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return nil, fmt.Errorf("failed to inspect topology: %w", err)
	}
	if hello.SetName == "" && hello.Msg != "isdbgrid" {
		e.Logger.Warn("transactions need a replica set, applying mutations individually")
		return noopTx{}, nil
	}

	session, err := e.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sessionTx{session: session}, nil
}

// objectID converts a primary key to an ObjectId.
func objectID(pk any) (primitive.ObjectID, error) {
	if oid, ok := pk.(primitive.ObjectID); ok {
		return oid, nil
	}
	oid, err := primitive.ObjectIDFromHex(fmt.Sprint(pk))
	if err != nil {
		return primitive.NilObjectID, &core.ValidationError{Field: IDField, Value: pk, Message: "invalid ObjectId"}
	}
	return oid, nil
}

// CommitChange applies a $set update or a single delete inside tx.
func (e *Engine) CommitChange(ctx context.Context, m core.Mutation, tx engine.Tx) error {
	if e.db == nil {
		return engine.ErrNotConnected
	}

	switch mut := m.(type) {
	case core.CellUpdate:
		return e.updateCell(ctx, mut, tx)
	case *core.CellUpdate:
		return e.updateCell(ctx, *mut, tx)
	case core.RowDelete:
		return e.deleteRow(ctx, mut, tx)
	case *core.RowDelete:
		return e.deleteRow(ctx, *mut, tx)
	default:
		op := "nil mutation"
		if m != nil {
			op = string(m.Kind())
		}
		return &core.UnsupportedOperationError{Engine: core.TypeMongoDB, Operation: op}
	}
}

func (e *Engine) updateCell(ctx context.Context, m core.CellUpdate, tx engine.Tx) error {
	oid, err := objectID(m.PrimaryKey)
	if err != nil {
		return err
	}
	filter := bson.D{{Key: IDField, Value: oid}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: m.Column, Value: m.NewValue}}}}

	return withTx(ctx, tx, func(ctx context.Context) error {
		if _, err := e.db.Collection(m.Table).UpdateOne(ctx, filter, update); err != nil {
			return &core.QueryError{Query: "updateOne " + m.Table, Err: err}
		}
		e.Logger.Debug("applied mutation", slog.String("kind", string(m.Kind())), slog.String("table", m.Table))
		return nil
	})
}

func (e *Engine) deleteRow(ctx context.Context, m core.RowDelete, tx engine.Tx) error {
	oid, err := objectID(m.PrimaryKey)
	if err != nil {
		return err
	}
	filter := bson.D{{Key: IDField, Value: oid}}

	return withTx(ctx, tx, func(ctx context.Context) error {
		if _, err := e.db.Collection(m.Table).DeleteOne(ctx, filter); err != nil {
			return &core.QueryError{Query: "deleteOne " + m.Table, Err: err}
		}
		e.Logger.Debug("applied mutation", slog.String("kind", string(m.Kind())), slog.String("table", m.Table))
		return nil
	})
}

// GetVersion returns the server version from buildInfo.
func (e *Engine) GetVersion(ctx context.Context) string {
	if e.db == nil {
		return ""
	}
	var info struct {
		Version string `bson:"version"`
	}
	if err := e.db.RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info); err != nil {
		e.Logger.Warn("failed to read server version", slog.Any("error", err))
		return ""
	}
	return info.Version
}

// Disconnect closes the client. Safe to call repeatedly.
func (e *Engine) Disconnect(ctx context.Context) error {
	if e.client == nil {
		return nil
	}
	e.Logger.Debug("closing database connection")
	client := e.client
	e.client = nil
	e.db = nil
	return client.Disconnect(ctx)
}

// Ensure Engine implements engine.Engine interface
var _ engine.Engine = (*Engine)(nil)
