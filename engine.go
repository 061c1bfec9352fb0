package grapht

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
	"github.com/rs/zerolog"
)

// Engine is the request entry point. It owns the connection pool, the
// synthesized schema, the registered resolvers and validators, the event
// handler bag, and the optional application version string. All of it is
// immutable once the engine is constructed; per-request state lives in
// the execution context the engine builds for each request.
type Engine struct {
	config     *Config
	pool       Pool
	typeDefs   map[string]*NodeTypeDef
	schema     graphql.Schema
	resolvers  map[string]ResolverFunc
	validators map[string]ValidatorFunc
	handlers   *EventHandlerBag
	version    string
	logger     zerolog.Logger
}

// Option configures an Engine under construction.
type Option func(*Engine)

// WithResolvers registers custom endpoint and dynamic property resolvers
// by name.
func WithResolvers(resolvers map[string]ResolverFunc) Option {
	return func(e *Engine) {
		for k, v := range resolvers {
			e.resolvers[k] = v
		}
	}
}

// WithValidators registers property validators by name.
func WithValidators(validators map[string]ValidatorFunc) Option {
	return func(e *Engine) {
		for k, v := range validators {
			e.validators[k] = v
		}
	}
}

// WithEventHandlers sets the engine's event handler bag.
func WithEventHandlers(bag *EventHandlerBag) Option {
	return func(e *Engine) {
		e.handlers = bag
	}
}

// WithVersion sets the application version served by the _version query.
func WithVersion(version string) Option {
	return func(e *Engine) {
		e.version = version
	}
}

// WithLogger sets the engine's logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine validates the configuration, synthesizes the schema, and
// connects to the back end.
func NewEngine(ctx context.Context, config *Config, endpoint Endpoint, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config:     config,
		typeDefs:   GenerateTypeDefs(config),
		resolvers:  map[string]ResolverFunc{},
		validators: map[string]ValidatorFunc{},
		handlers:   NewEventHandlerBag(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	schema, err := buildSchema(e.typeDefs)
	if err != nil {
		return nil, err
	}
	e.schema = schema

	pool, err := endpoint.Pool(ctx)
	if err != nil {
		return nil, err
	}
	e.pool = pool

	return e, nil
}

// Schema returns the synthesized executable schema.
func (e *Engine) Schema() graphql.Schema {
	return e.schema
}

// TypeDefs returns the synthesized type dictionary.
func (e *Engine) TypeDefs() map[string]*NodeTypeDef {
	return e.typeDefs
}

// Close releases the engine's connection pool.
func (e *Engine) Close(ctx context.Context) error {
	return e.pool.Close(ctx)
}

// Request is one GraphQL request together with its per-request metadata.
type Request struct {
	Query         string
	Variables     map[string]any
	OperationName string

	// RequestContext is an opaque value handed through to resolvers,
	// validators, and event handlers.
	RequestContext any

	// PartitionKey is threaded through every back-end operation; stores
	// that partition their data require it.
	PartitionKey any
}

// resolverContext is the per-request execution context the engine lends
// to the resolver stack: the open transaction, the request metadata, and
// the request's batch loaders. It is confined to the request's goroutine.
type resolverContext struct {
	engine       *Engine
	tx           Transaction
	partitionKey any
	requestCtx   any
	nodeLoader   *nodeLoader
	relLoader    *relLoader
	logger       zerolog.Logger
}

func (rc *resolverContext) typeDefs() map[string]*NodeTypeDef {
	return rc.engine.typeDefs
}

func (rc *resolverContext) handlers() *EventHandlerBag {
	return rc.engine.handlers
}

// Execute runs one GraphQL request inside one back-end transaction. The
// transaction commits when execution produced no errors and rolls back
// otherwise, so a failing mutation leaves nothing behind.
func (e *Engine) Execute(ctx context.Context, req Request) *graphql.Result {
	var (
		tx  Transaction
		err error
	)
	if isReadOnlyRequest(req.Query, req.OperationName) {
		tx, err = e.pool.ReadTransaction(ctx)
	} else {
		tx, err = e.pool.Transaction(ctx)
	}
	if err != nil {
		return errorResult(err)
	}
	if err := tx.Begin(ctx); err != nil {
		return errorResult(err)
	}

	rc := &resolverContext{
		engine:       e,
		tx:           tx,
		partitionKey: req.PartitionKey,
		requestCtx:   req.RequestContext,
		nodeLoader:   newNodeLoader(tx, req.PartitionKey, e.typeDefs),
		relLoader:    newRelLoader(tx, req.PartitionKey),
		logger:       e.logger,
	}
	ctx = context.WithValue(ctx, resolverContextKey, rc)

	result := graphql.Do(graphql.Params{
		Schema:         e.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})

	if len(result.Errors) > 0 {
		if err := tx.Rollback(ctx); err != nil {
			e.logger.Error().Err(err).Msg("rollback failed")
		}
		return result
	}
	if err := tx.Commit(ctx); err != nil {
		result.Errors = append(result.Errors, gqlerrors.FormatError(err))
	}
	return result
}

// isReadOnlyRequest reports whether the operation selected by the request
// is a query, in which case the engine asks the pool for a read-optimized
// transaction. Unparseable documents fall through to the write path and
// fail in the executor with a proper GraphQL error.
func isReadOnlyRequest(query, operationName string) bool {
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(query)}),
	})
	if err != nil {
		return false
	}
	readOnly := false
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName != "" && (op.Name == nil || op.Name.Value != operationName) {
			continue
		}
		if op.Operation != "query" {
			return false
		}
		readOnly = true
	}
	return readOnly
}

func errorResult(err error) *graphql.Result {
	return &graphql.Result{
		Errors: []gqlerrors.FormattedError{gqlerrors.FormatError(err)},
	}
}
