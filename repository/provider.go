package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Readonly is the query surface shared by *sqlx.DB and *sqlx.Tx
type Readonly interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Transaction adds the write statements used by the repositories
type Transaction interface {
	Readonly

	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

var _ Transaction = &sqlx.DB{}
var _ Transaction = &sqlx.Tx{}

// Provider binds a database handle to a context, repositories fetch it back
// with GetTx or GetReadonly
type Provider interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error
	Readonly(ctx context.Context) context.Context
}

type providerImpl struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// ProviderOption configures NewProvider
type ProviderOption func(p *providerImpl)

// WithTxOptions sets the isolation level used by Transact
func WithTxOptions(opts sql.TxOptions) ProviderOption {
	return func(p *providerImpl) {
		p.opts = &opts
	}
}

// NewProvider ...
func NewProvider(db *sqlx.DB, options ...ProviderOption) Provider {
	p := &providerImpl{db: db}
	for _, fn := range options {
		fn(p)
	}
	return p
}

// Transact runs fn inside a transaction, nested calls join the outer transaction
func (p *providerImpl) Transact(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := p.db.BeginTxx(ctx, p.opts)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = fn(context.WithValue(ctx, handleKey, handle{tx: tx}))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Readonly ...
func (p *providerImpl) Readonly(ctx context.Context) context.Context {
	if InTransaction(ctx) {
		return ctx
	}
	return context.WithValue(ctx, handleKey, handle{db: p.db})
}

type handleKeyType struct{}

var handleKey = handleKeyType{}

type handle struct {
	tx *sqlx.Tx
	db *sqlx.DB
}

func handleOf(ctx context.Context) (handle, bool) {
	h, ok := ctx.Value(handleKey).(handle)
	return h, ok
}

// InTransaction reports whether ctx carries a transaction from Transact
func InTransaction(ctx context.Context) bool {
	h, ok := handleOf(ctx)
	return ok && h.tx != nil
}

// GetTx get Transaction from context
func GetTx(ctx context.Context) Transaction {
	h, ok := handleOf(ctx)
	if !ok || h.tx == nil {
		panic("repository: no transaction in context")
	}
	return h.tx
}

// GetReadonly returns the transaction when there is one, the readonly db otherwise
func GetReadonly(ctx context.Context) Readonly {
	h, ok := handleOf(ctx)
	if !ok {
		panic("repository: no database in context")
	}
	if h.tx != nil {
		return h.tx
	}
	return h.db
}
