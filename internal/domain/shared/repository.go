package shared

import "context"

// TransactionManager manages database transactions across repositories.
// The function passed to WithTransaction receives a context carrying the
// transaction; repositories resolve it transparently.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
