package contracts

import "context"

// TxManager runs fn inside one database transaction. The transaction is
// carried through the context to the repositories.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
