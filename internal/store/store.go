package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"warungpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateMenu     = errors.New("menu name already exists")
	ErrIncompatibleUnit  = errors.New("incompatible unit")
)

// CounterTransactionID is the shared sequence counter backing transaction
// identifiers.
const CounterTransactionID = "transaction_counter"

// TransactionID derives a checkout identifier from the request date and a
// sequence counter value: YYMMDD followed by the raw value, no zero padding.
// The sequence keeps same-day checkouts distinct; an insert collision is
// handled by the store minting a fresh sequence and retrying.
func TransactionID(at time.Time, seq int64) string {
	return at.UTC().Format("060102") + strconv.FormatInt(seq, 10)
}

type Repository interface {
	GetIngredient(ctx context.Context, name string) (*domain.IngredientStock, error)
	ListIngredients(ctx context.Context) ([]domain.IngredientStock, error)
	CreditStock(ctx context.Context, name string, qty float64, unit string, note string) (*domain.IngredientStock, error)
	DebitStock(ctx context.Context, name string, qty float64, unit string, note string) (*domain.IngredientStock, error)
	ListStockEvents(ctx context.Context) ([]domain.InventoryHistoryEntry, error)

	CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error)
	ListMenuItems(ctx context.Context) ([]domain.MenuItem, error)
	GetMenuItemByID(ctx context.Context, id string) (*domain.MenuItem, error)
	UpdateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id string) error

	// NextSequence atomically mints the next value of the named durable
	// counter. A counter that does not exist yet is created holding 0 and
	// 0 is returned; concurrent callers never observe the same value.
	NextSequence(ctx context.Context, counterID string) (int64, error)

	// CreateCheckout resolves every order line against the menu catalog,
	// validates stock for all recipe ingredients across the whole order,
	// and only then applies the debits, mints a transaction identifier and
	// persists the transaction. On any failure the ledger is left
	// untouched.
	CreateCheckout(ctx context.Context, order []domain.OrderItem, at time.Time) (*domain.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
