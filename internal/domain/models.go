package domain

import "time"

const (
	UnitGram       = "g"
	UnitKilogram   = "kg"
	UnitMilliliter = "ml"
	UnitLiter      = "L"
)

const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// StockEvent is one append-only ledger entry for an ingredient. Entries are
// never reordered or deleted once recorded.
type StockEvent struct {
	Delta     float64   `json:"delta"`
	Unit      string    `json:"unit"`
	Note      string    `json:"note"`
	Direction string    `json:"direction"`
	CreatedAt time.Time `json:"created_at"`
}

type IngredientStock struct {
	Name     string       `json:"name"`
	Quantity float64      `json:"quantity"`
	Unit     string       `json:"unit"`
	History  []StockEvent `json:"history,omitempty"`
}

type InventoryAddRequest struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// InventoryItemView carries display-normalized quantities (1000 g reads as
// 1 kg); the stored record keeps its original unit.
type InventoryItemView struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

type InventoryHistoryEntry struct {
	Ingredient string    `json:"ingredient"`
	Delta      float64   `json:"delta"`
	Unit       string    `json:"unit"`
	Note       string    `json:"note"`
	Direction  string    `json:"direction"`
	CreatedAt  time.Time `json:"created_at"`
}

type RecipeLine struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

type MenuItem struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Price  int64        `json:"price"`
	Recipe []RecipeLine `json:"ingredients"`
}

type MenuCreateRequest struct {
	Name   string       `json:"name"`
	Price  int64        `json:"price"`
	Recipe []RecipeLine `json:"ingredients"`
}

type MenuBatchCreateRequest struct {
	Items []MenuCreateRequest `json:"items"`
}

type MenuUpdateRequest struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Price  int64        `json:"price"`
	Recipe []RecipeLine `json:"ingredients"`
}

type OrderItem struct {
	MenuID   string `json:"id"`
	Quantity int    `json:"quantity"`
}

type CheckoutRequest struct {
	OrderItems []OrderItem `json:"orderItems"`
}

type CheckoutResponse struct {
	Message       string `json:"message"`
	TotalAmount   int64  `json:"totalHarga"`
	TransactionID string `json:"transactionId"`
}

type TransactionLine struct {
	MenuName  string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Transaction is immutable once persisted.
type Transaction struct {
	ID          string            `json:"id"`
	TotalAmount int64             `json:"total"`
	CreatedAt   time.Time         `json:"created_at"`
	Items       []TransactionLine `json:"items"`
}

type ReceiptView struct {
	TransactionID string            `json:"transactionId"`
	Date          string            `json:"date"`
	Time          string            `json:"time"`
	Items         []TransactionLine `json:"items"`
	Total         int64             `json:"total"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignupResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
