package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/units"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	receipts cache.ReceiptCache
	cacheTTL time.Duration
}

func New(repo store.Repository, receipts cache.ReceiptCache, cacheTTL time.Duration) *Service {
	if receipts == nil {
		receipts = cache.NoopReceiptCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &Service{
		repo:     repo,
		receipts: receipts,
		cacheTTL: cacheTTL,
	}
}

// AddInventory credits the ledger for one ingredient. Intake happens in base
// units only; kg and L show up on the read side through display conversion.
func (s *Service) AddInventory(ctx context.Context, req domain.InventoryAddRequest) (*domain.IngredientStock, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Quantity <= 0 {
		return nil, store.ErrInvalidInput
	}
	if !units.IsBase(req.Unit) {
		return nil, fmt.Errorf("%w: satuan harus ml atau g", store.ErrInvalidInput)
	}

	note := ""
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		note = fmt.Sprintf("Ditambah: %s %s oleh %s", formatQty(req.Quantity), req.Unit, actor.Username)
	}

	return s.repo.CreditStock(ctx, req.Name, req.Quantity, req.Unit, note)
}

func (s *Service) ListInventory(ctx context.Context) ([]domain.InventoryItemView, error) {
	records, err := s.repo.ListIngredients(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]domain.InventoryItemView, 0, len(records))
	for _, rec := range records {
		qty, unit := units.Display(rec.Quantity, rec.Unit)
		views = append(views, domain.InventoryItemView{
			Name:     rec.Name,
			Quantity: qty,
			Unit:     unit,
		})
	}
	return views, nil
}

func (s *Service) InventoryHistory(ctx context.Context) ([]domain.InventoryHistoryEntry, error) {
	return s.repo.ListStockEvents(ctx)
}

func (s *Service) AddMenu(ctx context.Context, req domain.MenuCreateRequest) (*domain.MenuItem, error) {
	item := domain.MenuItem{
		Name:   strings.TrimSpace(req.Name),
		Price:  req.Price,
		Recipe: req.Recipe,
	}
	if err := s.checkRecipeStock(ctx, item); err != nil {
		return nil, err
	}

	return s.repo.CreateMenuItem(ctx, item)
}

// AddMenuBatch creates menus one by one. A failing entry aborts the batch;
// entries created before the failure stay.
func (s *Service) AddMenuBatch(ctx context.Context, req domain.MenuBatchCreateRequest) ([]domain.MenuItem, error) {
	if len(req.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	created := make([]domain.MenuItem, 0, len(req.Items))
	for _, entry := range req.Items {
		item, err := s.AddMenu(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("menu %q: %w", entry.Name, err)
		}
		created = append(created, *item)
	}
	return created, nil
}

func (s *Service) ListMenus(ctx context.Context) ([]domain.MenuItem, error) {
	return s.repo.ListMenuItems(ctx)
}

func (s *Service) UpdateMenu(ctx context.Context, req domain.MenuUpdateRequest) (*domain.MenuItem, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, store.ErrInvalidInput
	}
	// Resolve the menu first so an unknown id reports not-found rather than
	// whatever validation error the new payload would trip.
	if _, err := s.repo.GetMenuItemByID(ctx, req.ID); err != nil {
		return nil, err
	}
	item := domain.MenuItem{
		ID:     req.ID,
		Name:   strings.TrimSpace(req.Name),
		Price:  req.Price,
		Recipe: req.Recipe,
	}
	if err := s.checkRecipeStock(ctx, item); err != nil {
		return nil, err
	}

	return s.repo.UpdateMenuItem(ctx, item)
}

func (s *Service) DeleteMenu(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return store.ErrInvalidInput
	}
	return s.repo.DeleteMenuItem(ctx, id)
}

// checkRecipeStock is an advisory gate: every recipe ingredient must already
// exist in the ledger with at least one serving's worth of stock. The binding
// check happens again at checkout time.
func (s *Service) checkRecipeStock(ctx context.Context, item domain.MenuItem) error {
	if item.Name == "" || item.Price < 0 || len(item.Recipe) == 0 {
		return store.ErrInvalidInput
	}

	for _, line := range item.Recipe {
		if strings.TrimSpace(line.Name) == "" || line.Quantity <= 0 || !units.IsKnown(line.Unit) {
			return store.ErrInvalidInput
		}

		rec, err := s.repo.GetIngredient(ctx, line.Name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("bahan %q belum terdaftar di inventory: %w", line.Name, store.ErrNotFound)
			}
			return err
		}

		needed, err := units.Convert(line.Quantity, line.Unit, rec.Unit)
		if err != nil {
			return fmt.Errorf("bahan %q: %w", line.Name, store.ErrIncompatibleUnit)
		}
		if needed > rec.Quantity {
			return fmt.Errorf("stok bahan %q tidak mencukupi: %w", line.Name, store.ErrInsufficientStock)
		}
	}
	return nil
}

func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if len(req.OrderItems) == 0 {
		return domain.CheckoutResponse{}, store.ErrInvalidInput
	}

	tx, err := s.repo.CreateCheckout(ctx, req.OrderItems, time.Now().UTC())
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	return domain.CheckoutResponse{
		Message:       "Transaksi berhasil",
		TotalAmount:   tx.TotalAmount,
		TransactionID: tx.ID,
	}, nil
}

func (s *Service) GetReceipt(ctx context.Context, transactionID string) (*domain.ReceiptView, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, store.ErrInvalidInput
	}

	cacheKey := receiptCacheKey(transactionID)
	if cached, hit, err := s.receipts.Get(ctx, cacheKey); err != nil {
		log.Printf("[service] WARN: receipt cache get %s: %v", transactionID, err)
	} else if hit {
		return cached, nil
	}

	tx, err := s.repo.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	receipt := toReceiptView(tx)
	if err := s.receipts.Set(ctx, cacheKey, receipt, s.cacheTTL); err != nil {
		log.Printf("[service] WARN: receipt cache set %s: %v", transactionID, err)
	}
	return receipt, nil
}

func (s *Service) ListReceipts(ctx context.Context) ([]domain.ReceiptView, error) {
	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	receipts := make([]domain.ReceiptView, 0, len(txs))
	for i := range txs {
		receipts = append(receipts, *toReceiptView(&txs[i]))
	}
	return receipts, nil
}

func toReceiptView(tx *domain.Transaction) *domain.ReceiptView {
	createdAt := tx.CreatedAt.UTC()
	return &domain.ReceiptView{
		TransactionID: tx.ID,
		Date:          createdAt.Format("02/01/2006"),
		Time:          createdAt.Format("15:04:05"),
		Items:         tx.Items,
		Total:         tx.TotalAmount,
	}
}

func receiptCacheKey(transactionID string) string {
	return "receipt:" + transactionID
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}
