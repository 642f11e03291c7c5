package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/units"
	"warungpos/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	ingredients      map[string]*domain.IngredientStock
	menusByID        map[string]domain.MenuItem
	transactionsByID map[string]*domain.Transaction
	counters         map[string]int64
	usersByUsername  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store. Tests build on this; the server entrypoint
// uses NewSeeded for dev/demo data.
func New() *Store {
	return &Store{
		ingredients:      make(map[string]*domain.IngredientStock),
		menusByID:        make(map[string]domain.MenuItem),
		transactionsByID: make(map[string]*domain.Transaction),
		counters:         make(map[string]int64),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

func NewSeeded() *Store {
	seededAt := time.Now().UTC()
	ingredients := map[string]*domain.IngredientStock{}
	for _, seed := range []struct {
		name string
		qty  float64
		unit string
	}{
		{"Susu", 500, domain.UnitMilliliter},
		{"Kopi Bubuk", 1200, domain.UnitGram},
		{"Gula Aren", 800, domain.UnitGram},
		{"Coklat Bubuk", 400, domain.UnitGram},
		{"Air Mineral", 5000, domain.UnitMilliliter},
	} {
		ingredients[seed.name] = &domain.IngredientStock{
			Name:     seed.name,
			Quantity: seed.qty,
			Unit:     seed.unit,
			History: []domain.StockEvent{{
				Delta:     seed.qty,
				Unit:      seed.unit,
				Note:      fmt.Sprintf("Ditambah: %s %s (stok awal)", formatQty(seed.qty), seed.unit),
				Direction: domain.DirectionCredit,
				CreatedAt: seededAt,
			}},
		}
	}

	menus := map[string]domain.MenuItem{}
	for _, item := range []domain.MenuItem{
		{ID: "menu-latte", Name: "Latte", Price: 25000, Recipe: []domain.RecipeLine{
			{Name: "Susu", Quantity: 200, Unit: domain.UnitMilliliter},
		}},
		{ID: "menu-kopi-gula-aren", Name: "Kopi Susu Gula Aren", Price: 18000, Recipe: []domain.RecipeLine{
			{Name: "Kopi Bubuk", Quantity: 18, Unit: domain.UnitGram},
			{Name: "Susu", Quantity: 150, Unit: domain.UnitMilliliter},
			{Name: "Gula Aren", Quantity: 20, Unit: domain.UnitGram},
		}},
		{ID: "menu-americano", Name: "Americano", Price: 15000, Recipe: []domain.RecipeLine{
			{Name: "Kopi Bubuk", Quantity: 18, Unit: domain.UnitGram},
			{Name: "Air Mineral", Quantity: 180, Unit: domain.UnitMilliliter},
		}},
	} {
		menus[item.ID] = item
	}

	return &Store{
		ingredients:      ingredients,
		menusByID:        menus,
		transactionsByID: make(map[string]*domain.Transaction),
		counters:         make(map[string]int64),
		usersByUsername:  seedUsers(),
	}
}

func (s *Store) GetIngredient(_ context.Context, name string) (*domain.IngredientStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.ingredients[name]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyRec := cloneIngredient(rec)
	return &copyRec, nil
}

func (s *Store) ListIngredients(_ context.Context) ([]domain.IngredientStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.IngredientStock, 0, len(s.ingredients))
	for _, rec := range s.ingredients {
		result = append(result, cloneIngredient(rec))
	}
	slices.SortFunc(result, func(a, b domain.IngredientStock) int {
		return cmpString(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) CreditStock(_ context.Context, name string, qty float64, unit string, note string) (*domain.IngredientStock, error) {
	name = strings.TrimSpace(name)
	if name == "" || qty <= 0 || !units.IsKnown(unit) {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec, exists := s.ingredients[name]
	if !exists {
		// Absence is treated as a zero starting quantity in the incoming unit.
		rec = &domain.IngredientStock{Name: name, Unit: unit}
		s.ingredients[name] = rec
	}

	delta, err := units.Convert(qty, unit, rec.Unit)
	if err != nil {
		return nil, store.ErrIncompatibleUnit
	}
	if note == "" {
		note = fmt.Sprintf("Ditambah: %s %s", formatQty(qty), unit)
	}

	rec.Quantity += delta
	rec.History = append(rec.History, domain.StockEvent{
		Delta:     delta,
		Unit:      rec.Unit,
		Note:      note,
		Direction: domain.DirectionCredit,
		CreatedAt: now,
	})

	copyRec := cloneIngredient(rec)
	return &copyRec, nil
}

func (s *Store) DebitStock(_ context.Context, name string, qty float64, unit string, note string) (*domain.IngredientStock, error) {
	name = strings.TrimSpace(name)
	if name == "" || qty <= 0 || !units.IsKnown(unit) {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.ingredients[name]
	if !exists {
		return nil, store.ErrNotFound
	}
	delta, err := units.Convert(qty, unit, rec.Unit)
	if err != nil {
		return nil, store.ErrIncompatibleUnit
	}
	if delta > rec.Quantity {
		return nil, store.ErrInsufficientStock
	}
	if note == "" {
		note = fmt.Sprintf("Dikurangi: %s %s", formatQty(qty), unit)
	}

	rec.Quantity -= delta
	rec.History = append(rec.History, domain.StockEvent{
		Delta:     delta,
		Unit:      rec.Unit,
		Note:      note,
		Direction: domain.DirectionDebit,
		CreatedAt: time.Now().UTC(),
	})

	copyRec := cloneIngredient(rec)
	return &copyRec, nil
}

func (s *Store) ListStockEvents(_ context.Context) ([]domain.InventoryHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryHistoryEntry, 0, 64)
	for _, rec := range s.ingredients {
		for _, event := range rec.History {
			result = append(result, domain.InventoryHistoryEntry{
				Ingredient: rec.Name,
				Delta:      event.Delta,
				Unit:       event.Unit,
				Note:       event.Note,
				Direction:  event.Direction,
				CreatedAt:  event.CreatedAt,
			})
		}
	}

	slices.SortFunc(result, func(a, b domain.InventoryHistoryEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.Ingredient, b.Ingredient)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateMenuItem(_ context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if err := validateMenuItem(item); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.menusByID {
		if existing.Name == item.Name {
			return nil, store.ErrDuplicateMenu
		}
	}
	if item.ID == "" {
		item.ID = xid.New("menu")
	}
	if _, exists := s.menusByID[item.ID]; exists {
		return nil, store.ErrInvalidInput
	}

	s.menusByID[item.ID] = cloneMenuItem(item)
	created := cloneMenuItem(item)
	return &created, nil
}

func (s *Store) ListMenuItems(_ context.Context) ([]domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.MenuItem, 0, len(s.menusByID))
	for _, item := range s.menusByID {
		result = append(result, cloneMenuItem(item))
	}
	slices.SortFunc(result, func(a, b domain.MenuItem) int {
		return cmpString(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) GetMenuItemByID(_ context.Context, id string) (*domain.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.menusByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := cloneMenuItem(item)
	return &copyItem, nil
}

func (s *Store) UpdateMenuItem(_ context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if item.ID == "" {
		return nil, store.ErrInvalidInput
	}
	if err := validateMenuItem(item); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.menusByID[item.ID]; !exists {
		return nil, store.ErrNotFound
	}
	for id, existing := range s.menusByID {
		if id != item.ID && existing.Name == item.Name {
			return nil, store.ErrDuplicateMenu
		}
	}

	s.menusByID[item.ID] = cloneMenuItem(item)
	updated := cloneMenuItem(item)
	return &updated, nil
}

func (s *Store) DeleteMenuItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.menusByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.menusByID, id)
	return nil
}

func (s *Store) NextSequence(_ context.Context, counterID string) (int64, error) {
	if strings.TrimSpace(counterID) == "" {
		return 0, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nextSequenceLocked(counterID), nil
}

// nextSequenceLocked creates the counter holding 0 on first use and returns
// 0; every later call increments and returns the new value. Callers hold mu.
func (s *Store) nextSequenceLocked(counterID string) int64 {
	last, exists := s.counters[counterID]
	if !exists {
		s.counters[counterID] = 0
		return 0
	}
	s.counters[counterID] = last + 1
	return last + 1
}

func (s *Store) CreateCheckout(_ context.Context, order []domain.OrderItem, at time.Time) (*domain.Transaction, error) {
	if len(order) == 0 {
		return nil, store.ErrInvalidInput
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Resolve every line item and total up the required stock per ingredient
	// (in the ledger record's own unit) before touching anything.
	type lineDebit struct {
		ingredient string
		delta      float64
		note       string
	}
	required := map[string]float64{}
	debits := make([]lineDebit, 0, len(order)*2)
	items := make([]domain.TransactionLine, 0, len(order))
	total := int64(0)

	for _, line := range order {
		if line.Quantity < 1 || strings.TrimSpace(line.MenuID) == "" {
			return nil, store.ErrInvalidInput
		}
		menu, exists := s.menusByID[line.MenuID]
		if !exists {
			return nil, store.ErrNotFound
		}
		for _, recipe := range menu.Recipe {
			rec, exists := s.ingredients[recipe.Name]
			if !exists {
				return nil, store.ErrNotFound
			}
			delta, err := units.Convert(recipe.Quantity*float64(line.Quantity), recipe.Unit, rec.Unit)
			if err != nil {
				return nil, store.ErrIncompatibleUnit
			}
			required[recipe.Name] += delta
			debits = append(debits, lineDebit{
				ingredient: recipe.Name,
				delta:      delta,
				note:       fmt.Sprintf("Dikurangi: %s %s (%s x%d)", formatQty(delta), rec.Unit, menu.Name, line.Quantity),
			})
		}
		items = append(items, domain.TransactionLine{
			MenuName:  menu.Name,
			Quantity:  line.Quantity,
			UnitPrice: menu.Price,
		})
		total += int64(line.Quantity) * menu.Price
	}

	for name, needed := range required {
		if needed > s.ingredients[name].Quantity {
			return nil, store.ErrInsufficientStock
		}
	}

	// Every check passed: apply the full debit batch and record the events.
	for _, debit := range debits {
		rec := s.ingredients[debit.ingredient]
		rec.Quantity -= debit.delta
		rec.History = append(rec.History, domain.StockEvent{
			Delta:     debit.delta,
			Unit:      rec.Unit,
			Note:      debit.note,
			Direction: domain.DirectionDebit,
			CreatedAt: at,
		})
	}

	id := store.TransactionID(at, s.nextSequenceLocked(store.CounterTransactionID))
	for {
		if _, exists := s.transactionsByID[id]; !exists {
			break
		}
		id = store.TransactionID(at, s.nextSequenceLocked(store.CounterTransactionID))
	}

	tx := &domain.Transaction{
		ID:          id,
		TotalAmount: total,
		CreatedAt:   at,
		Items:       items,
	}
	s.transactionsByID[id] = cloneTransaction(tx)
	return cloneTransaction(tx), nil
}

func (s *Store) GetTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactionsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.transactionsByID))
	for _, tx := range s.transactionsByID {
		result = append(result, *cloneTransaction(tx))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func validateMenuItem(item domain.MenuItem) error {
	if strings.TrimSpace(item.Name) == "" || item.Price < 0 || len(item.Recipe) == 0 {
		return store.ErrInvalidInput
	}
	for _, recipe := range item.Recipe {
		if strings.TrimSpace(recipe.Name) == "" || recipe.Quantity <= 0 || !units.IsKnown(recipe.Unit) {
			return store.ErrInvalidInput
		}
	}
	return nil
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneIngredient(src *domain.IngredientStock) domain.IngredientStock {
	dup := *src
	history := make([]domain.StockEvent, len(src.History))
	copy(history, src.History)
	dup.History = history
	return dup
}

func cloneMenuItem(src domain.MenuItem) domain.MenuItem {
	dup := src
	recipe := make([]domain.RecipeLine, len(src.Recipe))
	copy(recipe, src.Recipe)
	dup.Recipe = recipe
	return dup
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.TransactionLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return &dup
}
