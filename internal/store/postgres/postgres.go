package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/units"
	"warungpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetIngredient(ctx context.Context, name string) (*domain.IngredientStock, error) {
	var rec domain.IngredientStock
	err := s.db.QueryRowContext(ctx, `
		SELECT name, qty, unit
		FROM ingredient_stocks
		WHERE name = $1
	`, name).Scan(&rec.Name, &rec.Quantity, &rec.Unit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT delta, unit, note, direction, created_at
		FROM stock_events
		WHERE ingredient_name = $1
		ORDER BY created_at ASC, id ASC
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.StockEvent, 0, 16)
	for rows.Next() {
		var event domain.StockEvent
		if err := rows.Scan(&event.Delta, &event.Unit, &event.Note, &event.Direction, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.CreatedAt = event.CreatedAt.UTC()
		history = append(history, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rec.History = history

	return &rec, nil
}

func (s *Store) ListIngredients(ctx context.Context) ([]domain.IngredientStock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, qty, unit
		FROM ingredient_stocks
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.IngredientStock, 0, 64)
	for rows.Next() {
		var rec domain.IngredientStock
		if err := rows.Scan(&rec.Name, &rec.Quantity, &rec.Unit); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreditStock(ctx context.Context, name string, qty float64, unit string, note string) (*domain.IngredientStock, error) {
	name = strings.TrimSpace(name)
	if name == "" || qty <= 0 || !units.IsKnown(unit) {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var rec domain.IngredientStock
	err = tx.QueryRowContext(ctx, `
		SELECT name, qty, unit
		FROM ingredient_stocks
		WHERE name = $1
		FOR UPDATE
	`, name).Scan(&rec.Name, &rec.Quantity, &rec.Unit)
	if errors.Is(err, sql.ErrNoRows) {
		// Absence is treated as a zero starting quantity in the incoming unit.
		rec = domain.IngredientStock{Name: name, Quantity: 0, Unit: unit}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ingredient_stocks (name, qty, unit, updated_at)
			VALUES ($1, 0, $2, now())
		`, name, unit)
	}
	if err != nil {
		return nil, err
	}

	delta, err := units.Convert(qty, unit, rec.Unit)
	if err != nil {
		return nil, store.ErrIncompatibleUnit
	}
	if note == "" {
		note = fmt.Sprintf("Ditambah: %s %s", formatQty(qty), unit)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE ingredient_stocks
		SET qty = qty + $2, updated_at = now()
		WHERE name = $1
	`, name, delta)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_events (id, ingredient_name, delta, unit, note, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, xid.New("evt"), name, delta, rec.Unit, note, domain.DirectionCredit, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rec.Quantity += delta
	return &rec, nil
}

func (s *Store) DebitStock(ctx context.Context, name string, qty float64, unit string, note string) (*domain.IngredientStock, error) {
	name = strings.TrimSpace(name)
	if name == "" || qty <= 0 || !units.IsKnown(unit) {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var rec domain.IngredientStock
	err = tx.QueryRowContext(ctx, `
		SELECT name, qty, unit
		FROM ingredient_stocks
		WHERE name = $1
		FOR UPDATE
	`, name).Scan(&rec.Name, &rec.Quantity, &rec.Unit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
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

	_, err = tx.ExecContext(ctx, `
		UPDATE ingredient_stocks
		SET qty = qty - $2, updated_at = now()
		WHERE name = $1
	`, name, delta)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_events (id, ingredient_name, delta, unit, note, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, xid.New("evt"), name, delta, rec.Unit, note, domain.DirectionDebit, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rec.Quantity -= delta
	return &rec, nil
}

func (s *Store) ListStockEvents(ctx context.Context) ([]domain.InventoryHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ingredient_name, delta, unit, note, direction, created_at
		FROM stock_events
		ORDER BY created_at DESC, ingredient_name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.InventoryHistoryEntry, 0, 128)
	for rows.Next() {
		var entry domain.InventoryHistoryEntry
		if err := rows.Scan(&entry.Ingredient, &entry.Delta, &entry.Unit, &entry.Note, &entry.Direction, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if err := validateMenuItem(item); err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = xid.New("menu")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO menu_items (id, name, price, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, item.ID, item.Name, item.Price)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateMenu
		}
		return nil, err
	}
	if err := insertRecipeLines(ctx, tx, item.ID, item.Recipe); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) ListMenuItems(ctx context.Context) ([]domain.MenuItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price
		FROM menu_items
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.MenuItem, 0, 32)
	index := map[string]int{}
	ids := make([]string, 0, 32)
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price); err != nil {
			return nil, err
		}
		index[item.ID] = len(result)
		ids = append(ids, item.ID)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	recipeRows, err := s.db.QueryContext(ctx, `
		SELECT menu_id, ingredient_name, qty, unit
		FROM menu_recipe_items
		WHERE menu_id = ANY($1)
		ORDER BY menu_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer recipeRows.Close()

	for recipeRows.Next() {
		var menuID string
		var line domain.RecipeLine
		if err := recipeRows.Scan(&menuID, &line.Name, &line.Quantity, &line.Unit); err != nil {
			return nil, err
		}
		if pos, ok := index[menuID]; ok {
			result[pos].Recipe = append(result[pos].Recipe, line)
		}
	}
	if err := recipeRows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) GetMenuItemByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	var item domain.MenuItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price
		FROM menu_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ingredient_name, qty, unit
		FROM menu_recipe_items
		WHERE menu_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.RecipeLine
		if err := rows.Scan(&line.Name, &line.Quantity, &line.Unit); err != nil {
			return nil, err
		}
		item.Recipe = append(item.Recipe, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &item, nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, item domain.MenuItem) (*domain.MenuItem, error) {
	if item.ID == "" {
		return nil, store.ErrInvalidInput
	}
	if err := validateMenuItem(item); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE menu_items
		SET name = $2, price = $3, updated_at = now()
		WHERE id = $1
	`, item.ID, item.Name, item.Price)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateMenu
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	// Recipes are replaced wholesale; updates always carry the full recipe.
	_, err = tx.ExecContext(ctx, `DELETE FROM menu_recipe_items WHERE menu_id = $1`, item.ID)
	if err != nil {
		return nil, err
	}
	if err := insertRecipeLines(ctx, tx, item.ID, item.Recipe); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	updated := item
	return &updated, nil
}

func (s *Store) DeleteMenuItem(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `DELETE FROM menu_recipe_items WHERE menu_id = $1`, id)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

// NextSequence creates the counter holding 0 and returns 0 on first use;
// every later call increments and returns the new value. The single upsert
// statement keeps concurrent callers from ever seeing the same value.
func (s *Store) NextSequence(ctx context.Context, counterID string) (int64, error) {
	if strings.TrimSpace(counterID) == "" {
		return 0, store.ErrInvalidInput
	}
	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequence_counters (id, last_value)
		VALUES ($1, 0)
		ON CONFLICT (id)
		DO UPDATE SET last_value = sequence_counters.last_value + 1
		RETURNING last_value
	`, counterID).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func nextSequenceTx(ctx context.Context, tx *sql.Tx, counterID string) (int64, error) {
	var value int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO sequence_counters (id, last_value)
		VALUES ($1, 0)
		ON CONFLICT (id)
		DO UPDATE SET last_value = sequence_counters.last_value + 1
		RETURNING last_value
	`, counterID).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

const checkoutMaxAttempts = 5

var errTransactionIDTaken = errors.New("transaction id taken")

func (s *Store) CreateCheckout(ctx context.Context, order []domain.OrderItem, at time.Time) (*domain.Transaction, error) {
	if len(order) == 0 {
		return nil, store.ErrInvalidInput
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var lastErr error
	for attempt := 0; attempt < checkoutMaxAttempts; attempt++ {
		tx, err := s.createCheckoutOnce(ctx, order, at)
		if err == nil {
			return tx, nil
		}
		// Serialization failures and transaction-id collisions restart the
		// whole checkout with a fresh sequence value. Everything else
		// surfaces to the caller.
		if isSerializationFailure(err) || errors.Is(err, errTransactionIDTaken) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("checkout retries exhausted: %w", lastErr)
}

func (s *Store) createCheckoutOnce(ctx context.Context, order []domain.OrderItem, at time.Time) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	menuIDs := make([]string, 0, len(order))
	seenMenu := map[string]struct{}{}
	for _, line := range order {
		if line.Quantity < 1 || strings.TrimSpace(line.MenuID) == "" {
			return nil, store.ErrInvalidInput
		}
		if _, ok := seenMenu[line.MenuID]; !ok {
			seenMenu[line.MenuID] = struct{}{}
			menuIDs = append(menuIDs, line.MenuID)
		}
	}

	menus, err := loadMenusTx(ctx, pgTx, menuIDs)
	if err != nil {
		return nil, err
	}

	ingredientNames := make([]string, 0, 8)
	seenIngredient := map[string]struct{}{}
	for _, id := range menuIDs {
		for _, recipe := range menus[id].Recipe {
			if _, ok := seenIngredient[recipe.Name]; !ok {
				seenIngredient[recipe.Name] = struct{}{}
				ingredientNames = append(ingredientNames, recipe.Name)
			}
		}
	}

	stocks, err := lockStocksTx(ctx, pgTx, ingredientNames)
	if err != nil {
		return nil, err
	}

	// Validate the entire order before writing a single debit.
	type lineDebit struct {
		ingredient string
		delta      float64
		unit       string
		note       string
	}
	required := map[string]float64{}
	debits := make([]lineDebit, 0, len(order)*2)
	items := make([]domain.TransactionLine, 0, len(order))
	total := int64(0)

	for _, line := range order {
		menu := menus[line.MenuID]
		for _, recipe := range menu.Recipe {
			rec := stocks[recipe.Name]
			delta, err := units.Convert(recipe.Quantity*float64(line.Quantity), recipe.Unit, rec.Unit)
			if err != nil {
				return nil, store.ErrIncompatibleUnit
			}
			required[recipe.Name] += delta
			debits = append(debits, lineDebit{
				ingredient: recipe.Name,
				delta:      delta,
				unit:       rec.Unit,
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
		if needed > stocks[name].Quantity {
			return nil, store.ErrInsufficientStock
		}
	}

	for _, debit := range debits {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE ingredient_stocks
			SET qty = qty - $2, updated_at = now()
			WHERE name = $1
		`, debit.ingredient, debit.delta)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO stock_events (id, ingredient_name, delta, unit, note, direction, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, xid.New("evt"), debit.ingredient, debit.delta, debit.unit, debit.note, domain.DirectionDebit, at)
		if err != nil {
			return nil, err
		}
	}

	seq, err := nextSequenceTx(ctx, pgTx, store.CounterTransactionID)
	if err != nil {
		return nil, err
	}
	id := store.TransactionID(at, seq)

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (id, total_amount, created_at)
		VALUES ($1, $2, $3)
	`, id, total, at)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errTransactionIDTaken
		}
		return nil, err
	}

	for pos, item := range items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, position, menu_name, qty, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, id, pos, item.MenuName, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &domain.Transaction{
		ID:          id,
		TotalAmount: total,
		CreatedAt:   at,
		Items:       items,
	}, nil
}

func loadMenusTx(ctx context.Context, tx *sql.Tx, menuIDs []string) (map[string]domain.MenuItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, price
		FROM menu_items
		WHERE id = ANY($1)
	`, menuIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	menus := make(map[string]domain.MenuItem, len(menuIDs))
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price); err != nil {
			return nil, err
		}
		menus[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(menus) != len(menuIDs) {
		return nil, store.ErrNotFound
	}

	recipeRows, err := tx.QueryContext(ctx, `
		SELECT menu_id, ingredient_name, qty, unit
		FROM menu_recipe_items
		WHERE menu_id = ANY($1)
		ORDER BY menu_id, position
	`, menuIDs)
	if err != nil {
		return nil, err
	}
	defer recipeRows.Close()

	for recipeRows.Next() {
		var menuID string
		var line domain.RecipeLine
		if err := recipeRows.Scan(&menuID, &line.Name, &line.Quantity, &line.Unit); err != nil {
			return nil, err
		}
		item := menus[menuID]
		item.Recipe = append(item.Recipe, line)
		menus[menuID] = item
	}
	if err := recipeRows.Err(); err != nil {
		return nil, err
	}

	return menus, nil
}

func lockStocksTx(ctx context.Context, tx *sql.Tx, names []string) (map[string]domain.IngredientStock, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT name, qty, unit
		FROM ingredient_stocks
		WHERE name = ANY($1)
		FOR UPDATE
	`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stocks := make(map[string]domain.IngredientStock, len(names))
	for rows.Next() {
		var rec domain.IngredientStock
		if err := rows.Scan(&rec.Name, &rec.Quantity, &rec.Unit); err != nil {
			return nil, err
		}
		stocks[rec.Name] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stocks) != len(names) {
		return nil, store.ErrNotFound
	}
	return stocks, nil
}

func (s *Store) GetTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_amount, created_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(&tx.ID, &tx.TotalAmount, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	tx.CreatedAt = tx.CreatedAt.UTC()

	items, err := s.transactionItems(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.Items = items

	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, total_amount, created_at
		FROM transactions
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.TotalAmount, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		items, err := s.transactionItems(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Items = items
	}

	return result, nil
}

func (s *Store) transactionItems(ctx context.Context, transactionID string) ([]domain.TransactionLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT menu_name, qty, unit_price
		FROM transaction_items
		WHERE transaction_id = $1
		ORDER BY position
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.TransactionLine, 0, 8)
	for rows.Next() {
		var item domain.TransactionLine
		if err := rows.Scan(&item.MenuName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_accounts (username, password, role, active, created_at)
		VALUES ($1, $2, $3, true, $4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM user_accounts
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE user_accounts
		SET password = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func insertRecipeLines(ctx context.Context, tx *sql.Tx, menuID string, recipe []domain.RecipeLine) error {
	for pos, line := range recipe {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO menu_recipe_items (menu_id, position, ingredient_name, qty, unit)
			VALUES ($1, $2, $3, $4, $5)
		`, menuID, pos, line.Name, line.Quantity, line.Unit)
		if err != nil {
			return err
		}
	}
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
