package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopReceiptCache{}, 5*time.Minute)
}

func findMenuByName(t *testing.T, svc *Service, name string) domain.MenuItem {
	t.Helper()
	menus, err := svc.ListMenus(context.Background())
	if err != nil {
		t.Fatalf("list menus failed: %v", err)
	}
	for _, menu := range menus {
		if menu.Name == name {
			return menu
		}
	}
	t.Fatalf("menu %q not found in seed data", name)
	return domain.MenuItem{}
}

func inventoryQty(t *testing.T, svc *Service, name string) (float64, string) {
	t.Helper()
	items, err := svc.ListInventory(context.Background())
	if err != nil {
		t.Fatalf("list inventory failed: %v", err)
	}
	for _, item := range items {
		if item.Name == name {
			return item.Quantity, item.Unit
		}
	}
	t.Fatalf("ingredient %q not found", name)
	return 0, ""
}

func TestAddInventoryRejectsNonBaseUnit(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddInventory(context.Background(), domain.InventoryAddRequest{
		Name:     "Sirup Vanila",
		Quantity: 2,
		Unit:     domain.UnitLiter,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for liter intake, got %v", err)
	}
}

func TestAddInventoryCreatesAndAccumulates(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.AddInventory(ctx, domain.InventoryAddRequest{
		Name:     "Sirup Vanila",
		Quantity: 300,
		Unit:     domain.UnitMilliliter,
	})
	if err != nil {
		t.Fatalf("add inventory failed: %v", err)
	}
	if first.Quantity != 300 {
		t.Fatalf("expected quantity 300, got %v", first.Quantity)
	}

	second, err := svc.AddInventory(ctx, domain.InventoryAddRequest{
		Name:     "Sirup Vanila",
		Quantity: 200,
		Unit:     domain.UnitMilliliter,
	})
	if err != nil {
		t.Fatalf("second add inventory failed: %v", err)
	}
	if second.Quantity != 500 {
		t.Fatalf("expected accumulated quantity 500, got %v", second.Quantity)
	}

	history, err := svc.InventoryHistory(ctx)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	count := 0
	for _, entry := range history {
		if entry.Ingredient == "Sirup Vanila" {
			count++
			if entry.Direction != domain.DirectionCredit {
				t.Fatalf("expected credit direction, got %s", entry.Direction)
			}
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 ledger entries for Sirup Vanila, got %d", count)
	}
}

func TestListInventoryNormalizesDisplayUnits(t *testing.T) {
	svc := newTestService()

	qty, unit := inventoryQty(t, svc, "Kopi Bubuk")
	if qty != 1.2 || unit != domain.UnitKilogram {
		t.Fatalf("expected 1.2 kg for Kopi Bubuk, got %v %s", qty, unit)
	}

	qty, unit = inventoryQty(t, svc, "Susu")
	if qty != 500 || unit != domain.UnitMilliliter {
		t.Fatalf("expected 500 ml for Susu, got %v %s", qty, unit)
	}
}

func TestCheckoutDebitsRecipeStock(t *testing.T) {
	svc := newTestService()
	latte := findMenuByName(t, svc, "Latte")

	resp, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		OrderItems: []domain.OrderItem{{MenuID: latte.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if resp.TotalAmount != 50000 {
		t.Fatalf("expected total 50000, got %d", resp.TotalAmount)
	}
	if resp.TransactionID == "" {
		t.Fatalf("expected a transaction id")
	}

	qty, unit := inventoryQty(t, svc, "Susu")
	if qty != 100 || unit != domain.UnitMilliliter {
		t.Fatalf("expected 100 ml Susu after checkout, got %v %s", qty, unit)
	}
}

func TestCheckoutInsufficientStockLeavesLedgerUntouched(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	latte := findMenuByName(t, svc, "Latte")

	// Three lattes need 600 ml of Susu; only 500 ml is seeded.
	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderItems: []domain.OrderItem{{MenuID: latte.ID, Quantity: 3}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	qty, _ := inventoryQty(t, svc, "Susu")
	if qty != 500 {
		t.Fatalf("expected Susu untouched at 500 ml, got %v", qty)
	}

	receipts, err := svc.ListReceipts(ctx)
	if err != nil {
		t.Fatalf("list receipts failed: %v", err)
	}
	if len(receipts) != 0 {
		t.Fatalf("expected no transaction recorded, got %d", len(receipts))
	}
}

func TestCheckoutSequenceEmbeddedInTransactionID(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	latte := findMenuByName(t, svc, "Latte")

	datePrefix := time.Now().UTC().Format("060102")

	first, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderItems: []domain.OrderItem{{MenuID: latte.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	if first.TransactionID != datePrefix+"0" {
		t.Fatalf("expected first id %s0, got %s", datePrefix, first.TransactionID)
	}

	second, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderItems: []domain.OrderItem{{MenuID: latte.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("second checkout failed: %v", err)
	}
	if second.TransactionID != datePrefix+"1" {
		t.Fatalf("expected second id %s1, got %s", datePrefix, second.TransactionID)
	}
}

func TestCheckoutUnknownMenuRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(context.Background(), domain.CheckoutRequest{
		OrderItems: []domain.OrderItem{{MenuID: "menu-tidak-ada", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown menu, got %v", err)
	}
}

func TestAddMenuRequiresIngredientStock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.AddMenu(ctx, domain.MenuCreateRequest{
		Name:  "Matcha Latte",
		Price: 28000,
		Recipe: []domain.RecipeLine{
			{Name: "Bubuk Matcha", Quantity: 10, Unit: domain.UnitGram},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unregistered ingredient, got %v", err)
	}

	_, err = svc.AddMenu(ctx, domain.MenuCreateRequest{
		Name:  "Susu Jumbo",
		Price: 40000,
		Recipe: []domain.RecipeLine{
			{Name: "Susu", Quantity: 900, Unit: domain.UnitMilliliter},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock for oversized recipe, got %v", err)
	}
}

func TestAddMenuRejectsDuplicateName(t *testing.T) {
	svc := newTestService()

	_, err := svc.AddMenu(context.Background(), domain.MenuCreateRequest{
		Name:  "Latte",
		Price: 27000,
		Recipe: []domain.RecipeLine{
			{Name: "Susu", Quantity: 200, Unit: domain.UnitMilliliter},
		},
	})
	if !errors.Is(err, store.ErrDuplicateMenu) {
		t.Fatalf("expected duplicate menu, got %v", err)
	}
}

func TestUpdateAndDeleteMenu(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	latte := findMenuByName(t, svc, "Latte")

	updated, err := svc.UpdateMenu(ctx, domain.MenuUpdateRequest{
		ID:    latte.ID,
		Name:  "Latte Spesial",
		Price: 27000,
		Recipe: []domain.RecipeLine{
			{Name: "Susu", Quantity: 250, Unit: domain.UnitMilliliter},
		},
	})
	if err != nil {
		t.Fatalf("update menu failed: %v", err)
	}
	if updated.Name != "Latte Spesial" || updated.Price != 27000 {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if err := svc.DeleteMenu(ctx, latte.ID); err != nil {
		t.Fatalf("delete menu failed: %v", err)
	}
	if err := svc.DeleteMenu(ctx, latte.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestGetReceiptFormatsDateAndTime(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	latte := findMenuByName(t, svc, "Latte")

	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		OrderItems: []domain.OrderItem{{MenuID: latte.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	receipt, err := svc.GetReceipt(ctx, resp.TransactionID)
	if err != nil {
		t.Fatalf("get receipt failed: %v", err)
	}
	if receipt.TransactionID != resp.TransactionID {
		t.Fatalf("receipt id mismatch: %s vs %s", receipt.TransactionID, resp.TransactionID)
	}
	if receipt.Total != 25000 {
		t.Fatalf("expected total 25000, got %d", receipt.Total)
	}
	if _, err := time.Parse("02/01/2006", receipt.Date); err != nil {
		t.Fatalf("unexpected date format %q: %v", receipt.Date, err)
	}
	if _, err := time.Parse("15:04:05", receipt.Time); err != nil {
		t.Fatalf("unexpected time format %q: %v", receipt.Time, err)
	}
	if len(receipt.Items) != 1 || receipt.Items[0].MenuName != "Latte" {
		t.Fatalf("unexpected receipt items: %+v", receipt.Items)
	}
}

func TestGetReceiptUnknownTransaction(t *testing.T) {
	svc := newTestService()

	_, err := svc.GetReceipt(context.Background(), "9901019999")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListReceiptsEmpty(t *testing.T) {
	svc := newTestService()

	receipts, err := svc.ListReceipts(context.Background())
	if err != nil {
		t.Fatalf("list receipts failed: %v", err)
	}
	if receipts == nil || len(receipts) != 0 {
		t.Fatalf("expected empty receipt list, got %v", receipts)
	}
}

func TestAddMenuBatchAbortsOnFailure(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.AddMenuBatch(ctx, domain.MenuBatchCreateRequest{
		Items: []domain.MenuCreateRequest{
			{
				Name:  "Es Kopi Susu",
				Price: 20000,
				Recipe: []domain.RecipeLine{
					{Name: "Kopi Bubuk", Quantity: 15, Unit: domain.UnitGram},
					{Name: "Susu", Quantity: 120, Unit: domain.UnitMilliliter},
				},
			},
			{
				Name:  "Menu Rusak",
				Price: 10000,
				Recipe: []domain.RecipeLine{
					{Name: "Bahan Hantu", Quantity: 5, Unit: domain.UnitGram},
				},
			},
		},
	})
	if err == nil {
		t.Fatalf("expected batch to fail on second entry")
	}

	// The first entry was created before the failure.
	findMenuByName(t, svc, "Es Kopi Susu")
}

func TestAddInventoryStampsActorInHistoryNote(t *testing.T) {
	svc := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})

	if _, err := svc.AddInventory(ctx, domain.InventoryAddRequest{
		Name:     "Sirup Hazelnut",
		Quantity: 700,
		Unit:     domain.UnitMilliliter,
	}); err != nil {
		t.Fatalf("add inventory failed: %v", err)
	}

	history, err := svc.InventoryHistory(context.Background())
	if err != nil {
		t.Fatalf("inventory history failed: %v", err)
	}
	for _, entry := range history {
		if entry.Ingredient == "Sirup Hazelnut" {
			if entry.Note != "Ditambah: 700 ml oleh admin" {
				t.Fatalf("expected actor-stamped note, got %q", entry.Note)
			}
			return
		}
	}
	t.Fatalf("no history entry recorded for Sirup Hazelnut")
}

func TestUpdateMenuUnknownIDReturnsNotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.UpdateMenu(context.Background(), domain.MenuUpdateRequest{
		ID:    "menu-tidak-ada",
		Name:  "Latte",
		Price: 25000,
		Recipe: []domain.RecipeLine{
			{Name: "Susu", Quantity: 200, Unit: domain.UnitMilliliter},
		},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown menu id, got %v", err)
	}
}
