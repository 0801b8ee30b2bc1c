package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()
	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })
	return NewRepository(db, nil)
}

func int64Ptr(v int64) *int64 { return &v }

func TestAdvertisementCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepository(t)

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	ad := &Advertisement{
		Title:               "Spring sale",
		Description:         "Everything 20% off",
		Status:              StatusActive,
		StartDate:           &start,
		FrequencyCapMinutes: 60,
	}
	if err := repo.CreateAdvertisement(ctx, ad); err != nil {
		t.Fatalf("CreateAdvertisement() error = %v", err)
	}
	if ad.ID == 0 {
		t.Fatal("CreateAdvertisement() did not set ID")
	}

	got, err := repo.GetAdvertisement(ctx, ad.ID)
	if err != nil {
		t.Fatalf("GetAdvertisement() error = %v", err)
	}
	if got.Title != ad.Title || got.FrequencyCapMinutes != 60 {
		t.Errorf("GetAdvertisement() = %+v, want title and cap preserved", got)
	}
	if got.StartDate == nil || !got.StartDate.Equal(start) {
		t.Errorf("StartDate = %v, want %v", got.StartDate, start)
	}
	if got.EndDate != nil {
		t.Errorf("EndDate = %v, want nil", got.EndDate)
	}

	got.Title = "Summer sale"
	got.StartDate = nil
	if err := repo.UpdateAdvertisement(ctx, got); err != nil {
		t.Fatalf("UpdateAdvertisement() error = %v", err)
	}
	if err := repo.SetAdvertisementStatus(ctx, ad.ID, StatusInactive); err != nil {
		t.Fatalf("SetAdvertisementStatus() error = %v", err)
	}

	got, err = repo.GetAdvertisement(ctx, ad.ID)
	if err != nil {
		t.Fatalf("GetAdvertisement() error = %v", err)
	}
	if got.Title != "Summer sale" || got.StartDate != nil || got.Status != StatusInactive {
		t.Errorf("after update = %+v", got)
	}

	active, err := repo.ListActiveAdvertisements(ctx)
	if err != nil {
		t.Fatalf("ListActiveAdvertisements() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListActiveAdvertisements() returned %d, want 0", len(active))
	}

	if err := repo.DeleteAdvertisement(ctx, ad.ID); err != nil {
		t.Fatalf("DeleteAdvertisement() error = %v", err)
	}
	if _, err := repo.GetAdvertisement(ctx, ad.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAdvertisement() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteAdvertisement(ctx, ad.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteAdvertisement() error = %v, want ErrNotFound", err)
	}
}

func TestMarkAdvertisementDelivered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepository(t)

	ad := &Advertisement{Title: "Once", Status: StatusActive}
	if err := repo.CreateAdvertisement(ctx, ad); err != nil {
		t.Fatalf("CreateAdvertisement() error = %v", err)
	}
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	if err := repo.MarkAdvertisementDelivered(ctx, ad.ID, at); err != nil {
		t.Fatalf("MarkAdvertisementDelivered() error = %v", err)
	}
	got, err := repo.GetAdvertisement(ctx, ad.ID)
	if err != nil || !got.Delivered() || !got.LastDeliveredAt.Equal(at) {
		t.Fatalf("GetAdvertisement() = %+v, %v; want delivered at %v", got, err, at)
	}
	if err := repo.MarkAdvertisementDelivered(ctx, 999, at); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkAdvertisementDelivered(missing) error = %v, want ErrNotFound", err)
	}
}

func TestCreateAdvertisement_RejectsNegativeCap(t *testing.T) {
	t.Parallel()
	repo := newTestRepository(t)
	err := repo.CreateAdvertisement(context.Background(), &Advertisement{Title: "x", FrequencyCapMinutes: -1})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("CreateAdvertisement() error = %v, want ErrInvalid", err)
	}
}

func TestStoresAndMenuButtons(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepository(t)

	food := &MenuButton{Name: "Food", Type: MenuButtonTypeStore, Status: StatusActive, SortOrder: 2}
	info := &MenuButton{Name: "Info", Type: MenuButtonTypeAction, Status: StatusActive, SortOrder: 1}
	for _, b := range []*MenuButton{food, info} {
		if err := repo.CreateMenuButton(ctx, b); err != nil {
			t.Fatalf("CreateMenuButton() error = %v", err)
		}
	}
	contact := &MenuButton{ParentID: int64Ptr(info.ID), Name: "Contact", Type: MenuButtonTypeAction,
		Action: "https://example.com/contact", Status: StatusActive}
	if err := repo.CreateMenuButton(ctx, contact); err != nil {
		t.Fatalf("CreateMenuButton() child error = %v", err)
	}

	roots, err := repo.ListMenuButtons(ctx, nil)
	if err != nil {
		t.Fatalf("ListMenuButtons(nil) error = %v", err)
	}
	if len(roots) != 2 || roots[0].ID != info.ID || roots[1].ID != food.ID {
		t.Errorf("roots not ordered by sort_order: %+v", roots)
	}
	children, err := repo.ListMenuButtons(ctx, int64Ptr(info.ID))
	if err != nil {
		t.Fatalf("ListMenuButtons(info) error = %v", err)
	}
	if len(children) != 1 || children[0].ID != contact.ID {
		t.Errorf("children = %+v, want contact", children)
	}

	// Moving a button under its own child is rejected.
	info.ParentID = int64Ptr(contact.ID)
	if err := repo.UpdateMenuButton(ctx, info); err == nil {
		t.Error("UpdateMenuButton() accepted a cycle")
	}
	info.ParentID = nil

	for i := 0; i < 5; i++ {
		store := &Store{
			Name:         "Store",
			Status:       StatusActive,
			Recommend:    i%2 == 0,
			MenuButtonID: int64Ptr(food.ID),
			SortOrder:    i,
			SubBtns:      Links{{Text: "Instagram", URL: "https://instagram.com/s"}},
			MenuURLs:     StringList{"https://example.com/m1.jpg"},
		}
		if err := repo.CreateStore(ctx, store); err != nil {
			t.Fatalf("CreateStore() error = %v", err)
		}
	}

	page, total, err := repo.ListStoresByMenuButton(ctx, food.ID, Page{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListStoresByMenuButton() error = %v", err)
	}
	if total != 5 || len(page) != 2 || page[0].SortOrder != 2 {
		t.Errorf("ListStoresByMenuButton() total=%d len=%d first=%+v", total, len(page), page[0])
	}
	if len(page[0].SubBtns) != 1 || page[0].SubBtns[0].Text != "Instagram" {
		t.Errorf("SubBtns not decoded: %+v", page[0].SubBtns)
	}
	if len(page[0].MenuURLs) != 1 {
		t.Errorf("MenuURLs not decoded: %+v", page[0].MenuURLs)
	}

	rec, total, err := repo.ListRecommendedStores(ctx, Page{Limit: 10})
	if err != nil {
		t.Fatalf("ListRecommendedStores() error = %v", err)
	}
	if total != 3 || len(rec) != 3 {
		t.Errorf("ListRecommendedStores() total=%d len=%d, want 3", total, len(rec))
	}

	// Deleting the menu button detaches its stores.
	if err := repo.DeleteMenuButton(ctx, food.ID); err != nil {
		t.Fatalf("DeleteMenuButton() error = %v", err)
	}
	store, err := repo.GetStore(ctx, page[0].ID)
	if err != nil {
		t.Fatalf("GetStore() error = %v", err)
	}
	if store.MenuButtonID != nil {
		t.Errorf("MenuButtonID = %v, want nil after parent delete", *store.MenuButtonID)
	}

	all, err := repo.ListAllMenuButtons(ctx)
	if err != nil {
		t.Fatalf("ListAllMenuButtons() error = %v", err)
	}
	tree := BuildMenuTree(all)
	if len(tree) != 1 || len(tree[0].Children) != 1 {
		t.Errorf("BuildMenuTree() = %+v, want info with one child", tree)
	}
}

func TestChats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepository(t)

	for _, id := range []int64{100, 200, 300} {
		if err := repo.UpsertChat(ctx, id, "chat"); err != nil {
			t.Fatalf("UpsertChat() error = %v", err)
		}
	}
	if err := repo.DeactivateChat(ctx, 200); err != nil {
		t.Fatalf("DeactivateChat() error = %v", err)
	}
	if err := repo.DeactivateChat(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeactivateChat(unknown) error = %v, want ErrNotFound", err)
	}

	ids, err := repo.ListActiveChatIDs(ctx)
	if err != nil {
		t.Fatalf("ListActiveChatIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 100 || ids[1] != 300 {
		t.Errorf("ListActiveChatIDs() = %v, want [100 300]", ids)
	}

	// Re-registering reactivates.
	if err := repo.UpsertChat(ctx, 200, "renamed"); err != nil {
		t.Fatalf("UpsertChat() error = %v", err)
	}
	chats, total, err := repo.ListChats(ctx, Page{})
	if err != nil {
		t.Fatalf("ListChats() error = %v", err)
	}
	if total != 3 {
		t.Errorf("ListChats() total = %d, want 3", total)
	}
	for _, c := range chats {
		if !c.Active {
			t.Errorf("chat %d inactive after re-register", c.ChatID)
		}
		if c.ChatID == 200 && c.Name != "renamed" {
			t.Errorf("chat 200 name = %q, want renamed", c.Name)
		}
	}
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepository(t)

	adID := int64(7)
	due := &Job{Queue: "advertisements", Kind: "advertisement.delivery", AdvertisementID: &adID, AvailableAt: 100}
	later := &Job{Queue: "advertisements", Kind: "advertisement.delivery", AdvertisementID: &adID, AvailableAt: 500}
	other := &Job{Queue: "default", Kind: "pin_message.delivery", AvailableAt: 50}
	for _, j := range []*Job{due, later, other} {
		if err := repo.InsertJob(ctx, j); err != nil {
			t.Fatalf("InsertJob() error = %v", err)
		}
	}

	n, err := repo.CountPendingJobs(ctx, adID, "advertisement.delivery")
	if err != nil || n != 2 {
		t.Fatalf("CountPendingJobs() = %d, %v; want 2", n, err)
	}

	reserved, err := repo.ReserveDueJobs(ctx, []string{"advertisements"}, 200, 10)
	if err != nil {
		t.Fatalf("ReserveDueJobs() error = %v", err)
	}
	if len(reserved) != 1 || reserved[0].ID != due.ID || reserved[0].Attempts != 1 {
		t.Fatalf("ReserveDueJobs() = %+v, want the due job with 1 attempt", reserved)
	}

	// A reserved job is neither pending nor reserved twice.
	if n, _ := repo.CountPendingJobs(ctx, adID, "advertisement.delivery"); n != 1 {
		t.Errorf("CountPendingJobs() after reserve = %d, want 1", n)
	}
	again, err := repo.ReserveDueJobs(ctx, []string{"advertisements"}, 200, 10)
	if err != nil || len(again) != 0 {
		t.Errorf("second ReserveDueJobs() = %d jobs, %v; want none", len(again), err)
	}

	if err := repo.ReleaseJob(ctx, due.ID, 300); err != nil {
		t.Fatalf("ReleaseJob() error = %v", err)
	}
	reserved, err = repo.ReserveDueJobs(ctx, []string{"advertisements"}, 300, 10)
	if err != nil || len(reserved) != 1 || reserved[0].Attempts != 2 {
		t.Fatalf("ReserveDueJobs() after release = %+v, %v", reserved, err)
	}

	if err := repo.FailJob(ctx, reserved[0], "boom", 300); err != nil {
		t.Fatalf("FailJob() error = %v", err)
	}
	failed, total, err := repo.ListFailedJobs(ctx, Page{})
	if err != nil || total != 1 || failed[0].Error != "boom" || failed[0].AdvertisementID == nil {
		t.Fatalf("ListFailedJobs() = %+v, %d, %v", failed, total, err)
	}

	deleted, err := repo.DeleteJobsForAdvertisement(ctx, adID)
	if err != nil || deleted != 1 {
		t.Errorf("DeleteJobsForAdvertisement() = %d, %v; want 1", deleted, err)
	}

	jobs, total, err := repo.ListJobs(ctx, Page{})
	if err != nil || total != 1 || jobs[0].ID != other.ID {
		t.Errorf("ListJobs() = %+v, %d, %v; want only the default job", jobs, total, err)
	}

	pruned, err := repo.PruneFailedJobs(ctx, 301)
	if err != nil || pruned != 1 {
		t.Errorf("PruneFailedJobs() = %d, %v; want 1", pruned, err)
	}
}

func TestReleaseStaleJobs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepository(t)

	job := &Job{Queue: "default", Kind: "k", AvailableAt: 0}
	if err := repo.InsertJob(ctx, job); err != nil {
		t.Fatalf("InsertJob() error = %v", err)
	}
	if _, err := repo.ReserveDueJobs(ctx, []string{"default"}, 1000, 1); err != nil {
		t.Fatalf("ReserveDueJobs() error = %v", err)
	}

	released, err := repo.ReleaseStaleJobs(ctx, 1000)
	if err != nil || released != 0 {
		t.Errorf("ReleaseStaleJobs(1000) = %d, %v; want 0", released, err)
	}
	released, err = repo.ReleaseStaleJobs(ctx, 1001)
	if err != nil || released != 1 {
		t.Errorf("ReleaseStaleJobs(1001) = %d, %v; want 1", released, err)
	}
}

func TestDeliveryLogsAndStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepository(t)

	ad := &Advertisement{Title: "Promo", Status: StatusActive}
	if err := repo.CreateAdvertisement(ctx, ad); err != nil {
		t.Fatalf("CreateAdvertisement() error = %v", err)
	}
	for _, l := range []*DeliveryLog{
		{AdvertisementID: ad.ID, JobID: 1, Sent: 90, Failed: 5, Blocked: 5},
		{AdvertisementID: ad.ID, JobID: 2, Sent: 10},
	} {
		if err := repo.InsertDeliveryLog(ctx, l); err != nil {
			t.Fatalf("InsertDeliveryLog() error = %v", err)
		}
	}

	stats, err := repo.DeliveryStats(ctx, ad.ID)
	if err != nil {
		t.Fatalf("DeliveryStats() error = %v", err)
	}
	want := DeliveryStats{Batches: 2, Sent: 100, Failed: 5, Blocked: 5}
	if *stats != want {
		t.Errorf("DeliveryStats() = %+v, want %+v", *stats, want)
	}

	empty, err := repo.DeliveryStats(ctx, ad.ID+1)
	if err != nil || empty.Batches != 0 {
		t.Errorf("DeliveryStats(unknown) = %+v, %v", empty, err)
	}

	if err := repo.UpsertChat(ctx, 1, "a"); err != nil {
		t.Fatalf("UpsertChat() error = %v", err)
	}
	overview, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if overview.TotalChats != 1 || overview.ActiveAds != 1 || overview.TotalAds != 1 {
		t.Errorf("Stats() = %+v", overview)
	}

	if err := repo.RunSQLMaintenance(ctx); err != nil {
		t.Errorf("RunSQLMaintenance() error = %v", err)
	}
}

func TestPinMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepository(t)

	if _, err := repo.GetActivePinMessage(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetActivePinMessage() on empty db error = %v, want ErrNotFound", err)
	}

	first := &PinMessage{Content: "<b>first</b>", Status: StatusActive}
	second := &PinMessage{Content: "<b>second</b>", Status: StatusActive}
	draft := &PinMessage{Content: "draft", Status: StatusInactive}
	for _, p := range []*PinMessage{first, second, draft} {
		if err := repo.CreatePinMessage(ctx, p); err != nil {
			t.Fatalf("CreatePinMessage() error = %v", err)
		}
	}
	if err := repo.CreatePinMessage(ctx, &PinMessage{Content: "  "}); err == nil {
		t.Error("CreatePinMessage() accepted empty content")
	}

	active, err := repo.GetActivePinMessage(ctx)
	if err != nil {
		t.Fatalf("GetActivePinMessage() error = %v", err)
	}
	if active.ID != second.ID {
		t.Errorf("GetActivePinMessage() = %d, want %d", active.ID, second.ID)
	}
}
