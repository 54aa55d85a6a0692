package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"oddsfeed-service/models"
)

func newTestStore(t *testing.T) *EntityStore {
	t.Helper()
	store := NewEntityStore()
	t.Cleanup(store.Close)
	return store
}

func TestStoreAndGet(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.Match{ID: "m1", Name: "Team A vs Team B", Status: "live"})

	entity := store.Get(models.TypeMatch, "m1")
	if entity == nil {
		t.Fatal("Expected stored match to be retrievable")
	}

	match, ok := entity.(models.Match)
	if !ok {
		t.Fatalf("Expected models.Match, got %T", entity)
	}
	if match.Name != "Team A vs Team B" {
		t.Errorf("Expected name 'Team A vs Team B', got %q", match.Name)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	if entity := store.Get(models.TypeMatch, "missing"); entity != nil {
		t.Errorf("Expected nil for missing entity, got %v", entity)
	}
}

func TestObserveMissingEmitsNilFirst(t *testing.T) {
	store := newTestStore(t)

	sub := store.ObserveEntity(models.TypeMatch, "never-stored")
	defer sub.Cancel()

	if got := receiveValue(t, sub.Updates()); got != nil {
		t.Errorf("Expected first emission nil for never-stored id, got %v", got)
	}
}

func TestObserveEntityDeliversCurrentThenChanges(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.Sport{ID: "s1", Name: "Football"})

	sub := store.ObserveEntity(models.TypeSport, "s1")
	defer sub.Cancel()

	first := receiveValue(t, sub.Updates())
	if sport, ok := first.(models.Sport); !ok || sport.Name != "Football" {
		t.Fatalf("Expected current value Football, got %v", first)
	}

	store.Store(models.Sport{ID: "s1", Name: "Soccer"})

	next := receiveValue(t, sub.Updates())
	if sport, ok := next.(models.Sport); !ok || sport.Name != "Soccer" {
		t.Errorf("Expected updated value Soccer, got %v", next)
	}
}

func TestObserversShareOnePublisherPerKey(t *testing.T) {
	store := newTestStore(t)

	first := store.ObserveEntity(models.TypeSport, "s1")
	second := store.ObserveEntity(models.TypeSport, "s1")
	defer first.Cancel()
	defer second.Cancel()

	receiveValue(t, first.Updates())
	receiveValue(t, second.Updates())

	store.Store(models.Sport{ID: "s1", Name: "Tennis"})

	for _, sub := range []*ValueSubscription[models.Entity]{first, second} {
		got := receiveValue(t, sub.Updates())
		if sport, ok := got.(models.Sport); !ok || sport.Name != "Tennis" {
			t.Errorf("Expected both observers to see Tennis, got %v", got)
		}
	}
}

func TestGetAllInOrderPreservesFirstStoreOrder(t *testing.T) {
	store := newTestStore(t)

	store.StoreAll([]models.Entity{
		models.Match{ID: "m1", Name: "first"},
		models.Match{ID: "m2", Name: "second"},
		models.Match{ID: "m3", Name: "third"},
	})

	// 后续更新不改变首见顺序
	store.Store(models.Match{ID: "m1", Name: "first-updated"})

	ordered := store.GetAllInOrder(models.TypeMatch)
	if len(ordered) != 3 {
		t.Fatalf("Expected 3 matches, got %d", len(ordered))
	}
	wantIDs := []string{"m1", "m2", "m3"}
	for i, want := range wantIDs {
		if ordered[i].EntityID() != want {
			t.Errorf("Expected position %d to be %s, got %s", i, want, ordered[i].EntityID())
		}
	}
	if ordered[0].(models.Match).Name != "first-updated" {
		t.Errorf("Expected updated value at original position, got %q", ordered[0].(models.Match).Name)
	}
}

func TestGetAllInOrderSkipsDeleted(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.Match{ID: "m1"})
	store.Store(models.Match{ID: "m2"})
	store.DeleteEntity(models.TypeMatch, "m1")

	ordered := store.GetAllInOrder(models.TypeMatch)
	if len(ordered) != 1 || ordered[0].EntityID() != "m2" {
		t.Errorf("Expected only m2 after delete, got %v", ordered)
	}
}

func TestDeletedThenRestoredKeepsOrderSlot(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.Match{ID: "m1"})
	store.Store(models.Match{ID: "m2"})
	store.DeleteEntity(models.TypeMatch, "m1")
	store.Store(models.Match{ID: "m1", Name: "restored"})

	ordered := store.GetAllInOrder(models.TypeMatch)
	if len(ordered) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(ordered))
	}
	if ordered[0].EntityID() != "m1" || ordered[1].EntityID() != "m2" {
		t.Errorf("Expected restored m1 to keep its original slot, got %s, %s",
			ordered[0].EntityID(), ordered[1].EntityID())
	}
}

func TestUpdateEntityMergesChangedProperties(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.BettingOffer{ID: "bo1", OutcomeID: "o1", Odds: 2.5, IsLive: true})

	sub := store.ObserveBettingOffer("bo1")
	defer sub.Cancel()
	receiveValue(t, sub.Updates())

	store.UpdateEntity(models.TypeBettingOffer, "bo1", map[string]json.RawMessage{
		"odds": json.RawMessage("3.75"),
	})

	entity := store.Get(models.TypeBettingOffer, "bo1")
	offer, ok := entity.(models.BettingOffer)
	if !ok {
		t.Fatalf("Expected models.BettingOffer, got %T", entity)
	}
	if offer.Odds != 3.75 {
		t.Errorf("Expected merged odds 3.75, got %v", offer.Odds)
	}
	if offer.OutcomeID != "o1" || !offer.IsLive {
		t.Error("Expected untouched fields to survive the merge")
	}

	notified := receiveValue(t, sub.Updates())
	if got := notified.(models.BettingOffer).Odds; got != 3.75 {
		t.Errorf("Expected observer to see merged odds 3.75, got %v", got)
	}
}

func TestUpdateEntityUnknownTypeIsNoOp(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.Match{ID: "m1", Name: "untouched"})

	store.UpdateEntity("WIDGET", "m1", map[string]json.RawMessage{
		"name": json.RawMessage(`"changed"`),
	})

	match := store.Get(models.TypeMatch, "m1").(models.Match)
	if match.Name != "untouched" {
		t.Errorf("Expected store unchanged after unknown-type update, got %q", match.Name)
	}
}

func TestUpdateEntityMissingEntityIsNoOp(t *testing.T) {
	store := newTestStore(t)

	store.UpdateEntity(models.TypeBettingOffer, "missing", map[string]json.RawMessage{
		"odds": json.RawMessage("2.0"),
	})

	if entity := store.Get(models.TypeBettingOffer, "missing"); entity != nil {
		t.Errorf("Expected no entity created by update, got %v", entity)
	}
}

func TestDeleteEntityNotifiesNil(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.Match{ID: "m1"})

	sub := store.ObserveMatch("m1")
	defer sub.Cancel()

	if got := receiveValue(t, sub.Updates()); got == nil {
		t.Fatal("Expected current value before delete")
	}

	store.DeleteEntity(models.TypeMatch, "m1")

	if got := receiveValue(t, sub.Updates()); got != nil {
		t.Errorf("Expected explicit nil emission after delete, got %v", got)
	}
	if entity := store.Get(models.TypeMatch, "m1"); entity != nil {
		t.Errorf("Expected entity gone from store, got %v", entity)
	}
}

func TestObserveEventInfosForEvent(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.Match{ID: "m1"})

	sub := store.ObserveEventInfosForEvent("m1")
	defer sub.Cancel()

	first := receiveValue(t, sub.Updates())
	if len(first) != 0 {
		t.Fatalf("Expected empty initial emission, got %v", first)
	}

	store.Store(models.EventInfo{ID: "ei1", EventID: "m1", InfoType: "VENUE", Value: "Arena"})
	store.Store(models.EventInfo{ID: "ei2", EventID: "m1", InfoType: "REFEREE", Value: "Smith"})
	store.Store(models.EventInfo{ID: "ei3", EventID: "other", InfoType: "VENUE", Value: "Elsewhere"})

	// 慢读者可能合并中间值，等到恰好两条匹配为止
	deadline := time.After(2 * time.Second)
	for {
		select {
		case infos := <-sub.Updates():
			if len(infos) == 2 {
				if infos[0].ID != "ei1" || infos[1].ID != "ei2" {
					t.Fatalf("Expected exactly ei1 and ei2, got %v", infos)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for filtered event infos")
		}
	}
}

func TestObserveEventInfosSuppressesDuplicates(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.EventInfo{ID: "ei1", EventID: "m1", InfoType: "VENUE", Value: "Arena"})

	sub := store.ObserveEventInfosForEvent("m1")
	defer sub.Cancel()
	receiveValue(t, sub.Updates())

	// 不影响过滤结果的桶变化不触发推送
	store.Store(models.EventInfo{ID: "ei9", EventID: "unrelated", InfoType: "VENUE", Value: "Elsewhere"})

	expectNoValue(t, sub.Updates())
}

func TestClearDropsAllEntities(t *testing.T) {
	store := newTestStore(t)

	store.Store(models.Sport{ID: "s1"})
	store.Store(models.Match{ID: "m1"})
	store.Clear()

	if entity := store.Get(models.TypeSport, "s1"); entity != nil {
		t.Error("Expected sport gone after clear")
	}
	if all := store.GetAllInOrder(models.TypeMatch); len(all) != 0 {
		t.Errorf("Expected no matches after clear, got %d", len(all))
	}
}

func TestConcurrentStoreAndGet(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Store(models.Outcome{ID: "o1", Name: "racing"})
			}
		}(i)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Get(models.TypeOutcome, "o1")
				store.GetAllInOrder(models.TypeOutcome)
			}
		}(i)
	}
	wg.Wait()

	if entity := store.Get(models.TypeOutcome, "o1"); entity == nil {
		t.Error("Expected outcome present after concurrent writes")
	}
}
