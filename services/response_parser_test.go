package services

import (
	"encoding/json"
	"testing"

	"oddsfeed-service/models"
)

func TestParseStoresEntityRecords(t *testing.T) {
	store := newTestStore(t)
	parser := NewResponseParser(store)

	parser.Parse(&models.AggregatorResponse{
		Records: []models.AggregatorRecord{
			{
				RecordType: models.RecordTypeEntity,
				EntityType: models.TypeSport,
				Entity:     json.RawMessage(`{"id":"s1","name":"Football"}`),
			},
			{
				RecordType: models.RecordTypeEntity,
				EntityType: models.TypeMatch,
				Entity:     json.RawMessage(`{"id":"m1","sportId":"s1","name":"A vs B"}`),
			},
			{
				RecordType: models.RecordTypeEntity,
				EntityType: models.TypeMatch,
				Entity:     json.RawMessage(`{"id":"m2","sportId":"s1","name":"C vs D"}`),
			},
		},
	})

	if store.Get(models.TypeSport, "s1") == nil {
		t.Error("Expected sport s1 to be stored")
	}
	ordered := store.GetAllInOrder(models.TypeMatch)
	if len(ordered) != 2 || ordered[0].EntityID() != "m1" || ordered[1].EntityID() != "m2" {
		t.Errorf("Expected matches stored in record order, got %v", ordered)
	}
}

func TestParseSkipsMalformedAndUnknownRecords(t *testing.T) {
	store := newTestStore(t)
	parser := NewResponseParser(store)

	parser.Parse(&models.AggregatorResponse{
		Records: []models.AggregatorRecord{
			{
				RecordType: models.RecordTypeEntity,
				EntityType: "WIDGET",
				Entity:     json.RawMessage(`{"id":"w1"}`),
			},
			{
				RecordType: models.RecordTypeEntity,
				EntityType: models.TypeSport,
				Entity:     json.RawMessage(`not json`),
			},
			{
				RecordType: "UNKNOWN_RECORD",
			},
			{
				RecordType: models.RecordTypeEntity,
				EntityType: models.TypeSport,
				Entity:     json.RawMessage(`{"id":"s1","name":"Tennis"}`),
			},
		},
	})

	// 坏记录不中断后续处理
	if store.Get(models.TypeSport, "s1") == nil {
		t.Error("Expected valid record after malformed ones to be stored")
	}
}

func TestParseAppliesBettingOfferOddsUpdate(t *testing.T) {
	store := newTestStore(t)
	parser := NewResponseParser(store)

	store.Store(models.BettingOffer{ID: "bo1", OutcomeID: "o1", Odds: 1.5})

	parser.Parse(&models.AggregatorResponse{
		Records: []models.AggregatorRecord{
			{
				RecordType: models.RecordTypeChange,
				Change: &models.ChangeRecord{
					EntityType: models.TypeBettingOffer,
					ID:         "bo1",
					ChangeType: models.ChangeTypeUpdate,
					ChangedProperties: map[string]json.RawMessage{
						"odds": json.RawMessage("2.25"),
					},
				},
			},
		},
	})

	offer := store.Get(models.TypeBettingOffer, "bo1").(models.BettingOffer)
	if offer.Odds != 2.25 {
		t.Errorf("Expected odds updated to 2.25, got %v", offer.Odds)
	}
	if offer.OutcomeID != "o1" {
		t.Error("Expected untouched fields to survive the update")
	}
}

func TestParseIgnoresUpdateWithoutOdds(t *testing.T) {
	store := newTestStore(t)
	parser := NewResponseParser(store)

	store.Store(models.BettingOffer{ID: "bo1", Status: "OPEN"})

	parser.Parse(&models.AggregatorResponse{
		Records: []models.AggregatorRecord{
			{
				RecordType: models.RecordTypeChange,
				Change: &models.ChangeRecord{
					EntityType: models.TypeBettingOffer,
					ID:         "bo1",
					ChangeType: models.ChangeTypeUpdate,
					ChangedProperties: map[string]json.RawMessage{
						"status": json.RawMessage(`"SUSPENDED"`),
					},
				},
			},
		},
	})

	offer := store.Get(models.TypeBettingOffer, "bo1").(models.BettingOffer)
	if offer.Status != "OPEN" {
		t.Errorf("Expected update without odds to be discarded, got status %q", offer.Status)
	}
}

func TestParseIgnoresNonBettingOfferUpdate(t *testing.T) {
	store := newTestStore(t)
	parser := NewResponseParser(store)

	store.Store(models.Outcome{ID: "o1", Name: "Home"})

	parser.Parse(&models.AggregatorResponse{
		Records: []models.AggregatorRecord{
			{
				RecordType: models.RecordTypeChange,
				Change: &models.ChangeRecord{
					EntityType: models.TypeOutcome,
					ID:         "o1",
					ChangeType: models.ChangeTypeUpdate,
					ChangedProperties: map[string]json.RawMessage{
						"odds": json.RawMessage("2.0"),
						"name": json.RawMessage(`"Away"`),
					},
				},
			},
		},
	})

	outcome := store.Get(models.TypeOutcome, "o1").(models.Outcome)
	if outcome.Name != "Home" {
		t.Errorf("Expected non betting offer update to be discarded, got name %q", outcome.Name)
	}
}

func TestParseDiscardsCreateAndDelete(t *testing.T) {
	store := newTestStore(t)
	parser := NewResponseParser(store)

	store.Store(models.BettingOffer{ID: "bo1", Odds: 1.8})

	parser.Parse(&models.AggregatorResponse{
		Records: []models.AggregatorRecord{
			{
				RecordType: models.RecordTypeChange,
				Change: &models.ChangeRecord{
					EntityType: models.TypeBettingOffer,
					ID:         "bo2",
					ChangeType: models.ChangeTypeCreate,
					Entity:     json.RawMessage(`{"id":"bo2","odds":3.0}`),
				},
			},
			{
				RecordType: models.RecordTypeChange,
				Change: &models.ChangeRecord{
					EntityType: models.TypeBettingOffer,
					ID:         "bo1",
					ChangeType: models.ChangeTypeDelete,
				},
			},
		},
	})

	if store.Get(models.TypeBettingOffer, "bo2") != nil {
		t.Error("Expected create record to be discarded")
	}
	if store.Get(models.TypeBettingOffer, "bo1") == nil {
		t.Error("Expected delete record to be discarded")
	}
}

func TestParseHandlesNilAndEmptyResponses(t *testing.T) {
	store := newTestStore(t)
	parser := NewResponseParser(store)

	parser.Parse(nil)
	parser.Parse(&models.AggregatorResponse{})
	parser.Parse(&models.AggregatorResponse{
		Records: []models.AggregatorRecord{
			{RecordType: models.RecordTypeChange, Change: nil},
			{
				RecordType: models.RecordTypeChange,
				Change: &models.ChangeRecord{
					EntityType: models.TypeBettingOffer,
					ID:         "bo1",
					ChangeType: "MUTATE",
				},
			},
		},
	})
}
