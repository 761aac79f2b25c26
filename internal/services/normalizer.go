package services

import (
	"encoding/json"
	"math"

	"github.com/dropvault/backend/internal/models"
	"github.com/dropvault/backend/internal/types"
	"github.com/shopspring/decimal"
)

// timestampExtractor tries one encoding of a record timestamp
type timestampExtractor func(v any) (int64, bool)

// timestampExtractors are tried in order; the first match wins
var timestampExtractors = []timestampExtractor{
	epochMillis,
	millisConverter,
	secondsField,
}

// Normalize converts a stored transaction record of any historical shape
// into the canonical Transaction. Only identity fields and the amount are
// validated; an unreadable timestamp becomes 0.
func Normalize(raw models.RawRecord, id string) (models.Transaction, error) {
	userID, ok := raw["userId"].(string)
	if !ok || userID == "" {
		return models.Transaction{}, types.Errorf(types.ErrValidation, "record %s: userId is required", id)
	}

	rawType, ok := raw["type"].(string)
	if !ok || rawType == "" {
		return models.Transaction{}, types.Errorf(types.ErrValidation, "record %s: type is required", id)
	}

	var amount float64
	if v, present := raw["amount"]; present && v != nil {
		amount, ok = finiteNumber(v)
		if !ok {
			return models.Transaction{}, types.Errorf(types.ErrValidation, "record %s: amount must be a finite number", id)
		}
	}

	tsValue, present := raw["timestamp"]
	if !present || tsValue == nil {
		tsValue = raw["createdAt"]
	}

	description, _ := raw["description"].(string)
	if description == "" {
		description = rawType
	}

	tx := models.Transaction{
		ID:            id,
		UserID:        userID,
		Amount:        amount,
		Type:          coerceEntryType(rawType),
		RelatedDropID: firstString(raw, "relatedDropId", "relatedContentId", "dropId"),
		Description:   description,
		Timestamp:     resolveTimestamp(tsValue),
	}
	if cost, ok := finiteNumber(raw["cost"]); ok {
		tx.Cost = &cost
	}
	tx.Currency, _ = raw["currency"].(string)
	return tx, nil
}

// RevenueCents is the revenue a transaction contributes, in cents. Only
// purchases with a known cost count.
func RevenueCents(tx models.Transaction) int64 {
	if tx.Type != models.EntryTypePurchaseCurrency || tx.Cost == nil {
		return 0
	}
	cost := *tx.Cost
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0
	}
	return decimal.NewFromFloat(cost).Shift(2).Round(0).IntPart()
}

// EntryRecord projects a ledger entry into the stored record shape so that
// current and legacy history go through the same normalization.
func EntryRecord(entry *models.LedgerEntry) models.RawRecord {
	record := models.RawRecord{
		"userId":      entry.UserID,
		"amount":      entry.Amount,
		"type":        string(entry.Type),
		"description": entry.Description,
		"timestamp":   entry.Timestamp,
	}
	if entry.RelatedContentID != "" {
		record["relatedContentId"] = entry.RelatedContentID
	}
	return record
}

func coerceEntryType(raw string) models.EntryType {
	if raw == "purchase" {
		return models.EntryTypePurchaseCurrency
	}
	if t := models.EntryType(raw); t.Valid() {
		return t
	}
	return models.EntryTypeAdminAdjustment
}

func resolveTimestamp(v any) int64 {
	if v == nil {
		return 0
	}
	for _, extract := range timestampExtractors {
		if ms, ok := extract(v); ok {
			return ms
		}
	}
	return 0
}

func epochMillis(v any) (int64, bool) {
	if n, ok := v.(json.Number); ok {
		if ms, err := n.Int64(); err == nil {
			return ms, true
		}
	}
	f, ok := finiteNumber(v)
	if !ok || !fitsInt64(f) {
		return 0, false
	}
	return int64(f), true
}

func millisConverter(v any) (int64, bool) {
	switch t := v.(type) {
	case interface{ UnixMilli() int64 }:
		return t.UnixMilli(), true
	case interface{ ToMillis() int64 }:
		return t.ToMillis(), true
	}
	return 0, false
}

func secondsField(v any) (int64, bool) {
	fields, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	for _, key := range []string{"seconds", "_seconds"} {
		secs, ok := finiteNumber(fields[key])
		if ok && secs == math.Trunc(secs) && fitsInt64(secs*1000) {
			return int64(secs * 1000), true
		}
	}
	return 0, false
}

// fitsInt64 reports whether f converts to int64 without overflow
func fitsInt64(f float64) bool {
	return f >= math.MinInt64 && f < math.MaxInt64
}

func finiteNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func firstString(raw models.RawRecord, keys ...string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
