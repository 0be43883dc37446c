package mapper

import (
	"strconv"
	"strings"

	logger "github.com/sirupsen/logrus"

	"orderrouter/src/model"
)

// orderTypeSynonyms normalizes UI/router variants to the Dhan API enums.
// Dhan accepts: LIMIT, MARKET, STOP_LOSS, STOP_LOSS_MARKET.
var orderTypeSynonyms = map[string]string{
	"LIMIT": model.OrderTypeLimit,
	"LMT":   model.OrderTypeLimit,

	"MARKET": model.OrderTypeMarket,
	"MKT":    model.OrderTypeMarket,

	"STOPLOSS":        model.OrderTypeStopLoss,
	"STOP_LOSS":       model.OrderTypeStopLoss,
	"STOP_LOSS_LIMIT": model.OrderTypeStopLoss,
	"SL":              model.OrderTypeStopLoss,
	"SL_LIMIT":        model.OrderTypeStopLoss,

	"SLM":              model.OrderTypeStopLossMarket,
	"SL_M":             model.OrderTypeStopLossMarket,
	"SL_MARKET":        model.OrderTypeStopLossMarket,
	"STOP_LOSS_MARKET": model.OrderTypeStopLossMarket,
	"STOPLOSS_MARKET":  model.OrderTypeStopLossMarket,
}

// NormalizeOrderType maps any order-type spelling to a canonical Dhan enum.
// Unrecognized input is upper-cased and passed through unchanged so the
// broker rejects it instead of the gateway guessing.
func NormalizeOrderType(s string) string {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if canonical, ok := orderTypeSynonyms[key]; ok {
		return canonical
	}
	return key
}

// NeedsPrice reports whether the given order type requires a positive price.
func NeedsPrice(orderType string) bool {
	switch NormalizeOrderType(orderType) {
	case model.OrderTypeLimit, model.OrderTypeStopLoss:
		return true
	}
	return false
}

// NeedsTrigger reports whether the given order type requires a positive
// trigger price.
func NeedsTrigger(orderType string) bool {
	switch NormalizeOrderType(orderType) {
	case model.OrderTypeStopLoss, model.OrderTypeStopLossMarket:
		return true
	}
	return false
}

// StatusBucket classifies a broker free-text order status into one of the
// canonical buckets by case-insensitive substring match.
func StatusBucket(rawStatus string) string {
	s := strings.ToLower(strings.TrimSpace(rawStatus))
	switch {
	case strings.Contains(s, "pend"):
		return model.BucketPending
	case strings.Contains(s, "trade") || s == "executed":
		return model.BucketTraded
	case strings.Contains(s, "reject") || strings.Contains(s, "error"):
		return model.BucketRejected
	case strings.Contains(s, "cancel"):
		return model.BucketCancelled
	default:
		return model.BucketOthers
	}
}

// exchangeSegments maps UI exchange names to Dhan exchange segments.
var exchangeSegments = map[string]string{
	"NSE":    "NSE_EQ",
	"BSE":    "BSE_EQ",
	"NSEFO":  "NSE_FNO",
	"NSE_FO": "NSE_FNO",
	"NSECD":  "NSE_CURRENCY",
	"MCX":    "MCX_COMM",
	"BSEFO":  "BSE_FNO",
	"BSECD":  "BSE_CURRENCY",
	"NCDEX":  "NCDEX",
}

// productTypes maps UI product names to Dhan product types.
var productTypes = map[string]string{
	"INTRADAY":  "INTRADAY",
	"MIS":       "INTRADAY",
	"DELIVERY":  "CNC",
	"CNC":       "CNC",
	"NORMAL":    "MARGIN",
	"NRML":      "MARGIN",
	"VALUEPLUS": "INTRADAY",
	"MTF":       "MTF",
}

// MapExchangeSegment maps a UI exchange name to the Dhan segment, passing
// unknown values through unchanged.
func MapExchangeSegment(exchange string) string {
	key := strings.ToUpper(strings.TrimSpace(exchange))
	if key == "" {
		key = "NSE"
	}
	if seg, ok := exchangeSegments[key]; ok {
		return seg
	}
	return key
}

// MapProductType maps a UI product name to the Dhan product type, passing
// unknown values through unchanged.
func MapProductType(product string) string {
	key := strings.ToUpper(strings.TrimSpace(product))
	if mapped, ok := productTypes[key]; ok {
		return mapped
	}
	return key
}

// fieldAliases maps each canonical holdings/funds field to the source keys
// the broker has been observed to use, in priority order. Applied uniformly
// instead of per-field conditional probing so the normalization stays
// exhaustive and testable.
var fieldAliases = map[string][]string{
	"symbol":                {"tradingSymbol"},
	"quantity":              {"availableQty", "totalQty"},
	"buy_avg":               {"avgCostPrice"},
	"ltp":                   {"lastTradedPrice", "LTP", "ltp", "lastprice"},
	"available_balance":     {"availabelBalance", "availableBalance"},
	"withdrawable_balance":  {"withdrawableBalance"},
	"utilized_amount":       {"utilizedAmount"},
	"sod_limit":             {"sodLimit"},
	"collateral_amount":     {"collateralAmount"},
	"receivable_amount":     {"receivableAmount", "receiveableAmount"},
	"blocked_payout_amount": {"blockedPayoutAmount"},
}

// FloatField resolves a canonical field from a raw broker payload via the
// alias table. Unparseable or absent values default to 0.
func FloatField(row map[string]interface{}, canonical string) float64 {
	for _, key := range fieldAliases[canonical] {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			logger.WithFields(map[string]interface{}{
				"field": canonical,
				"key":   key,
				"value": v,
			}).Error("Failed to parse numeric field from Dhan payload; defaulting to 0")
			return 0
		}
		return f
	}
	return 0
}

// StringField resolves a canonical string field via the alias table.
func StringField(row map[string]interface{}, canonical string) string {
	for _, key := range fieldAliases[canonical] {
		if v, ok := row[key]; ok && v != nil {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// inferOrderType resolves the modify-order type when the caller supplied
// price and/or trigger without an explicit type. Exactly four cases:
// trigger+price is a stop-loss limit, trigger alone a stop-loss market,
// price alone a limit, neither a market.
func inferOrderType(price, trigger float64) string {
	hasPrice := price != 0
	hasTrigger := trigger != 0
	switch {
	case hasTrigger && hasPrice:
		return model.OrderTypeStopLoss
	case hasTrigger:
		return model.OrderTypeStopLossMarket
	case hasPrice:
		return model.OrderTypeLimit
	default:
		return model.OrderTypeMarket
	}
}

// BuildModifyPayload builds the Dhan modify-order wire payload. When the
// caller supplies neither an explicit order type nor a price/trigger, the
// orderType key is omitted entirely so the broker preserves the existing
// order's type. disclosedQuantity is always numeric 0, never blank.
func BuildModifyPayload(row model.ModifyInstruction, accountID string) map[string]interface{} {
	explicit := strings.ToUpper(strings.TrimSpace(row.OrderType))
	explicit = strings.ReplaceAll(explicit, "-", "_")
	if explicit == "NO_CHANGE" {
		explicit = ""
	}

	orderType := ""
	if explicit != "" {
		orderType = NormalizeOrderType(explicit)
	} else if row.Price != 0 || row.TriggerPrice != 0 {
		orderType = inferOrderType(row.Price, row.TriggerPrice)
	}

	validity := strings.ToUpper(strings.TrimSpace(row.Validity))
	if validity == "" {
		validity = "DAY"
	}

	payload := map[string]interface{}{
		"dhanClientId":      accountID,
		"orderId":           strings.TrimSpace(row.OrderID),
		"validity":          validity,
		"disclosedQuantity": 0,
	}

	if orderType != "" {
		payload["orderType"] = orderType
	}
	if row.Quantity > 0 {
		payload["quantity"] = row.Quantity
	}
	if row.Price != 0 {
		payload["price"] = row.Price
	}
	if row.TriggerPrice != 0 {
		payload["triggerPrice"] = row.TriggerPrice
	}
	if leg := strings.TrimSpace(row.LegName); leg != "" {
		payload["legName"] = leg
	}

	return payload
}
