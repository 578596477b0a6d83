// Package travel extracts structured hotel and tour data from retrieved
// evidence for API consumers that render cards alongside the reply.
package travel

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tuananhhust05/chatbot-visitrome/internal/evidence"
)

// Hotel is a bookable accommodation offer.
type Hotel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Price   string `json:"price,omitempty"`
}

// Tour is a bookable activity offer.
type Tour struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Provider string  `json:"provider,omitempty"`
	Price    string  `json:"price,omitempty"`
	Duration float64 `json:"duration_hours,omitempty"`
}

// Data is the structured payload extracted from one turn's evidence.
type Data struct {
	Hotels             []Hotel `json:"hotels"`
	Tours              []Tour  `json:"tours"`
	TotalDurationHours float64 `json:"total_duration_hours"`
}

// Extract pulls hotel and tour records out of evidence items whose content
// is a JSON payload. Non-JSON content is skipped; duplicates within a
// category (same id) are dropped, first occurrence wins.
func Extract(items []evidence.Item) Data {
	data := Data{Hotels: []Hotel{}, Tours: []Tour{}}
	seen := make(map[string]struct{})

	for _, item := range items {
		payload, ok := decodePayload(item.Content)
		if !ok {
			continue
		}

		category := item.Metadata.SourceCategory
		id := firstString(payload, "id", "hotel_id", "tour_id")
		if id == "" {
			id = item.Metadata.SourceID
		}
		key := category + "/" + id
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		switch category {
		case "hotels":
			data.Hotels = append(data.Hotels, Hotel{
				ID:      id,
				Name:    firstString(payload, "name", "hotel_name"),
				Address: firstString(payload, "address", "location"),
				Price:   firstString(payload, "price", "price_per_night"),
			})
		case "tours":
			tour := Tour{
				ID:       id,
				Name:     firstString(payload, "name", "tour_name", "title"),
				Provider: providerName(payload),
				Price:    firstString(payload, "price"),
				Duration: durationHours(payload),
			}
			data.Tours = append(data.Tours, tour)
			data.TotalDurationHours += tour.Duration
		}
	}

	return data
}

// decodePayload parses content as a JSON object, unwrapping one level of
// string encoding when the object itself arrives JSON-quoted.
func decodePayload(content string) (map[string]any, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err == nil {
		return payload, true
	}

	var quoted string
	if err := json.Unmarshal([]byte(content), &quoted); err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(quoted), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// firstString returns the first present key rendered as a string.
// Numbers are formatted without a trailing ".0" for whole values.
func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10)
			}
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// providerName handles both a plain string and a nested {"name": ...} map.
func providerName(payload map[string]any) string {
	switch v := payload["provider"].(type) {
	case string:
		return v
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			return name
		}
	}
	return ""
}

// durationHours reads a duration as a number or a numeric string.
// Unparseable values count as zero rather than failing extraction.
func durationHours(payload map[string]any) float64 {
	for _, key := range []string{"duration_hours", "duration"} {
		switch v := payload[key].(type) {
		case float64:
			return v
		case string:
			trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "h"))
			if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
				return f
			}
		}
	}
	return 0
}
