// Package seed generates realistic historical events for local dashboards.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/telemetrytaco/telemetry-pipeline/internal/models"
)

// Event name weights: page_view (60%), button_click (30%),
// checkout_success (5%), error (5%).
var (
	eventNames   = []string{"page_view", "button_click", "checkout_success", "error"}
	eventWeights = []float64{0.6, 0.3, 0.05, 0.05}
)

// Generate produces count events with timestamps spread over the last 24
// hours and a pooled set of distinct ids (~40 events per user on average).
func Generate(count int, now time.Time) []models.Event {
	numUsers := count / 40
	if numUsers < 50 {
		numUsers = 50
	}
	distinctIDs := make([]string, numUsers)
	for i := range distinctIDs {
		distinctIDs[i] = uuid.NewString()
	}

	start := now.Add(-24 * time.Hour)
	events := make([]models.Event, count)
	for i := range events {
		name := weightedName()
		ts := start.Add(time.Duration(rand.Int63n(24*60*60)) * time.Second)
		events[i] = models.Event{
			ID:         uuid.New(),
			DistinctID: distinctIDs[rand.Intn(numUsers)],
			EventName:  name,
			Properties: properties(name),
			ReceivedAt: ts.UTC(),
		}
	}
	return events
}

func weightedName() string {
	r := rand.Float64()
	acc := 0.0
	for i, w := range eventWeights {
		acc += w
		if r < acc {
			return eventNames[i]
		}
	}
	return eventNames[len(eventNames)-1]
}

func properties(eventName string) map[string]interface{} {
	switch eventName {
	case "page_view":
		return map[string]interface{}{
			"path":            fmt.Sprintf("/page/%d", rand.Intn(40)),
			"referrer":        pick("google.com", "twitter.com", "direct", ""),
			"viewport_width":  320 + rand.Intn(2240),
			"viewport_height": 568 + rand.Intn(872),
		}
	case "button_click":
		return map[string]interface{}{
			"button_id": pick("signup", "checkout", "search", "menu"),
			"page_path": fmt.Sprintf("/page/%d", rand.Intn(40)),
		}
	case "checkout_success":
		return map[string]interface{}{
			"order_id":       uuid.NewString(),
			"total_amount":   float64(1000+rand.Intn(49000)) / 100,
			"currency":       "USD",
			"items_count":    1 + rand.Intn(10),
			"payment_method": pick("credit_card", "paypal", "apple_pay"),
		}
	case "error":
		return map[string]interface{}{
			"error_type":  pick("TypeError", "ReferenceError", "NetworkError", "ValidationError"),
			"page_path":   fmt.Sprintf("/page/%d", rand.Intn(40)),
			"line_number": 1 + rand.Intn(1000),
		}
	default:
		return map[string]interface{}{}
	}
}

func pick(options ...string) string {
	return options[rand.Intn(len(options))]
}
