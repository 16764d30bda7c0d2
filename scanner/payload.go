// Package scanner turns raw QR scan events into validated table lookups.
package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// PayloadType is the only accepted value of the payload "type" field.
const PayloadType = "restaurant_table"

var ErrMalformedPayload = errors.New("malformed QR payload")

// Payload is the JSON document printed on a table's QR sticker.
type Payload struct {
	RestaurantID   string `json:"restaurantId"`
	RestaurantName string `json:"restaurantName"`
	TableNumber    int    `json:"tableNumber"`
	Type           string `json:"type"`
}

func NewPayload(restaurantID, restaurantName string, tableNumber int) Payload {
	return Payload{
		RestaurantID:   restaurantID,
		RestaurantName: restaurantName,
		TableNumber:    tableNumber,
		Type:           PayloadType,
	}
}

func (p Payload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode QR payload: %w", err)
	}
	return string(b), nil
}

type rawPayload struct {
	RestaurantID   *string  `json:"restaurantId"`
	RestaurantName *string  `json:"restaurantName"`
	TableNumber    *float64 `json:"tableNumber"`
	Type           *string  `json:"type"`
}

// ParsePayload decodes and validates a scanned string. Every failure wraps
// ErrMalformedPayload.
func ParsePayload(data string) (Payload, error) {
	var raw rawPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &raw); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.Type == nil || *raw.Type != PayloadType {
		return Payload{}, fmt.Errorf("%w: type must be %q", ErrMalformedPayload, PayloadType)
	}
	if raw.RestaurantID == nil || strings.TrimSpace(*raw.RestaurantID) == "" {
		return Payload{}, fmt.Errorf("%w: restaurantId is required", ErrMalformedPayload)
	}
	if raw.TableNumber == nil {
		return Payload{}, fmt.Errorf("%w: tableNumber is required", ErrMalformedPayload)
	}
	n := *raw.TableNumber
	if n <= 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return Payload{}, fmt.Errorf("%w: tableNumber must be a positive integer", ErrMalformedPayload)
	}

	p := Payload{
		RestaurantID: strings.TrimSpace(*raw.RestaurantID),
		TableNumber:  int(n),
		Type:         PayloadType,
	}
	if raw.RestaurantName != nil {
		p.RestaurantName = *raw.RestaurantName
	}
	return p, nil
}
