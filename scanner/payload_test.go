package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload_Valid(t *testing.T) {
	p, err := ParsePayload(`{"restaurantId":"resto-1","restaurantName":"Warung","tableNumber":7,"type":"restaurant_table"}`)
	require.NoError(t, err)
	assert.Equal(t, "resto-1", p.RestaurantID)
	assert.Equal(t, "Warung", p.RestaurantName)
	assert.Equal(t, 7, p.TableNumber)
}

func TestParsePayload_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":           `hello`,
		"wrong type":         `{"restaurantId":"r","tableNumber":1,"type":"menu_item"}`,
		"missing type":       `{"restaurantId":"r","tableNumber":1}`,
		"missing table":      `{"restaurantId":"r","type":"restaurant_table"}`,
		"zero table":         `{"restaurantId":"r","tableNumber":0,"type":"restaurant_table"}`,
		"fractional table":   `{"restaurantId":"r","tableNumber":1.5,"type":"restaurant_table"}`,
		"string table":       `{"restaurantId":"r","tableNumber":"3","type":"restaurant_table"}`,
		"empty restaurant":   `{"restaurantId":"  ","tableNumber":1,"type":"restaurant_table"}`,
		"missing restaurant": `{"tableNumber":1,"type":"restaurant_table"}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePayload(data)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestPayload_EncodeRoundTrip(t *testing.T) {
	encoded, err := NewPayload("resto-1", "Warung", 3).Encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, `"type":"restaurant_table"`)

	p, err := ParsePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, NewPayload("resto-1", "Warung", 3), p)
}
