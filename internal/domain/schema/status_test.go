package schema

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestStatusStyleTable(t *testing.T) {
	require.Len(t, AllStatuses, 5)
	for _, status := range AllStatuses {
		style := StatusStyleOf(status)
		require.NotEmpty(t, style.Label, status)
		require.NotEmpty(t, style.Color, status)
		require.NotEmpty(t, style.Icon, status)
	}
	require.Equal(t, "Entregado", StatusDelivered.Style().Label)
	require.Equal(t, "#B91C1C", StatusCancelled.Style().Color)
}

func TestStatusStyleFallsBackToPending(t *testing.T) {
	require.Equal(t, StatusStyleOf(StatusPending), StatusStyleOf(""))
	require.Equal(t, StatusStyleOf(StatusPending), StatusStyleOf("lost"))
}

func TestParseStatus(t *testing.T) {
	status, ok := ParseStatus("  Delivered ")
	require.True(t, ok)
	require.Equal(t, StatusDelivered, status)

	_, ok = ParseStatus("returned")
	require.False(t, ok)
}

func TestTerminalStatus(t *testing.T) {
	for _, status := range AllStatuses {
		require.Equal(t, status == StatusCancelled, status.Terminal(), status)
	}
}

func TestCatalogTitleFallsBackToRefID(t *testing.T) {
	var products []Product
	require.NoError(t, json.Unmarshal([]byte(`[
		{"refid": 10, "descripción": "Cuaderno A4", "precio": 150, "stock": 3, "activo": true},
		{"refid": "11", "descripción": ""},
		{"refid": 10, "descripción": "Cuaderno A4 rayado"}
	]`), &products))

	catalog := NewCatalog(products)
	require.Equal(t, "Cuaderno A4 rayado", catalog.Title("10"))
	require.Equal(t, "11", catalog.Title("11"))
	require.Equal(t, "99", catalog.Title("99"))
	require.Equal(t, "", catalog.Title(""))
}
