package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/engine/internal/domain"
)

func TestWriteCSV(t *testing.T) {
	rows := []domain.TradeRow{
		{
			Trade: domain.Trade{
				TransactionHash: "0x1",
				MarketID:        "0xm",
				TokenID:         "tok",
				ProxyWallet:     "0xa",
				Side:            domain.SideBuy,
				Price:           0.45,
				Size:            200,
				Amount:          90,
				Outcome:         "Yes",
				MarketTitle:     "Will it happen?",
				MatchTime:       1735689600,
			},
			TraderName: "alice",
		},
		{
			Trade: domain.Trade{
				TransactionHash: "0x2",
				ProxyWallet:     "0xb",
				Side:            domain.SideSell,
				Price:           0.7,
				Size:            5,
				Amount:          3.5,
				MatchTime:       1735689660,
			},
			TraderPseudonym: "Brave-Falcon",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "transaction_hash", records[0][0])
	assert.Equal(t, []string{
		"0x1", "2025-01-01T00:00:00Z", "0xm", "tok", "0xa", "alice",
		"BUY", "0.45", "200", "90", "Yes", "Will it happen?",
	}, records[1])
	// Pseudonym stands in when no name is set.
	assert.Equal(t, "Brave-Falcon", records[2][5])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1) // header only
}
