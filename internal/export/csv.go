// Package export renders ledger rows in tabular form for download and
// archival.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/polywatch/engine/internal/domain"
)

// csvHeader is the column order for every exported file.
var csvHeader = []string{
	"transaction_hash",
	"match_time",
	"market_id",
	"token_id",
	"proxy_wallet",
	"trader_name",
	"side",
	"price",
	"size",
	"amount",
	"outcome",
	"market_title",
}

// WriteCSV writes the rows as CSV, header first. The row set mirrors what
// the trades query returns under the same filter.
func WriteCSV(w io.Writer, rows []domain.TradeRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for i := range rows {
		r := &rows[i]
		name := r.TraderName
		if name == "" {
			name = r.TraderPseudonym
		}

		record := []string{
			r.TransactionHash,
			time.Unix(r.MatchTime, 0).UTC().Format(time.RFC3339),
			r.MarketID,
			r.TokenID,
			r.ProxyWallet,
			name,
			string(r.Side),
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			strconv.FormatFloat(r.Size, 'f', -1, 64),
			strconv.FormatFloat(r.Amount, 'f', -1, 64),
			r.Outcome,
			r.MarketTitle,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export: write row %s: %w", r.TransactionHash, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}
