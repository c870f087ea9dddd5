package s3blob

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywatch/engine/internal/domain"
)

type stubLedger struct {
	domain.Ledger
	rows []domain.TradeRow
}

func (s *stubLedger) QueryTrades(context.Context, domain.TradeFilter) ([]domain.TradeRow, error) {
	return s.rows, nil
}

type captureUploader struct {
	key         string
	contentType string
	body        string
	calls       int
}

func (c *captureUploader) Put(_ context.Context, key string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	c.key = key
	c.contentType = contentType
	c.body = string(body)
	c.calls++
	return nil
}

func TestArchiveOnce(t *testing.T) {
	ledger := &stubLedger{rows: []domain.TradeRow{
		{Trade: domain.Trade{TransactionHash: "0x1", ProxyWallet: "0xa", Side: domain.SideBuy, Amount: 90}},
	}}
	uploader := &captureUploader{}

	a := NewArchiver(ledger, uploader, "0xmarket", time.Hour, slog.New(slog.DiscardHandler))
	require.NoError(t, a.ArchiveOnce(context.Background()))

	assert.Equal(t, 1, uploader.calls)
	assert.Equal(t, "text/csv", uploader.contentType)
	assert.True(t, strings.HasPrefix(uploader.key, "archive/trades/0xmarket/"))
	assert.True(t, strings.HasSuffix(uploader.key, ".csv"))
	assert.Contains(t, uploader.body, "transaction_hash")
	assert.Contains(t, uploader.body, "0x1")
}

func TestArchiveOnceSkipsEmptyLedger(t *testing.T) {
	uploader := &captureUploader{}

	a := NewArchiver(&stubLedger{}, uploader, "0xmarket", time.Hour, slog.New(slog.DiscardHandler))
	require.NoError(t, a.ArchiveOnce(context.Background()))

	assert.Zero(t, uploader.calls)
}

func TestObjectKeyIsUnique(t *testing.T) {
	a := NewArchiver(&stubLedger{}, &captureUploader{}, "0xmarket", time.Hour, slog.New(slog.DiscardHandler))

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	k1 := a.objectKey(now)
	k2 := a.objectKey(now)
	assert.NotEqual(t, k1, k2)
	assert.Contains(t, k1, "20250101T000000Z")
}
