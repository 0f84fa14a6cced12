package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardlens/backend/internal/model"
)

func TestCSVParserSingleAmountColumn(t *testing.T) {
	data := []byte(`Date,Description,Amount,Category
2024-01-15,"Woolworths, Sydney",123.45,Food
2024-01-16,Uber Trip,34.20,
2024-01-17,Refund,-45.00,Other
`)

	p := &CSVParser{}
	txs, err := p.Parse(data)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, "Woolworths, Sydney", txs[0].Merchant)
	assert.Equal(t, model.CategoryFood, txs[0].Category)
	// Empty category falls back to the merchant normalizer
	assert.Equal(t, model.CategoryTransport, txs[1].Category)
	assert.InDelta(t, -45.00, txs[2].Amount, 0.001)
}

func TestCSVParserDebitCreditColumns(t *testing.T) {
	data := []byte(`Date,Details,Debit,Credit
15/01/2024,Coffee Shop,4.50,
16/01/2024,Salary Refund,,120.00
`)

	p := &CSVParser{}
	txs, err := p.Parse(data)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.InDelta(t, 4.50, txs[0].Amount, 0.001)
	assert.InDelta(t, -120.00, txs[1].Amount, 0.001)
}

func TestCSVParserMissingColumns(t *testing.T) {
	p := &CSVParser{}
	_, err := p.Parse([]byte("foo,bar\n1,2\n"))
	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, ErrInvalidDocument, extErr.Code)
}

func TestCSVParserSkipsBadRows(t *testing.T) {
	data := []byte(`Date,Description,Amount
not-a-date,Mystery,10.00
2024-01-15,Cafe,5.00
`)
	p := &CSVParser{}
	txs, err := p.Parse(data)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Cafe", txs[0].Merchant)
}
