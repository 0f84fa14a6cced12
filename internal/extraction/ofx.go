package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/cardlens/backend/internal/model"
)

// OFXParser parses OFX/QFX statement exports. These carry structured
// transaction data, so no model call is needed.
type OFXParser struct{}

var (
	severityRe = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagRe  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes common formatting issues in SGML-style OFX files.
func (p *OFXParser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityRe.ReplaceAllStringFunc(content, strings.ToUpper)
	// Repair opening tags missing their closing bracket
	content = openTagRe.ReplaceAllString(content, "$1>")
	return content
}

// Parse extracts transactions from OFX data. Both bank and credit card
// statement blocks are read.
func (p *OFXParser) Parse(data []byte) ([]model.Transaction, error) {
	processed := p.preprocessOFX(string(data))

	resp, err := ofxgo.ParseResponse(strings.NewReader(processed))
	if err != nil {
		return nil, newError(ErrInvalidDocument, "Could not parse OFX file.", "ofx", false, err)
	}

	var txs []model.Transaction
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			for _, ofxTx := range stmt.BankTranList.Transactions {
				txs = append(txs, p.convert(ofxTx))
			}
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			for _, ofxTx := range stmt.BankTranList.Transactions {
				txs = append(txs, p.convert(ofxTx))
			}
		}
	}

	if len(txs) == 0 {
		return nil, newError(ErrNoTransactionsFound, detailNoTransactions, "ofx", false, nil)
	}
	return txs, nil
}

// convert maps an OFX transaction to the analyzer's model. OFX amounts are
// negative for money out, so the sign flips.
func (p *OFXParser) convert(ofxTx ofxgo.Transaction) model.Transaction {
	amountFloat, _ := ofxTx.TrnAmt.Float64()

	name := p.merchantName(ofxTx)
	info := NormalizeMerchant(name)

	category := info.Category
	switch fmt.Sprintf("%v", ofxTx.TrnType) {
	case "INT", "FEE":
		category = model.CategoryOther
	}

	return model.Transaction{
		Date:     ofxTx.DtPosted.Time.Format(model.DateLayout),
		Merchant: info.Name,
		Amount:   -amountFloat,
		Category: category,
	}
}

// merchantName picks the cleanest available description field.
func (p *OFXParser) merchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}
	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && isGenericDescription(name) {
		name = strings.TrimSpace(string(tx.Memo))
	}
	return name
}

// isGenericDescription checks if a transaction name is too generic to be a
// merchant.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
