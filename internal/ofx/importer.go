// Package ofx turns OFX/QFX bank and credit card statements into ledger
// transactions.
package ofx

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"financas/internal/core"
)

const maxDescriptionLen = 200

var (
	severityRe   = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)`)
	blankSpaceRe = regexp.MustCompile(`\s+`)
)

// Options assigns categories to imported lines by direction.
type Options struct {
	IncomeCategoryID  *int64
	ExpenseCategoryID *int64
}

// Parse reads a statement and returns one transaction per STMTTRN. Debits
// become expenses and credits income; zero and out of range amounts are
// skipped. The external ID combines account and FITID so re-importing a file
// is idempotent.
func Parse(r io.Reader, opts Options) ([]core.Transaction, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("parse OFX file: %w", err)
	}

	var out []core.Transaction
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		out = appendStatement(out, string(stmt.BankAcctFrom.AcctID), stmt.BankTranList.Transactions, opts)
	}
	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		out = appendStatement(out, string(stmt.CCAcctFrom.AcctID), stmt.BankTranList.Transactions, opts)
	}

	slog.Info("Parsed OFX file", "transactions", len(out), "bank_statements", len(resp.Bank), "cc_statements", len(resp.CreditCard))
	return out, nil
}

func appendStatement(out []core.Transaction, account string, lines []ofxgo.Transaction, opts Options) []core.Transaction {
	for _, line := range lines {
		tx, ok := convert(account, line, opts)
		if !ok {
			slog.Debug("Skipping zero or out of range OFX line", "fitid", string(line.FiTID))
			continue
		}
		out = append(out, tx)
	}
	return out
}

func convert(account string, line ofxgo.Transaction, opts Options) (core.Transaction, bool) {
	amount, err := decimal.NewFromString(line.TrnAmt.FloatString(4))
	if err != nil || amount.IsZero() {
		return core.Transaction{}, false
	}
	cents, err := core.MoneyFromDecimal(amount.Abs())
	if err != nil {
		return core.Transaction{}, false
	}

	tx := core.Transaction{
		Description: description(line),
		Amount:      cents,
		Type:        core.Income,
		CategoryID:  opts.IncomeCategoryID,
		ExternalID:  account + ":" + string(line.FiTID),
	}
	if amount.IsNegative() {
		tx.Type = core.Expense
		tx.CategoryID = opts.ExpenseCategoryID
	}

	y, m, d := line.DtPosted.Time.Date()
	tx.Date = core.NewDate(y, int(m), d)
	return tx, true
}

// description prefers the payee, then NAME, then MEMO, then the TRNTYPE.
func description(line ofxgo.Transaction) string {
	var candidates []string
	if line.Payee != nil {
		candidates = append(candidates, string(line.Payee.Name))
	}
	candidates = append(candidates, string(line.Name), string(line.Memo))
	if line.TrnType.Valid() {
		candidates = append(candidates, line.TrnType.String())
	}

	for _, c := range candidates {
		c = strings.TrimSpace(blankSpaceRe.ReplaceAllString(c, " "))
		if c != "" {
			return truncate(c, maxDescriptionLen)
		}
	}
	return "OFX transaction"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// preprocess repairs the SGML quirks banks commonly ship.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n\ufeff")
	return severityRe.ReplaceAllStringFunc(content, strings.ToUpper)
}
