package templates

import (
	"fmt"
	"html"
	"strings"
)

// Row is one label and value line of a table
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ReceiptData is what a payment receipt shows
type ReceiptData struct {
	Plate         string
	Reference     string
	InvoiceNumber string
	TaxYear       int
	Amount        string
	PaidAt        string
	BankName      string
}

// StatementData is what an account statement shows
type StatementData struct {
	OwnerName       string `json:"ownerName"`
	Plate           string `json:"plate"`
	Vehicle         string `json:"vehicle"`
	TaxYear         int    `json:"taxYear"`
	TaxStatus       string `json:"taxStatus"`
	DueDate         string `json:"dueDate"`
	LastPaymentDate string `json:"lastPaymentDate"`
	Lines           []Row  `json:"lines"`
	Total           string `json:"total"`
	Discount        string `json:"discount,omitempty"`
}

func table(rows []Row, total *Row) string {
	var b strings.Builder
	b.WriteString("<table>")
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr><td>%s</td><td class="amount">%s</td></tr>`,
			html.EscapeString(r.Label), html.EscapeString(r.Value))
	}
	if total != nil {
		fmt.Fprintf(&b, `<tr class="total"><td>%s</td><td class="amount">%s</td></tr>`,
			html.EscapeString(total.Label), html.EscapeString(total.Value))
	}
	b.WriteString("</table>")
	return b.String()
}

// RenderReceipt generates the HTML for a completed payment receipt
func RenderReceipt(d ReceiptData) string {
	rows := []Row{
		{"Plate", d.Plate},
		{"Tax year", fmt.Sprint(d.TaxYear)},
		{"Reference", d.Reference},
		{"Invoice", d.InvoiceNumber},
		{"Bank", d.BankName},
		{"Paid at", d.PaidAt},
	}
	content := "<p>Your vehicle tax payment was received.</p>" +
		table(rows, &Row{"Amount paid", d.Amount})
	return layout("Payment receipt", content)
}

// ReceiptText is the plain text alternative of RenderReceipt
func ReceiptText(d ReceiptData) string {
	return fmt.Sprintf("Payment received for %s, tax year %d.\nReference: %s\nInvoice: %s\nAmount: %s\nPaid at: %s",
		d.Plate, d.TaxYear, d.Reference, d.InvoiceNumber, d.Amount, d.PaidAt)
}

// RenderStatement generates the HTML for an account statement
func RenderStatement(d StatementData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hello %s,</p>", html.EscapeString(d.OwnerName))
	fmt.Fprintf(&b, "<p>This is the tax statement for <strong>%s</strong> (%s), tax year %d.</p>",
		html.EscapeString(d.Plate), html.EscapeString(d.Vehicle), d.TaxYear)
	b.WriteString(table(d.Lines, &Row{"Total due", d.Total}))
	if d.Discount != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(d.Discount))
	}
	b.WriteString(table([]Row{
		{"Status", d.TaxStatus},
		{"Due date", d.DueDate},
		{"Last payment", d.LastPaymentDate},
	}, nil))
	return layout("Account statement", b.String())
}

// StatementText is the plain text alternative of RenderStatement
func StatementText(d StatementData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tax statement for %s, tax year %d\n", d.Plate, d.TaxYear)
	for _, r := range d.Lines {
		fmt.Fprintf(&b, "%s: %s\n", r.Label, r.Value)
	}
	fmt.Fprintf(&b, "Total due: %s\nStatus: %s\nDue date: %s\nLast payment: %s", d.Total, d.TaxStatus, d.DueDate, d.LastPaymentDate)
	return b.String()
}
