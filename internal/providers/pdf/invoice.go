package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// InvoiceData is the pre-formatted content of a GST tax invoice. Amounts are
// rendered as given.
type InvoiceData struct {
	Title         string
	InvoiceNumber string
	Status        string
	IssueDate     string
	DueDate       string
	PaidDate      string

	SupplierName    string
	SupplierGSTIN   string
	SupplierAddress string

	BillToName    string
	BillToGSTIN   string
	BillToAddress string
	BillToEmail   string
	PlaceOfSupply string

	Items []InvoiceItem

	Subtotal string
	CGST     string
	SGST     string
	IGST     string
	Discount string
	Total    string
	Currency string
	Notes    string
}

type InvoiceItem struct {
	Description string
	HSNCode     string
	Quantity    string
	UnitPrice   string
	TaxRate     string
	Amount      string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, invoice InvoiceData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	title := invoice.Title
	if title == "" {
		title = "Tax Invoice"
	}
	m.AddRow(12,
		text.NewCol(8, title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, invoice.Status, props.Text{
			Size:  11,
			Style: fontstyle.Bold,
			Align: align.Right,
			Top:   3,
		}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+invoice.IssueDate, props.Text{Top: 4}),
			text.New("Date due: "+invoice.DueDate, props.Text{Top: 8}),
			text.New(paidLine(invoice.PaidDate), props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Place of supply: "+invoice.PlaceOfSupply, props.Text{Top: 0, Align: align.Right}),
		),
	)

	m.AddRow(36,
		col.New(6).Add(
			text.New(invoice.SupplierName, props.Text{Style: fontstyle.Bold}),
			text.New("GSTIN: "+invoice.SupplierGSTIN, props.Text{Top: 5}),
			text.New(invoice.SupplierAddress, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.BillToName, props.Text{Top: 5}),
			text.New("GSTIN: "+invoice.BillToGSTIN, props.Text{Top: 10}),
			text.New(invoice.BillToAddress, props.Text{Top: 15}),
			text.New(invoice.BillToEmail, props.Text{Top: 28}),
		),
	)

	header := props.Text{Style: fontstyle.Bold, Size: 9}
	headerRight := props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}
	m.AddRow(8,
		text.NewCol(4, "Description", header),
		text.NewCol(2, "HSN/SAC", header),
		text.NewCol(1, "Qty", headerRight),
		text.NewCol(2, "Rate", headerRight),
		text.NewCol(1, "GST %", headerRight),
		text.NewCol(2, "Amount", headerRight),
	)
	m.AddRow(2, line.NewCol(12))

	cell := props.Text{Size: 9}
	cellRight := props.Text{Size: 9, Align: align.Right}
	for _, item := range invoice.Items {
		m.AddRow(10,
			text.NewCol(4, item.Description, cell),
			text.NewCol(2, item.HSNCode, cell),
			text.NewCol(1, item.Quantity, cellRight),
			text.NewCol(2, item.UnitPrice, cellRight),
			text.NewCol(1, item.TaxRate, cellRight),
			text.NewCol(2, item.Amount, cellRight),
		)
	}
	m.AddRow(2, line.NewCol(12))

	addTotal(m, "Subtotal", invoice.Subtotal, false)
	if invoice.IGST != "" {
		addTotal(m, "IGST", invoice.IGST, false)
	} else {
		addTotal(m, "CGST", invoice.CGST, false)
		addTotal(m, "SGST", invoice.SGST, false)
	}
	if invoice.Discount != "" {
		addTotal(m, "Discount", "-"+invoice.Discount, false)
	}
	addTotal(m, "Total ("+invoice.Currency+")", invoice.Total, true)

	if invoice.Notes != "" {
		m.AddRow(20,
			text.NewCol(12, invoice.Notes, props.Text{Size: 9, Top: 6}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func addTotal(m core.Maroto, label, value string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(8,
		col.New(7),
		text.NewCol(3, label, props.Text{Size: 9, Style: style}),
		text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}

func paidLine(paid string) string {
	if paid == "" {
		return ""
	}
	return "Date paid: " + paid
}
