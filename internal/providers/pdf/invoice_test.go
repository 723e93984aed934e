package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestGenerateInvoiceProducesPDF(t *testing.T) {
	p := New()
	r, err := p.GenerateInvoice(context.Background(), InvoiceData{
		InvoiceNumber: "GST-202401-0001",
		Status:        "SENT",
		IssueDate:     "15 Jan 2024",
		DueDate:       "30 Jan 2024",
		SupplierName:  "Acme Software",
		SupplierGSTIN: "27AAPFU0939F1ZV",
		PlaceOfSupply: "27",
		Items: []InvoiceItem{
			{Description: "Annual plan", HSNCode: "998314", Quantity: "1", UnitPrice: "1000.00", TaxRate: "18", Amount: "1000.00"},
		},
		Subtotal: "1000.00",
		CGST:     "90.00",
		SGST:     "90.00",
		Total:    "1180.00",
		Currency: "INR",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("expected PDF header, got %q", out[:min(len(out), 8)])
	}
}
