package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/record"
)

func depositsPage() *page.Page {
	return &page.Page{
		Name:  "deposits",
		Title: "Deposit Record",
		Columns: []page.Column{
			{Field: "username", Label: "Username"},
			{Field: "amount", Label: "Amount"},
			{Field: "status", Label: "Status"},
		},
	}
}

func TestRender(t *testing.T) {
	rows := make([]record.Record, 0, 80)
	for i := range 80 {
		rows = append(rows, record.Record{"username": fmt.Sprintf("user-%02d", i), "amount": i * 10, "status": "Pending"})
	}
	tbl := PageTable(depositsPage(), rows, "status=Pending", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, tbl))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, PageTable(depositsPage(), nil, "", time.Now())))
	assert.NotZero(t, buf.Len())
}

func TestRenderNoColumns(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, Table{Title: "x"}))
	assert.Zero(t, buf.Len())
}

func TestFit(t *testing.T) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", fontSize)

	assert.Equal(t, "short", fit(pdf, "short", 50))
	long := "a-very-long-email-address-that-cannot-fit@example.com"
	got := fit(pdf, long, 20)
	assert.True(t, len(got) < len(long))
	assert.Contains(t, got, ellipsis)
	assert.LessOrEqual(t, pdf.GetStringWidth(got), 20-2*pdf.GetCellMargin())
}

func TestCellText(t *testing.T) {
	r := record.Record{"amount": 12.5, "user": map[string]any{"email": "a@b.c"}}
	assert.Equal(t, "12.5", cellText(r, "amount"))
	assert.Equal(t, "a@b.c", cellText(r, "user.email"))
	assert.Equal(t, "", cellText(r, "missing"))
}
