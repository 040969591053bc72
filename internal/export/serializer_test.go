package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/iago/reports-back/internal/domain"
	"github.com/iago/reports-back/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generatedAt = time.Date(2024, 1, 31, 18, 4, 5, 0, time.UTC)

func salesFixture() *domain.SalesReport {
	return &domain.SalesReport{
		Summary: domain.SalesSummary{
			TotalSales:        2,
			TotalRevenue:      150,
			TotalCost:         80,
			TotalProfit:       70,
			AverageOrderValue: 75,
			ProfitMargin:      46.67,
		},
		ByProduct: []domain.ProductSales{
			{ProductID: "p-1", ProductName: "Widget, large", Quantity: 2, Revenue: 100, Profit: 40},
		},
		ByDate:     []domain.DailySales{{Date: "2024-01-02", Sales: 2, Revenue: 150, Profit: 70}},
		ByCategory: []domain.CategorySales{},
		ByCustomer: []domain.CustomerSales{},
	}
}

func newTestSerializer(renderer render.Renderer) *Serializer {
	return NewSerializer(renderer).WithClock(func() time.Time { return generatedAt })
}

type recordingRenderer struct {
	sections []render.Section
	kind     render.Kind
	err      error
}

func (r *recordingRenderer) Render(_ context.Context, sections []render.Section, kind render.Kind) ([]byte, error) {
	r.sections = sections
	r.kind = kind
	if r.err != nil {
		return []byte("partial"), r.err
	}
	return []byte("document"), nil
}

func TestSerializeCSV(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	filter := domain.ReportFilter{StartDate: &start, CustomerID: "c-1"}

	out, err := newTestSerializer(nil).Serialize(context.Background(), domain.ReportTypeSales, salesFixture(), filter, domain.ExportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, ContentTypeCSV, out.ContentType)
	assert.Equal(t, "sales-report-20240131-180405.csv", out.Filename)

	r := csv.NewReader(bytes.NewReader(out.Data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"report", "sales"}, records[0])
	assert.Equal(t, []string{"generated_at", "2024-01-31T18:04:05Z"}, records[1])
	assert.Equal(t, []string{"filter", `{"start_date":"2024-01-01T00:00:00Z","customer_id":"c-1"}`}, records[2])
	assert.Equal(t, []string{"Summary"}, records[3])
	assert.Equal(t, []string{"metric", "value"}, records[4])
	assert.Equal(t, []string{"total_sales", "2"}, records[5])
	assert.Contains(t, records, []string{"p-1", "Widget, large", "2", "100.00", "40.00"})
	assert.Contains(t, records, []string{"Top Customers"})
}

func TestSerializeCSVIsDeterministic(t *testing.T) {
	serializer := newTestSerializer(nil)
	first, err := serializer.Serialize(context.Background(), domain.ReportTypeSales, salesFixture(), domain.ReportFilter{}, domain.ExportFormatCSV)
	require.NoError(t, err)
	second, err := serializer.Serialize(context.Background(), domain.ReportTypeSales, salesFixture(), domain.ReportFilter{}, domain.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
}

func TestSerializeJSONEnvelope(t *testing.T) {
	out, err := newTestSerializer(nil).Serialize(context.Background(), domain.ReportTypeSales, salesFixture(), domain.ReportFilter{}, domain.ExportFormatJSON)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJSON, out.ContentType)
	assert.Equal(t, "sales-report-20240131-180405.json", out.Filename)

	var decoded struct {
		ReportType  string          `json:"report_type"`
		GeneratedAt time.Time       `json:"generated_at"`
		Data        json.RawMessage `json:"data"`
		Legacy      map[string]any  `json:"legacy"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &decoded))
	assert.Equal(t, "sales", decoded.ReportType)
	assert.True(t, generatedAt.Equal(decoded.GeneratedAt))
	assert.Equal(t, 150.0, decoded.Legacy["totalRevenue"])

	var data domain.SalesReport
	require.NoError(t, json.Unmarshal(decoded.Data, &data))
	assert.Equal(t, *salesFixture(), data)
}

func TestSerializeDocumentsDelegateToRenderer(t *testing.T) {
	renderer := &recordingRenderer{}
	serializer := newTestSerializer(renderer)

	out, err := serializer.Serialize(context.Background(), domain.ReportTypeSales, salesFixture(), domain.ReportFilter{}, domain.ExportFormatExcel)
	require.NoError(t, err)
	assert.Equal(t, render.KindExcel, renderer.kind)
	assert.Equal(t, ContentTypeExcel, out.ContentType)
	assert.Equal(t, "sales-report-20240131-180405.xlsx", out.Filename)
	assert.Equal(t, []byte("document"), out.Data)
	require.Len(t, renderer.sections, 5)
	assert.Equal(t, "Summary", renderer.sections[0].Title)

	out, err = serializer.Serialize(context.Background(), domain.ReportTypeSales, salesFixture(), domain.ReportFilter{}, domain.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, render.KindPDF, renderer.kind)
	assert.Equal(t, ContentTypePDF, out.ContentType)
}

func TestSerializeRenderFailureReturnsNoOutput(t *testing.T) {
	serializer := newTestSerializer(&recordingRenderer{err: errors.New("renderer offline")})

	out, err := serializer.Serialize(context.Background(), domain.ReportTypeSales, salesFixture(), domain.ReportFilter{}, domain.ExportFormatPDF)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRender)
	assert.Contains(t, err.Error(), "renderer offline")
	assert.Equal(t, Output{}, out)
}

func TestSerializeRejectsBadInput(t *testing.T) {
	serializer := newTestSerializer(nil)

	_, err := serializer.Serialize(context.Background(), domain.ReportTypeSales, salesFixture(), domain.ReportFilter{}, domain.ExportFormat("docx"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = serializer.Serialize(context.Background(), domain.ReportTypeInventory, salesFixture(), domain.ReportFilter{}, domain.ExportFormatCSV)
	assert.ErrorIs(t, err, domain.ErrInternal)

	_, err = serializer.Serialize(context.Background(), domain.ReportTypeSales, salesFixture(), domain.ReportFilter{}, domain.ExportFormatPDF)
	assert.ErrorIs(t, err, domain.ErrRender)
}

func TestSectionsForEveryReportType(t *testing.T) {
	results := []domain.Result{
		salesFixture(),
		&domain.InventoryReport{},
		&domain.CustomerReport{},
		&domain.FinancialReport{},
		&domain.ComparisonReport{
			Dimension:        domain.DimensionProduct,
			BreakdownChanges: []domain.BreakdownChange{{Key: "p-1", RevenueA: 10, RevenueB: 20, Change: 100}},
		},
	}
	for _, result := range results {
		sections, err := Sections(result)
		require.NoError(t, err)
		require.NotEmpty(t, sections)
		assert.Contains(t, []string{"Summary", "Comparison Summary"}, sections[0].Title)
	}

	sections, err := Sections(results[4])
	require.NoError(t, err)
	assert.Equal(t, "Change By Product", sections[len(sections)-1].Title)
}
