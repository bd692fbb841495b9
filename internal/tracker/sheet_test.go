package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/tech-checkin/internal/smartsheet"
)

// fixedLocator pins every postal code to one timezone.
type fixedLocator struct {
	loc *time.Location
}

func (l fixedLocator) LocationForPostalCode(ctx context.Context, postalCode string) (*time.Location, error) {
	return l.loc, nil
}

// testColumnID assigns stable ids to the default column titles so rows can be
// built by title.
func testColumnID(title string) int64 {
	ids := map[string]int64{}
	for i, t := range []string{
		"24 hour call", "1 HR Call", "Zip Code", "Secured Date", "Secured Time",
		"Address", "City", "State", "Tech Name(First and Last)", "Tech Phone #",
		"COMCAST PO", "WorkMarket #",
	} {
		ids[t] = int64(100 + i)
	}
	return ids[title]
}

func testColumns() []smartsheet.Column {
	cols := DefaultColumns()
	var out []smartsheet.Column
	for _, title := range append(cols.required(), cols.WorkOrder) {
		out = append(out, smartsheet.Column{VirtualID: testColumnID(title), Title: title})
	}
	return out
}

// testRow builds a row from a title -> value map.
func testRow(id int64, rowNumber int, values map[string]any) smartsheet.Row {
	row := smartsheet.Row{ID: id, RowNumber: rowNumber}
	for title, value := range values {
		row.Cells = append(row.Cells, smartsheet.Cell{
			VirtualColumnID: testColumnID(title),
			Value:           value,
		})
	}
	return row
}

func goodRowValues() map[string]any {
	return map[string]any{
		"Zip Code":                  float64(602),
		"Secured Date":              "2026-03-11",
		"Secured Time":              float64(1330),
		"Address":                   "12 Main St",
		"City":                      "Aguada",
		"State":                     "PR",
		"Tech Name(First and Last)": "Sam Rivera",
		"Tech Phone #":              "(404) 555-0133",
		"COMCAST PO":                "PO-9001",
		"WorkMarket #":              float64(777123),
	}
}

func newTestSheet(t *testing.T, rows ...smartsheet.Row) *Sheet {
	t.Helper()
	sheet, err := New(&smartsheet.Sheet{
		ID:      555,
		Name:    "Tracker",
		Columns: testColumns(),
		Rows:    rows,
	}, DefaultColumns())
	require.NoError(t, err)
	return sheet
}

func TestNewRejectsMissingColumns(t *testing.T) {
	cols := testColumns()
	trimmed := cols[:len(cols)-3] // drop the phone, site id and work order columns

	_, err := New(&smartsheet.Sheet{Name: "Tracker", Columns: trimmed}, DefaultColumns())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns")
	assert.Contains(t, err.Error(), "Tech Phone #")
}

func TestCheckboxValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"string true", "true", true},
		{"string one", "1", true},
		{"string other", "no", false},
		{"number nonzero", float64(1), true},
		{"number zero", float64(0), false},
		{"missing cell", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := goodRowValues()
			if tt.value != nil {
				values["24 hour call"] = tt.value
			}
			sheet := newTestSheet(t, testRow(1, 1, values))
			assert.Equal(t, tt.want, sheet.Check24Hour(sheet.Rows()[0]))
		})
	}
}

func TestPendingUpdatesGroupBySheet(t *testing.T) {
	rowA := testRow(1, 1, goodRowValues())
	rowA.SheetID = 900
	rowB := testRow(2, 2, goodRowValues())
	rowB.SheetID = 901
	rowC := testRow(3, 3, goodRowValues()) // no source sheet: report's own id

	sheet := newTestSheet(t, rowA, rowB, rowC)
	sheet.SetCheck24Hour(rowA, true)
	sheet.SetCheck1Hour(rowA, true)
	sheet.SetCheck24Hour(rowB, true)
	sheet.SetCheck24Hour(rowC, true)

	grouped := sheet.PendingUpdates()
	require.Len(t, grouped, 3)
	require.Len(t, grouped[900], 1)
	require.Len(t, grouped[901], 1)
	require.Len(t, grouped[555], 1)

	// Both checkbox changes on rowA collapse into one row update.
	update := grouped[900][0]
	assert.Equal(t, int64(1), update.ID)
	assert.Len(t, update.Cells, 2)
	// The sheet id routes the update, it must not appear in the payload.
	assert.Zero(t, update.SheetID)

	sheet.ClearPending()
	assert.Nil(t, sheet.PendingUpdates())
}

func TestPendingUpdatesUseSourceSheetColumnIDs(t *testing.T) {
	// Report cells expose the source sheet's real column id next to the
	// report-level virtual one; the update pushed to the source sheet must
	// carry the real id.
	values := goodRowValues()
	values["24 hour call"] = false
	row := testRow(1, 1, values)
	row.SheetID = 900
	for i := range row.Cells {
		if row.Cells[i].VirtualColumnID == testColumnID("24 hour call") {
			row.Cells[i].ColumnID = 999
		}
	}

	sheet := newTestSheet(t, row)
	sheet.SetCheck24Hour(row, true)

	grouped := sheet.PendingUpdates()
	require.Len(t, grouped[900], 1)
	require.Len(t, grouped[900][0].Cells, 1)
	assert.Equal(t, int64(999), grouped[900][0].Cells[0].ColumnID)
}

func TestPostalCode(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    string
		wantErr bool
	}{
		{"float with lost zeros", float64(602), "00602", false},
		{"full float", float64(30301), "30301", false},
		{"string", "30301", "30301", false},
		{"short string", "602", "00602", false},
		{"missing", nil, "", true},
		{"non numeric", "3030A", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := goodRowValues()
			delete(values, "Zip Code")
			if tt.value != nil {
				values["Zip Code"] = tt.value
			}
			sheet := newTestSheet(t, testRow(1, 1, values))
			got, err := sheet.PostalCode(sheet.Rows()[0])
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApptDateTime(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name    string
		date    any
		hhmm    any
		locator Locator
		want    time.Time
		wantErr string
	}{
		{
			name:    "afternoon in resolved timezone",
			date:    "2026-03-11",
			hhmm:    float64(1330),
			locator: fixedLocator{ny},
			want:    time.Date(2026, 3, 11, 13, 30, 0, 0, ny),
		},
		{
			name:    "midnight",
			date:    "2026-03-11",
			hhmm:    float64(0),
			locator: fixedLocator{ny},
			want:    time.Date(2026, 3, 11, 0, 0, 0, 0, ny),
		},
		{
			name:    "time as string",
			date:    "2026-03-11",
			hhmm:    "0900",
			locator: fixedLocator{ny},
			want:    time.Date(2026, 3, 11, 9, 0, 0, 0, ny),
		},
		{
			name:    "minutes out of range",
			date:    "2026-03-11",
			hhmm:    float64(1075),
			locator: fixedLocator{ny},
			wantErr: "invalid secured time",
		},
		{
			name:    "hour out of range",
			date:    "2026-03-11",
			hhmm:    float64(2430),
			locator: fixedLocator{ny},
			wantErr: "invalid secured time",
		},
		{
			name:    "unparseable date",
			date:    "03/11/2026",
			hhmm:    float64(1330),
			locator: fixedLocator{ny},
			wantErr: "parsing secured date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := goodRowValues()
			values["Secured Date"] = tt.date
			values["Secured Time"] = tt.hhmm
			sheet := newTestSheet(t, testRow(1, 1, values))

			got, err := sheet.ApptDateTime(context.Background(), sheet.Rows()[0], tt.locator)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestTechDetails(t *testing.T) {
	sheet := newTestSheet(t, testRow(1, 1, goodRowValues()))

	details, err := sheet.TechDetails(context.Background(), sheet.Rows()[0], fixedLocator{time.UTC})
	require.NoError(t, err)

	assert.Equal(t, "PO-9001", details.SiteID)
	assert.Equal(t, "777123", details.WorkOrderNum)
	assert.Equal(t, "Sam Rivera", details.TechName)
	assert.Equal(t, "+14045550133", details.TechContact)
	assert.Equal(t, "12 Main St, Aguada, PR, 00602", details.Address)
	assert.Equal(t, time.Date(2026, 3, 11, 13, 30, 0, 0, time.UTC), details.ApptTime)
}

func TestTechDetailsMissingPhone(t *testing.T) {
	values := goodRowValues()
	delete(values, "Tech Phone #")
	sheet := newTestSheet(t, testRow(1, 1, values))

	_, err := sheet.TechDetails(context.Background(), sheet.Rows()[0], fixedLocator{time.UTC})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tech Phone #")
}

func TestWorkOrderNumOptional(t *testing.T) {
	values := goodRowValues()
	delete(values, "WorkMarket #")
	sheet := newTestSheet(t, testRow(1, 1, values))
	assert.Empty(t, sheet.WorkOrderNum(sheet.Rows()[0]))
}
