// Package tracker interprets the appointment tracker sheet: it maps column
// titles to ids, parses appointment rows into TechDetails, and batches
// checkbox updates for a single push back to Smartsheet.
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/tech-checkin/internal/models"
	"github.com/fieldops/tech-checkin/internal/smartsheet"
)

// Locator resolves a postal code to its timezone.
type Locator interface {
	LocationForPostalCode(ctx context.Context, postalCode string) (*time.Location, error)
}

// phoneSymbols are stripped from phone cells before digit validation.
const phoneSymbols = "()- .+"

// Sheet wraps one fetched sheet or report with column-title access and a
// running batch of row updates keyed by row ID.
type Sheet struct {
	sheet      *smartsheet.Sheet
	cols       Columns
	columnMap  map[string]int64
	rowUpdates map[int64]*smartsheet.Row
}

// New builds a Sheet and verifies every required column is present.
func New(sheet *smartsheet.Sheet, cols Columns) (*Sheet, error) {
	columnMap := make(map[string]int64, len(sheet.Columns))
	for _, col := range sheet.Columns {
		columnMap[col.Title] = col.ColumnID()
	}

	var missing []string
	for _, title := range cols.required() {
		if _, ok := columnMap[title]; !ok {
			missing = append(missing, title)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("sheet %q is missing columns: %s", sheet.Name, strings.Join(missing, ", "))
	}

	return &Sheet{
		sheet:      sheet,
		cols:       cols,
		columnMap:  columnMap,
		rowUpdates: make(map[int64]*smartsheet.Row),
	}, nil
}

// Rows returns the sheet rows.
func (s *Sheet) Rows() []smartsheet.Row {
	return s.sheet.Rows
}

// cell finds the cell for the given column title, if the row has one.
func (s *Sheet) cell(row smartsheet.Row, title string) (smartsheet.Cell, bool) {
	id, ok := s.columnMap[title]
	if !ok {
		return smartsheet.Cell{}, false
	}
	for _, c := range row.Cells {
		if c.EffectiveColumnID() == id {
			return c, true
		}
	}
	return smartsheet.Cell{}, false
}

// Check24Hour reports whether the 24-hour confirmation checkbox is set.
func (s *Sheet) Check24Hour(row smartsheet.Row) bool {
	return s.checkbox(row, s.cols.Check24Hour)
}

// Check1Hour reports whether the 1-hour reminder checkbox is set.
func (s *Sheet) Check1Hour(row smartsheet.Row) bool {
	return s.checkbox(row, s.cols.Check1Hour)
}

// SetCheck24Hour queues a 24-hour checkbox update for the row.
func (s *Sheet) SetCheck24Hour(row smartsheet.Row, status bool) {
	s.setCheckbox(row, s.cols.Check24Hour, status)
}

// SetCheck1Hour queues a 1-hour checkbox update for the row.
func (s *Sheet) SetCheck1Hour(row smartsheet.Row, status bool) {
	s.setCheckbox(row, s.cols.Check1Hour, status)
}

func (s *Sheet) checkbox(row smartsheet.Row, title string) bool {
	c, ok := s.cell(row, title)
	if !ok {
		return false
	}
	switch v := c.Value.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case float64:
		return v != 0
	}
	return false
}

// setCheckbox appends a cell change to the pending update for the row,
// creating the pending row on first touch.
func (s *Sheet) setCheckbox(row smartsheet.Row, title string, status bool) {
	columnID, ok := s.columnMap[title]
	if !ok {
		return
	}
	// Report cells carry the source sheet's real column id alongside the
	// report-level virtual id. Updates are pushed to the source sheet, which
	// only accepts its own ids.
	if c, ok := s.cell(row, title); ok && c.ColumnID != 0 {
		columnID = c.ColumnID
	}
	update, exists := s.rowUpdates[row.ID]
	if !exists {
		update = &smartsheet.Row{ID: row.ID, SheetID: row.SheetID}
		s.rowUpdates[row.ID] = update
	}
	update.Cells = append(update.Cells, smartsheet.Cell{
		ColumnID: columnID,
		Value:    status,
	})
}

// PendingUpdates returns the queued row updates grouped by the sheet each
// row lives in. Report rows carry their source sheet ID; rows without one
// fall back to the report's own ID.
func (s *Sheet) PendingUpdates() map[int64][]smartsheet.Row {
	if len(s.rowUpdates) == 0 {
		return nil
	}
	grouped := make(map[int64][]smartsheet.Row)
	for _, row := range s.rowUpdates {
		sheetID := row.SheetID
		if sheetID == 0 {
			sheetID = s.sheet.ID
		}
		update := *row
		update.SheetID = 0 // not part of the update payload
		grouped[sheetID] = append(grouped[sheetID], update)
	}
	return grouped
}

// ClearPending drops the queued updates, called after a successful push.
func (s *Sheet) ClearPending() {
	s.rowUpdates = make(map[int64]*smartsheet.Row)
}

// PostalCode returns the row's zip code as a 5-character string. Sheet cells
// come back as floats and may have lost leading zeros, so the value is
// zero-padded back to 5 digits.
func (s *Sheet) PostalCode(row smartsheet.Row) (string, error) {
	c, ok := s.cell(row, s.cols.ZipCode)
	if !ok || c.Value == nil {
		return "", fmt.Errorf("row #%d has no zip code", row.RowNumber)
	}

	var code string
	switch v := c.Value.(type) {
	case float64:
		code = strconv.FormatInt(int64(v), 10)
	case string:
		code = strings.TrimSpace(v)
	default:
		return "", fmt.Errorf("row #%d has unexpected zip code type %T", row.RowNumber, c.Value)
	}

	return PadPostalCode(code)
}

// PadPostalCode left-pads a numeric postal code to 5 characters.
func PadPostalCode(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("empty postal code")
	}
	if len(code) > 5 {
		return "", fmt.Errorf("postal code too long: %s", code)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("postal code is not numeric: %s", code)
		}
	}
	return strings.Repeat("0", 5-len(code)) + code, nil
}

// ApptDate returns the appointment date (midnight, UTC) from the secured
// date column, which holds an ISO date string.
func (s *Sheet) ApptDate(row smartsheet.Row) (time.Time, error) {
	c, ok := s.cell(row, s.cols.SecuredDate)
	if !ok || c.Value == nil {
		return time.Time{}, fmt.Errorf("row #%d has no secured date", row.RowNumber)
	}
	str, ok := c.Value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("row #%d has unexpected secured date type %T", row.RowNumber, c.Value)
	}
	d, err := time.Parse("2006-01-02", str)
	if err != nil {
		return time.Time{}, fmt.Errorf("row #%d: parsing secured date %q: %w", row.RowNumber, str, err)
	}
	return d, nil
}

// ApptDateTime combines the secured date and the HHMM secured time. When a
// locator is given the time is placed in the appointment's own timezone,
// resolved from the zip code; otherwise server-local time is used.
func (s *Sheet) ApptDateTime(ctx context.Context, row smartsheet.Row, locator Locator) (time.Time, error) {
	date, err := s.ApptDate(row)
	if err != nil {
		return time.Time{}, err
	}

	c, ok := s.cell(row, s.cols.SecuredTime)
	if !ok || c.Value == nil {
		return time.Time{}, fmt.Errorf("row #%d has no secured time", row.RowNumber)
	}
	var hhmm int
	switch v := c.Value.(type) {
	case float64:
		hhmm = int(v)
	case string:
		hhmm, err = strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, fmt.Errorf("row #%d: parsing secured time %q: %w", row.RowNumber, v, err)
		}
	default:
		return time.Time{}, fmt.Errorf("row #%d has unexpected secured time type %T", row.RowNumber, c.Value)
	}

	hour, minute := hhmm/100, hhmm%100
	if hhmm < 0 || hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("row #%d has invalid secured time %d", row.RowNumber, hhmm)
	}

	loc := time.Local
	if locator != nil {
		postalCode, err := s.PostalCode(row)
		if err != nil {
			return time.Time{}, err
		}
		loc, err = locator.LocationForPostalCode(ctx, postalCode)
		if err != nil {
			return time.Time{}, fmt.Errorf("row #%d: %w", row.RowNumber, err)
		}
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc), nil
}

// FullAddress joins street, city, state and zip into one display address.
func (s *Sheet) FullAddress(row smartsheet.Row) (string, error) {
	street, err := s.stringCell(row, s.cols.Address)
	if err != nil {
		return "", err
	}
	city, err := s.stringCell(row, s.cols.City)
	if err != nil {
		return "", err
	}
	state, err := s.stringCell(row, s.cols.State)
	if err != nil {
		return "", err
	}
	postalCode, err := s.PostalCode(row)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{street, city, state, postalCode}, ", "), nil
}

// TechName returns the technician's name.
func (s *Sheet) TechName(row smartsheet.Row) (string, error) {
	return s.stringCell(row, s.cols.TechName)
}

// TechContact returns the technician's phone number normalized to E.164.
func (s *Sheet) TechContact(row smartsheet.Row) (string, error) {
	raw, err := s.stringCell(row, s.cols.TechPhone)
	if err != nil {
		return "", err
	}
	number, err := NormalizePhone(raw)
	if err != nil {
		return "", fmt.Errorf("row #%d: %w", row.RowNumber, err)
	}
	return number, nil
}

// NormalizePhone strips formatting symbols from a US phone number and
// prefixes the country code. 10-digit numbers get +1; 11-digit numbers are
// assumed to already carry the country code.
func NormalizePhone(raw string) (string, error) {
	clean := raw
	for _, sym := range phoneSymbols {
		clean = strings.ReplaceAll(clean, string(sym), "")
	}
	for _, c := range clean {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("phone number contains invalid character %q: %s", c, raw)
		}
	}
	switch {
	case len(clean) == 10:
		return "+1" + clean, nil
	case len(clean) == 11:
		return "+" + clean, nil
	case len(clean) < 10:
		return "", fmt.Errorf("phone number is too short: %s", clean)
	default:
		return "", fmt.Errorf("phone number is too long: %s", clean)
	}
}

// SiteID returns the site identifier (purchase order number).
func (s *Sheet) SiteID(row smartsheet.Row) (string, error) {
	c, ok := s.cell(row, s.cols.SiteID)
	if !ok || c.Value == nil {
		return "", fmt.Errorf("row #%d has no site ID", row.RowNumber)
	}
	switch v := c.Value.(type) {
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", fmt.Errorf("row #%d has unexpected site ID type %T", row.RowNumber, c.Value)
	}
}

// WorkOrderNum returns the work order number if the sheet carries the
// column, empty otherwise.
func (s *Sheet) WorkOrderNum(row smartsheet.Row) string {
	c, ok := s.cell(row, s.cols.WorkOrder)
	if !ok || c.Value == nil {
		return ""
	}
	switch v := c.Value.(type) {
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case string:
		return strings.TrimSpace(v)
	}
	return ""
}

// TechDetails aggregates everything needed to text the technician about the
// row's appointment.
func (s *Sheet) TechDetails(ctx context.Context, row smartsheet.Row, locator Locator) (*models.TechDetails, error) {
	siteID, err := s.SiteID(row)
	if err != nil {
		return nil, err
	}
	name, err := s.TechName(row)
	if err != nil {
		return nil, err
	}
	contact, err := s.TechContact(row)
	if err != nil {
		return nil, err
	}
	address, err := s.FullAddress(row)
	if err != nil {
		return nil, err
	}
	apptTime, err := s.ApptDateTime(ctx, row, locator)
	if err != nil {
		return nil, err
	}

	return &models.TechDetails{
		SiteID:       siteID,
		WorkOrderNum: s.WorkOrderNum(row),
		TechName:     name,
		TechContact:  contact,
		Address:      address,
		ApptTime:     apptTime,
	}, nil
}

func (s *Sheet) stringCell(row smartsheet.Row, title string) (string, error) {
	c, ok := s.cell(row, title)
	if !ok || c.Value == nil {
		return "", fmt.Errorf("row #%d has no %q value", row.RowNumber, title)
	}
	str, ok := c.Value.(string)
	if !ok || strings.TrimSpace(str) == "" {
		return "", fmt.Errorf("row #%d has empty or non-text %q value", row.RowNumber, title)
	}
	return strings.TrimSpace(str), nil
}
