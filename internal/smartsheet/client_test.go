package smartsheet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reports/42", r.URL.Path)
		assert.Equal(t, "5000", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Write([]byte(`{
			"id": 42,
			"name": "Tracker",
			"columns": [{"virtualId": 900, "title": "Zip Code"}],
			"rows": [{"id": 1, "sheetId": 555, "rowNumber": 1,
				"cells": [{"virtualColumnId": 900, "value": 30301, "displayValue": "30301"}]}]
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-token")
	c.SetBaseURL(srv.URL)

	report, err := c.GetReport(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, "Tracker", report.Name)
	require.Len(t, report.Columns, 1)
	assert.Equal(t, int64(900), report.Columns[0].ColumnID())
	require.Len(t, report.Rows, 1)
	assert.Equal(t, int64(555), report.Rows[0].SheetID)
	require.Len(t, report.Rows[0].Cells, 1)
	assert.Equal(t, int64(900), report.Rows[0].Cells[0].EffectiveColumnID())
	assert.Equal(t, float64(30301), report.Rows[0].Cells[0].Value)
}

func TestGetSheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sheets/7", r.URL.Path)
		w.Write([]byte(`{"id": 7, "name": "Sheet", "columns": [{"id": 11, "title": "A"}], "rows": []}`))
	}))
	defer srv.Close()

	c := NewClient("test-token")
	c.SetBaseURL(srv.URL)

	sheet, err := c.GetSheet(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sheet.ID)
	assert.Equal(t, int64(11), sheet.Columns[0].ColumnID())
}

func TestUpdateRows(t *testing.T) {
	var gotMethod, gotPath string
	var gotRows []Row

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRows))
		w.Write([]byte(`{"message":"SUCCESS","resultCode":0}`))
	}))
	defer srv.Close()

	c := NewClient("test-token")
	c.SetBaseURL(srv.URL)

	rows := []Row{{ID: 1, Cells: []Cell{{ColumnID: 900, Value: true}}}}
	require.NoError(t, c.UpdateRows(context.Background(), 555, rows))

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/sheets/555/rows", gotPath)
	require.Len(t, gotRows, 1)
	assert.Equal(t, int64(1), gotRows[0].ID)
	assert.Equal(t, true, gotRows[0].Cells[0].Value)
}

func TestUpdateRowsEmptyBatchIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty batch")
	}))
	defer srv.Close()

	c := NewClient("test-token")
	c.SetBaseURL(srv.URL)

	require.NoError(t, c.UpdateRows(context.Background(), 555, nil))
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorCode": 1006, "message": "Not Found"}`))
	}))
	defer srv.Close()

	c := NewClient("test-token")
	c.SetBaseURL(srv.URL)

	_, err := c.GetReport(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1006")
	assert.Contains(t, err.Error(), "Not Found")
}
