package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"vet/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:      "sheet",
		ServiceAccountFile: "/does/not/exist.json",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestToRow(t *testing.T) {
	received := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	row := toRow(core.Expense{
		ID:          "e1",
		Date:        "2024-06-01",
		Amount:      12.5,
		Category:    " ",
		Traveler:    "Ann",
		Description: "Lunch",
		ReceiptData: "data:image/png;base64,AAAA",
		CreatedAt:   "2024-06-01T10:00:00.000Z",
	}, received)

	assert.Equal(t, []any{
		"e1", "2024-06-01", 12.5, core.Uncategorized, "Ann", "Lunch", "",
		"2024-06-01T10:00:00.000Z", "2024-06-02T08:00:00.000Z",
	}, row)
	assert.Len(t, row, len(Header))
}

func TestMirrorExpenses(t *testing.T) {
	var gotPath string
	var gotQuery string
	var body gsheet.ValueRange

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet","updates":{"updatedRange":"Trip!A2:I3","updatedRows":2}}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	svc, err := gsheet.NewService(ctx,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	client := NewWithService(svc, "sheet", "Trip")
	err = client.MirrorExpenses(ctx, time.Now(), []core.Expense{
		{ID: "a", Amount: 1, ReceiptData: "/data/uploads/a.jpg"},
		{ID: "b", Amount: 2},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotPath, "/spreadsheets/sheet/values/")
	assert.Contains(t, gotQuery, "valueInputOption=RAW")
	assert.Contains(t, gotQuery, "insertDataOption=INSERT_ROWS")
	require.Len(t, body.Values, 2)
	assert.Equal(t, "a", body.Values[0][0])
	assert.Equal(t, "/data/uploads/a.jpg", body.Values[0][6])
}

func TestMirrorExpenses_NoService(t *testing.T) {
	c := &Client{spreadsheetID: "sheet", sheetName: "Trip"}
	err := c.MirrorExpenses(context.Background(), time.Now(), []core.Expense{{ID: "a"}})
	assert.Error(t, err)
}

func TestNewWithService_DefaultSheetName(t *testing.T) {
	c := NewWithService(nil, "sheet", "  ")
	assert.Equal(t, "Expenses", c.sheetName)
}
