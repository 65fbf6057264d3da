package data

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/config"
)

type storeFactory func(t *testing.T) IService

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"files": func(t *testing.T) IService {
			t.Setenv("SCANBILL_INPUT_FOLDER", t.TempDir())
			return NewFilesDB(config.NewEnvVars())
		},
		"sqlite": func(t *testing.T) IService {
			t.Setenv("SCANBILL_INPUT_FOLDER", t.TempDir())
			svc, err := NewSQLite(config.NewEnvVars())
			require.NoError(t, err)
			return svc
		},
	}
}

func sampleBill(id string, at time.Time) model.Bill {
	return model.Bill{
		ID:        id,
		CreatedAt: at,
		Lines: []model.CartLine{
			{ID: "l1", Name: "Apple", UnitPrice: decimal.RequireFromString("0.99"), Quantity: 2},
			{ID: "l2", Name: "Milk", UnitPrice: decimal.RequireFromString("3.49"), Quantity: 1},
		},
		Subtotal:   decimal.RequireFromString("5.47"),
		TaxRate:    decimal.RequireFromString("0.1"),
		Tax:        decimal.RequireFromString("0.547"),
		GrandTotal: decimal.RequireFromString("6.017"),
	}
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

func TestBillRoundTrip(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			svc := factory(t)
			defer svc.Close()

			want := sampleBill("b1", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
			require.NoError(t, svc.NewBill(want))

			got, err := svc.RetrieveBillByID("b1")
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, decimalEqual, timeEqual); diff != "" {
				t.Errorf("bill mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, 3, got.Items())
		})
	}
}

func TestRetrieveMissingBill(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			svc := factory(t)
			defer svc.Close()

			_, err := svc.RetrieveBillByID("nope")
			assert.True(t, errors.Is(err, ErrBillNotFound))

			err = svc.MarkBillDelivered("nope", "a@b.com", time.Now())
			assert.True(t, errors.Is(err, ErrBillNotFound))
		})
	}
}

func TestMarkBillDelivered(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			svc := factory(t)
			defer svc.Close()

			created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			require.NoError(t, svc.NewBill(sampleBill("b1", created)))

			at := created.Add(time.Minute)
			require.NoError(t, svc.MarkBillDelivered("b1", "jane@example.com", at))

			got, err := svc.RetrieveBillByID("b1")
			require.NoError(t, err)
			assert.Equal(t, "jane@example.com", got.CustomerEmail)
			require.NotNil(t, got.DeliveredAt)
			assert.True(t, got.DeliveredAt.Equal(at))
		})
	}
}

func TestRetrieveBillsNewestFirst(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			svc := factory(t)
			defer svc.Close()

			base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			require.NoError(t, svc.NewBill(sampleBill("b1", base)))
			require.NoError(t, svc.NewBill(sampleBill("b3", base.Add(2*time.Hour))))
			require.NoError(t, svc.NewBill(sampleBill("b2", base.Add(time.Hour))))

			all, err := svc.RetrieveBills(0)
			require.NoError(t, err)
			ids := []string{}
			for _, b := range all {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, []string{"b3", "b2", "b1"}, ids)

			limited, err := svc.RetrieveBills(2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)
			assert.Equal(t, "b3", limited[0].ID)
		})
	}
}

func TestErrorsAndStatsAreAccepted(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			svc := factory(t)
			defer svc.Close()

			assert.NoError(t, svc.NewError(model.GenError("scanner", errors.New("boom"), map[string]interface{}{"seq": 4}, "detector failed")))
			assert.NoError(t, svc.NewError(errors.New("plain")))
			assert.NoError(t, svc.NewError("text"))
			assert.NoError(t, svc.NewScannerStats(model.ScannerStats{Name: "scanner", Accepted: 3}))
			assert.NoError(t, svc.NewCaptureStats(model.CaptureStats{Name: "random", Frames: 30}))
		})
	}
}

func TestFilesDBWritesJSON(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCANBILL_INPUT_FOLDER", dir)
	svc := NewFilesDB(config.NewEnvVars())

	require.NoError(t, svc.NewBill(sampleBill("b1", time.Now())))
	_, err := os.Stat(filepath.Join(dir, "bills.json"))
	assert.NoError(t, err)
}

func TestSQLiteReopenKeepsBills(t *testing.T) {
	t.Setenv("SCANBILL_INPUT_FOLDER", t.TempDir())
	cfg := config.NewEnvVars()

	svc, err := NewSQLite(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.NewBill(sampleBill("b1", time.Now())))
	require.NoError(t, svc.Close())

	svc, err = NewSQLite(cfg)
	require.NoError(t, err)
	defer svc.Close()

	got, err := svc.RetrieveBillByID("b1")
	require.NoError(t, err)
	assert.Len(t, got.Lines, 2)
}

func TestToErrorRecord(t *testing.T) {
	rec := toErrorRecord(model.GenError("capture", errors.New("eof"), nil, "read failed %d", 3))
	assert.Equal(t, "capture", rec.Processor)
	assert.Equal(t, "eof", rec.Inner)
	assert.Equal(t, "read failed 3", rec.Message)

	rec = toErrorRecord(42)
	assert.Equal(t, "N/A", rec.Processor)
	assert.Equal(t, "42", rec.Message)
}
