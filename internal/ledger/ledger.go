// Package ledger appends exported orders and call logs to spreadsheet files.
//
// Each file is guarded by its own lock.Locker; appends are read-modify-write so
// concurrent writers without the lock would lose rows.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vaidashi/phone-order-api/internal/models"
	"github.com/vaidashi/phone-order-api/pkg/lock"
	"github.com/vaidashi/phone-order-api/pkg/logger"
)

const (
	OrdersFile   = "orders.xlsx"
	CallLogsFile = "call_logs.xlsx"

	ordersSheet   = "Orders"
	callLogsSheet = "CallLogs"
)

// OrderColumns is the header row of the orders ledger
var OrderColumns = []string{
	"order_id", "order_type", "date_time", "customer_name", "customer_phone", "customer_email",
	"customer_language", "delivery_address", "city", "zip_code", "pickup_time", "items",
	"special_instructions", "subtotal", "tax", "delivery_fee", "tip", "total_amount",
	"payment_status", "payment_intent_id", "order_status", "call_id", "call_transcription",
	"handled_by_ai", "transferred_to_human", "exported_at",
}

// CallLogColumns is the header row of the call log ledger
var CallLogColumns = []string{
	"call_id", "date_time", "caller_phone", "caller_language", "wanted_to_order", "outcome",
	"transcription", "recording_url", "customer_message", "handled_by_ai",
	"transferred_to_human", "exported_at",
}

// Writer appends rows to the order and call log ledgers
type Writer struct {
	dir      string
	orders   lock.Locker
	callLogs lock.Locker
	now      func() time.Time
	logger   logger.Logger
}

// NewWriter creates the data directory if needed
func NewWriter(dir string, orders, callLogs lock.Locker, logger logger.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	return &Writer{
		dir:      dir,
		orders:   orders,
		callLogs: callLogs,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// AppendOrder writes one order row and returns the export time
func (w *Writer) AppendOrder(ctx context.Context, o *models.Order) (time.Time, error) {
	exportedAt := w.now().UTC()

	row := []interface{}{
		o.ID,
		string(o.OrderType),
		o.CreatedAt.UTC().Format(time.RFC3339),
		o.CustomerName,
		o.CustomerPhone,
		models.StringValue(o.CustomerEmail),
		o.CustomerLanguage,
		models.StringValue(o.DeliveryAddress),
		models.StringValue(o.City),
		models.StringValue(o.ZipCode),
		models.StringValue(o.PickupTime),
		o.Items.Summary(),
		models.StringValue(o.SpecialInstructions),
		o.Subtotal.Dollars(),
		o.Tax.Dollars(),
		o.DeliveryFee.Dollars(),
		o.Tip.Dollars(),
		o.TotalAmount.Dollars(),
		string(o.PaymentStatus),
		models.StringValue(o.PaymentIntentID),
		string(o.Status),
		models.StringValue(o.CallID),
		models.StringValue(o.CallTranscription),
		o.HandledByAI,
		o.TransferredToHuman,
		exportedAt.Format(time.RFC3339),
	}

	if err := w.append(ctx, w.orders, OrdersFile, ordersSheet, OrderColumns, row); err != nil {
		w.logger.Error("Failed to export order", "orderID", o.ID, "error", err)
		return time.Time{}, err
	}

	w.logger.Info("Order exported to ledger", "orderID", o.ID)
	return exportedAt, nil
}

// AppendCallLog writes one call log row and returns the export time
func (w *Writer) AppendCallLog(ctx context.Context, c *models.CallLog) (time.Time, error) {
	exportedAt := w.now().UTC()

	row := []interface{}{
		c.CallID,
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.CallerPhone,
		c.CallerLanguage,
		c.WantedToOrder,
		string(c.Outcome),
		models.StringValue(c.Transcription),
		models.StringValue(c.RecordingURL),
		models.StringValue(c.CustomerMessage),
		c.HandledByAI,
		c.TransferredToHuman,
		exportedAt.Format(time.RFC3339),
	}

	if err := w.append(ctx, w.callLogs, CallLogsFile, callLogsSheet, CallLogColumns, row); err != nil {
		w.logger.Error("Failed to export call log", "callID", c.CallID, "error", err)
		return time.Time{}, err
	}

	w.logger.Info("Call log exported to ledger", "callID", c.CallID)
	return exportedAt, nil
}

// OrderRows returns the data rows of the orders ledger without the header
func (w *Writer) OrderRows(ctx context.Context) ([][]string, error) {
	return w.rows(ctx, w.orders, OrdersFile, ordersSheet)
}

// CallLogRows returns the data rows of the call log ledger without the header
func (w *Writer) CallLogRows(ctx context.Context) ([][]string, error) {
	return w.rows(ctx, w.callLogs, CallLogsFile, callLogsSheet)
}

func (w *Writer) append(ctx context.Context, l lock.Locker, name, sheet string, header []string, row []interface{}) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	path := filepath.Join(w.dir, name)

	f, err := openOrCreate(path, sheet, header)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("failed to write row to %s: %w", name, err)
	}

	// atomic replace
	tmp := filepath.Join(w.dir, "."+strconv.FormatInt(time.Now().UnixNano(), 10)+"-"+name)
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save %s: %w", name, err)
	}

	return os.Rename(tmp, path)
}

func (w *Writer) rows(ctx context.Context, l lock.Locker, name, sheet string) ([][]string, error) {
	release, err := l.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	f, err := excelize.OpenFile(filepath.Join(w.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func openOrCreate(path, sheet string, header []string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}

	f = excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, err
	}

	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}
