package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log view of a failed request: the error chain, any order
// or payment context carried in typed details, and the Postgres error when
// one is in the chain.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Retryable  bool     `json:"retryable"`
	Chain      []string `json:"chain,omitempty"`

	OrderID        string `json:"order_id,omitempty"`
	OrderStatus    string `json:"order_status,omitempty"`
	PaymentStatus  string `json:"payment_status,omitempty"`
	TransactionID  string `json:"transaction_id,omitempty"`
	RefundRequired bool   `json:"refund_required,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGClass      string `json:"pg_class,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Postgres SQLSTATEs the order write paths run into.
var pgClasses = map[string]string{
	"23505": "unique_violation",
	"23503": "foreign_key_violation",
	"23514": "check_violation",
	"40001": "serialization_failure",
	"40P01": "deadlock",
	"55P03": "lock_not_available",
	"57014": "query_canceled",
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = te.Retryable()
		d.liftDetails(te.Details())
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.setPG(pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message)
	case errors.As(err, &pqErr):
		d.setPG(string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message)
	}
	return d
}

// Fields returns the populated dump entries keyed for structured logs.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
		"retryable":   d.Retryable,
	}
	optional := map[string]string{
		"order_id":       d.OrderID,
		"order_status":   d.OrderStatus,
		"payment_status": d.PaymentStatus,
		"transaction_id": d.TransactionID,
		"pg_code":        d.PGCode,
		"pg_class":       d.PGClass,
		"pg_constraint":  d.PGConstraint,
		"pg_table":       d.PGTable,
		"pg_column":      d.PGColumn,
		"pg_detail":      d.PGDetail,
		"pg_message":     d.PGMessage,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	if d.RefundRequired {
		fields["refund_required"] = true
	}
	return fields
}

func (d *ErrorDump) liftDetails(details any) {
	m, ok := details.(map[string]any)
	if !ok {
		return
	}
	d.OrderID = detailString(m, "orderId")
	d.OrderStatus = detailString(m, "orderStatus")
	if d.OrderStatus == "" {
		d.OrderStatus = detailString(m, "status")
	}
	d.PaymentStatus = detailString(m, "paymentStatus")
	d.TransactionID = detailString(m, "transactionId")
	d.RefundRequired, _ = m["refundRequired"].(bool)
}

func (d *ErrorDump) setPG(code, constraint, table, column, detail, message string) {
	d.PGCode = code
	d.PGClass = pgClasses[code]
	d.PGConstraint = constraint
	d.PGTable = table
	d.PGColumn = column
	d.PGDetail = detail
	d.PGMessage = message
}

func detailString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
