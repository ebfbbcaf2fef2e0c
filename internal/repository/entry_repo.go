package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/cyberclick/backend/internal/apperr"
	"github.com/cyberclick/backend/internal/models"
	"github.com/cyberclick/backend/internal/store"
)

const entryColumns = `id, account_id, amount::text, fee::text, net::text, kind, status,
	created_at, resolved_at, proof_ref, reference, version`

func scanEntry(row pgx.Row) (*models.LedgerEntry, error) {
	var (
		e        models.LedgerEntry
		amount   string
		fee, net *string
	)
	err := row.Scan(&e.ID, &e.AccountID, &amount, &fee, &net, &e.Kind, &e.Status,
		&e.CreatedAt, &e.ResolvedAt, &e.ProofRef, &e.Reference, &e.Version)
	if err != nil {
		return nil, err
	}
	if err := parseDecimals(decimalField{amount, &e.Amount}); err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	if e.Fee, err = optionalDecimal(fee); err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	if e.Net, err = optionalDecimal(net); err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.ResolvedAt = utcPtr(e.ResolvedAt)
	return &e, nil
}

func optionalDecimal(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func getEntry(ctx context.Context, q querier, query string, id any) (*models.LedgerEntry, error) {
	e, err := scanEntry(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.ReasonEntryNotFound, "ledger entry %v not found", id)
	}
	return e, err
}

func insertEntry(ctx context.Context, q querier, e *models.LedgerEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount, fee, net, kind, status, created_at, resolved_at, proof_ref, reference, version)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11, 1)
	`, e.ID, e.AccountID, e.Amount.String(), decimalText(e.Fee), decimalText(e.Net), e.Kind, e.Status,
		e.CreatedAt, e.ResolvedAt, e.ProofRef, e.Reference)
	if err != nil {
		return mapError(err)
	}
	e.Version = 1
	return nil
}

// buildEntryQuery turns a filter into a SELECT with positional arguments.
func buildEntryQuery(f store.EntryFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.AccountID != nil {
		add("account_id = $%d", *f.AccountID)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.CreatedFrom.IsZero() {
		add("created_at >= $%d", f.CreatedFrom)
	}
	if !f.CreatedTo.IsZero() {
		add("created_at < $%d", f.CreatedTo)
	}

	var b strings.Builder
	b.WriteString("SELECT " + entryColumns + " FROM ledger_entries")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

func listEntries(ctx context.Context, q querier, f store.EntryFilter) ([]*models.LedgerEntry, error) {
	query, args := buildEntryQuery(f)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}
