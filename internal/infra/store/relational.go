package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tmplhub/internal/domain/org"
	"tmplhub/internal/domain/template"
	"tmplhub/internal/infra/database"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ncruces/go-sqlite3"
)

const (
	typesTable     = "notification_template_types"
	templatesTable = "notification_templates"

	pgUniqueViolation = "23505"
)

var _ template.Backend = (*Relational)(nil)

// Relational stores types and templates in two SQL tables keyed by the
// numeric tenant id. Organization-scoped templates use an empty app_id.
type Relational struct {
	db      *database.DB
	tenants org.TenantRegistry
}

// NewRelational creates a relational backend over an open database.
func NewRelational(db *database.DB, tenants org.TenantRegistry) *Relational {
	return &Relational{db: db, tenants: tenants}
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Relational) tenantID(ctx context.Context, op string, key fmt.Stringer, tenant string) (int, error) {
	id, err := r.tenants.TenantID(ctx, tenant)
	if err != nil {
		return 0, template.NewStoreError(op, key, template.KindOrgResolution, err)
	}
	return id, nil
}

// AddType inserts the type row. An existing row is a duplicate.
func (r *Relational) AddType(ctx context.Context, ref template.TypeRef) error {
	const op = "add template type"
	if !template.ValidTypeKey(ref.Key()) {
		return template.NewStoreError(op, ref, template.KindInvalidKey, errors.New("empty type key"))
	}
	tid, err := r.tenantID(ctx, op, ref, ref.Tenant)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO `+typesTable+` (tenant_id, channel, type_key, display_name)
		VALUES (?, ?, ?, ?)`),
		tid, string(ref.Channel), ref.Key(), ref.DisplayName,
	)
	if err != nil {
		return wrapSQLError(op, ref, err)
	}
	return nil
}

func (r *Relational) TypeExists(ctx context.Context, ref template.TypeRef) (bool, error) {
	const op = "check template type"
	tid, err := r.tenantID(ctx, op, ref, ref.Tenant)
	if err != nil {
		return false, err
	}

	var one int
	err = r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT 1 FROM `+typesTable+`
		WHERE tenant_id = ? AND channel = ? AND type_key = ?`),
		tid, string(ref.Channel), ref.Key(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapSQLError(op, ref, err)
	}
	return true, nil
}

func (r *Relational) ListTypes(ctx context.Context, channel template.Channel, tenant string) ([]string, error) {
	const op = "list template types"
	key := template.ChannelKey{Channel: channel, Tenant: tenant}
	tid, err := r.tenantID(ctx, op, key, tenant)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT display_name FROM `+typesTable+`
		WHERE tenant_id = ? AND channel = ?
		ORDER BY type_key`),
		tid, string(channel),
	)
	if err != nil {
		return nil, wrapSQLError(op, key, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapSQLError(op, key, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLError(op, key, err)
	}
	return names, nil
}

// DeleteType removes the type row and every template of the type, in all
// locales and scopes, in one transaction.
func (r *Relational) DeleteType(ctx context.Context, ref template.TypeRef) error {
	const op = "delete template type"
	tid, err := r.tenantID(ctx, op, ref, ref.Tenant)
	if err != nil {
		return err
	}

	return r.inTx(ctx, op, ref, func(tx *sql.Tx) error {
		args := []any{tid, string(ref.Channel), ref.Key()}
		if _, err := tx.ExecContext(ctx, r.db.Rebind(`
			DELETE FROM `+templatesTable+`
			WHERE tenant_id = ? AND channel = ? AND type_key = ?`), args...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, r.db.Rebind(`
			DELETE FROM `+typesTable+`
			WHERE tenant_id = ? AND channel = ? AND type_key = ?`), args...)
		return err
	})
}

// AddOrUpdate ensures the type row, then replaces the template row.
func (r *Relational) AddOrUpdate(ctx context.Context, t *template.Template, appID, tenant string) error {
	const op = "add or update template"
	ref := t.Ref(appID, tenant)
	if !template.ValidTypeKey(ref.Key()) {
		return template.NewStoreError(op, ref, template.KindInvalidKey, errors.New("empty type key"))
	}
	tid, err := r.tenantID(ctx, op, ref, tenant)
	if err != nil {
		return err
	}

	typeKey := template.NormalizeType(t.DisplayName)
	return r.inTx(ctx, op, ref, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO `+typesTable+` (tenant_id, channel, type_key, display_name)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (tenant_id, channel, type_key) DO NOTHING`),
			tid, string(t.Channel), typeKey, t.DisplayName,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.db.Rebind(`
			DELETE FROM `+templatesTable+`
			WHERE tenant_id = ? AND channel = ? AND type_key = ? AND locale = ? AND app_id = ?`),
			tid, string(t.Channel), typeKey, t.Locale, appID,
		); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO `+templatesTable+`
				(tenant_id, channel, type_key, locale, app_id, display_name, content_type, subject, body, footer)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			tid, string(t.Channel), typeKey, t.Locale, appID,
			t.DisplayName, t.ContentType, t.Subject, t.Body, t.Footer,
		)
		return err
	})
}

func (r *Relational) Exists(ctx context.Context, ref template.TemplateRef) (bool, error) {
	const op = "check template"
	tid, err := r.tenantID(ctx, op, ref, ref.Tenant)
	if err != nil {
		return false, err
	}

	var one int
	err = r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT 1 FROM `+templatesTable+`
		WHERE tenant_id = ? AND channel = ? AND type_key = ? AND locale = ? AND app_id = ?`),
		tid, string(ref.Channel), ref.Key(), ref.Locale, ref.AppID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapSQLError(op, ref, err)
	}
	return true, nil
}

const templateColumns = `display_name, type_key, channel, locale, content_type, subject, body, footer`

func (r *Relational) Get(ctx context.Context, ref template.TemplateRef) (*template.Template, error) {
	const op = "get template"
	tid, err := r.tenantID(ctx, op, ref, ref.Tenant)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT `+templateColumns+` FROM `+templatesTable+`
		WHERE tenant_id = ? AND channel = ? AND type_key = ? AND locale = ? AND app_id = ?`),
		tid, string(ref.Channel), ref.Key(), ref.Locale, ref.AppID,
	)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapSQLError(op, ref, err)
	}
	return t, nil
}

func (r *Relational) ListOfType(ctx context.Context, ref template.TypeRef, appID string) ([]*template.Template, error) {
	const op = "list templates of type"
	tid, err := r.tenantID(ctx, op, ref, ref.Tenant)
	if err != nil {
		return nil, err
	}

	return r.queryTemplates(ctx, op, ref, `
		SELECT `+templateColumns+` FROM `+templatesTable+`
		WHERE tenant_id = ? AND channel = ? AND type_key = ? AND app_id = ?
		ORDER BY locale`,
		tid, string(ref.Channel), ref.Key(), appID,
	)
}

func (r *Relational) ListAll(ctx context.Context, channel template.Channel, appID, tenant string) ([]*template.Template, error) {
	const op = "list templates"
	key := template.ChannelKey{Channel: channel, AppID: appID, Tenant: tenant}
	tid, err := r.tenantID(ctx, op, key, tenant)
	if err != nil {
		return nil, err
	}

	return r.queryTemplates(ctx, op, key, `
		SELECT `+templateColumns+` FROM `+templatesTable+`
		WHERE tenant_id = ? AND channel = ? AND app_id = ?
		ORDER BY type_key, locale`,
		tid, string(channel), appID,
	)
}

func (r *Relational) Delete(ctx context.Context, ref template.TemplateRef) error {
	const op = "delete template"
	tid, err := r.tenantID(ctx, op, ref, ref.Tenant)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM `+templatesTable+`
		WHERE tenant_id = ? AND channel = ? AND type_key = ? AND locale = ? AND app_id = ?`),
		tid, string(ref.Channel), ref.Key(), ref.Locale, ref.AppID,
	)
	if err != nil {
		return wrapSQLError(op, ref, err)
	}
	return nil
}

func (r *Relational) DeleteOfType(ctx context.Context, ref template.TypeRef, appID string) error {
	const op = "delete templates of type"
	tid, err := r.tenantID(ctx, op, ref, ref.Tenant)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM `+templatesTable+`
		WHERE tenant_id = ? AND channel = ? AND type_key = ? AND app_id = ?`),
		tid, string(ref.Channel), ref.Key(), appID,
	)
	if err != nil {
		return wrapSQLError(op, ref, err)
	}
	return nil
}

func (r *Relational) queryTemplates(ctx context.Context, op string, key fmt.Stringer, query string, args ...any) ([]*template.Template, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, wrapSQLError(op, key, err)
	}
	defer rows.Close()

	var out []*template.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, wrapSQLError(op, key, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLError(op, key, err)
	}
	return out, nil
}

func (r *Relational) inTx(ctx context.Context, op string, key fmt.Stringer, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapSQLError(op, key, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return wrapSQLError(op, key, err)
	}
	if err := tx.Commit(); err != nil {
		return wrapSQLError(op, key, err)
	}
	return nil
}

func scanTemplate(s scanner) (*template.Template, error) {
	var (
		t       template.Template
		channel string
	)
	if err := s.Scan(&t.DisplayName, &t.Type, &channel, &t.Locale, &t.ContentType, &t.Subject, &t.Body, &t.Footer); err != nil {
		return nil, err
	}
	t.Channel = template.Channel(channel)
	return &t, nil
}

// wrapSQLError classifies a database error into a StoreError.
func wrapSQLError(op string, key fmt.Stringer, err error) error {
	kind := template.KindFailure
	if isUniqueViolation(err) {
		kind = template.KindDuplicate
	}
	return template.NewStoreError(op, key, kind, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode() {
		case sqlite3.CONSTRAINT_UNIQUE, sqlite3.CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}
