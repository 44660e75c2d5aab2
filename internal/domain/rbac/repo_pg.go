package rbac

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type roleRepoPG struct{ pool *pgxpool.Pool }

func NewRoleRepoPG(pool *pgxpool.Pool) RoleRepository { return &roleRepoPG{pool: pool} }

func (r *roleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *roleRepoPG) Add(ctx context.Context, identity string, role Role, grantedBy string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO role_assignment (identity, role, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity, role) DO NOTHING`,
		identity, string(role), grantedBy)
	return err
}

func (r *roleRepoPG) Remove(ctx context.Context, identity string, role Role) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM role_assignment WHERE identity = $1 AND role = $2`,
		identity, string(role))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *roleRepoPG) Has(ctx context.Context, identity string, role Role) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_assignment WHERE identity = $1 AND role = $2)`,
		identity, string(role)).Scan(&exists)
	return exists, err
}

func (r *roleRepoPG) CountHolders(ctx context.Context, role Role) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM role_assignment WHERE role = $1`, string(role)).Scan(&n)
	return n, err
}

func (r *roleRepoPG) ListRoles(ctx context.Context, identity string) ([]Role, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT role FROM role_assignment WHERE identity = $1 ORDER BY role`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		roles = append(roles, Role(s))
	}
	return roles, rows.Err()
}
