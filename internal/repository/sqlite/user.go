package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/RahulSriwastaw/backend/internal/apperror"
	"github.com/RahulSriwastaw/backend/internal/model"
	"github.com/RahulSriwastaw/backend/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, external_uid, email, username, full_name, phone,
	profile_image, password_hash, role, is_creator, is_verified,
	points_balance, status, total_generations, last_active, member_since,
	updated_at`

// FindByIdentityKeys matches a record on either unique key. When both keys
// would match (they should always land on the same row) the provider UID
// wins, which keeps the result deterministic even if the invariant is ever
// violated out-of-band.
func (db *DB) FindByIdentityKeys(ctx context.Context, externalUID, email string) (*model.User, error) {
	email = strings.ToLower(email)

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE (? <> '' AND external_uid = ?) OR email = ?
		 ORDER BY (external_uid = ?) DESC
		 LIMIT 1`,
		externalUID, externalUID, email, externalUID,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: finding user by identity keys: %w", err)
	}
	return user, nil
}

// FindByEmail looks up a record by its lower-cased email only. This is the
// password-login path: no OR across keys, absence is (nil, nil).
func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(email),
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: finding user by email: %w", err)
	}
	return user, nil
}

// FindByID retrieves a user by internal ID.
// Returns apperror.NotFound if no user exists with that ID.
func (db *DB) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

// Create inserts a new user record, assigning ID and timestamps in place.
//
// A UNIQUE violation (two near-simultaneous first logins for the same
// identity) comes back as apperror.DuplicateKey with the violated field —
// the reconciliation engine re-looks-up and converges on the winning row.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	if user.MemberSince.IsZero() {
		user.MemberSince = now
	}
	if user.LastActive.IsZero() {
		user.LastActive = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullString(user.ExternalUID),
		user.Email,
		user.Username,
		user.FullName,
		user.Phone,
		user.ProfileImage,
		nullString(user.PasswordHash),
		string(user.Role),
		user.IsCreator,
		user.IsVerified,
		user.PointsBalance,
		string(user.Status),
		user.TotalGenerations,
		user.LastActive,
		user.MemberSince,
		user.UpdatedAt,
	)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// Update saves the full record by ID. MemberSince and PointsBalance are
// written as-is — the service layer owns their set-once semantics; the
// store does plain full-record replace.
func (db *DB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()
	user.Email = strings.ToLower(user.Email)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
			external_uid = ?, email = ?, username = ?, full_name = ?,
			phone = ?, profile_image = ?, password_hash = ?, role = ?,
			is_creator = ?, is_verified = ?, points_balance = ?, status = ?,
			total_generations = ?, last_active = ?, member_since = ?,
			updated_at = ?
		 WHERE id = ?`,
		nullString(user.ExternalUID),
		user.Email,
		user.Username,
		user.FullName,
		user.Phone,
		user.ProfileImage,
		nullString(user.PasswordHash),
		string(user.Role),
		user.IsCreator,
		user.IsVerified,
		user.PointsBalance,
		string(user.Status),
		user.TotalGenerations,
		user.LastActive,
		user.MemberSince,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}
	if affected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u            model.User
		externalUID  sql.NullString
		passwordHash sql.NullString
		role, status string
	)

	err := row.Scan(
		&u.ID,
		&externalUID,
		&u.Email,
		&u.Username,
		&u.FullName,
		&u.Phone,
		&u.ProfileImage,
		&passwordHash,
		&role,
		&u.IsCreator,
		&u.IsVerified,
		&u.PointsBalance,
		&status,
		&u.TotalGenerations,
		&u.LastActive,
		&u.MemberSince,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.ExternalUID = externalUID.String
	u.PasswordHash = passwordHash.String
	u.Role = model.Role(role)
	u.Status = model.Status(status)
	return &u, nil
}
