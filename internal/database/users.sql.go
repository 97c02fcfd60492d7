package database

import (
	"context"

	"github.com/google/uuid"
)

const createUser = `
INSERT INTO users (email, hashed_password, full_name, role)
VALUES ($1, $2, $3, $4)
RETURNING id, email, hashed_password, full_name, role, created_at
`

type CreateUserParams struct {
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.Email, arg.HashedPassword, arg.FullName, arg.Role))
}

const getUserByEmail = `
SELECT id, email, hashed_password, full_name, role, created_at
FROM users
WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `
SELECT id, email, hashed_password, full_name, role, created_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const getActiveAddressForUser = `
SELECT id, user_id, street, number, is_active
FROM addresses
WHERE id = $1 AND user_id = $2 AND is_active = TRUE
`

type GetActiveAddressForUserParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// GetActiveAddressForUser verifies the address belongs to the ordering user;
// pgx.ErrNoRows means it does not (or was deactivated).
func (q *Queries) GetActiveAddressForUser(ctx context.Context, arg GetActiveAddressForUserParams) (Address, error) {
	var a Address
	err := q.db.QueryRow(ctx, getActiveAddressForUser, arg.ID, arg.UserID).
		Scan(&a.ID, &a.UserID, &a.Street, &a.Number, &a.IsActive)
	return a, err
}

const createAddress = `
INSERT INTO addresses (user_id, street, number, is_active)
VALUES ($1, $2, $3, TRUE)
RETURNING id, user_id, street, number, is_active
`

type CreateAddressParams struct {
	UserID uuid.UUID
	Street string
	Number string
}

func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	var a Address
	err := q.db.QueryRow(ctx, createAddress, arg.UserID, arg.Street, arg.Number).
		Scan(&a.ID, &a.UserID, &a.Street, &a.Number, &a.IsActive)
	return a, err
}

const listAddressesForUser = `
SELECT id, user_id, street, number, is_active
FROM addresses
WHERE user_id = $1 AND is_active = TRUE
ORDER BY street, number
`

func (q *Queries) ListAddressesForUser(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	rows, err := q.db.Query(ctx, listAddressesForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var addresses []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Street, &a.Number, &a.IsActive); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

const deactivateAddress = `
UPDATE addresses SET is_active = FALSE
WHERE id = $1 AND user_id = $2
`

type DeactivateAddressParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

func (q *Queries) DeactivateAddress(ctx context.Context, arg DeactivateAddressParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deactivateAddress, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listUsers = `
SELECT id, email, hashed_password, full_name, role, created_at
FROM users
ORDER BY created_at DESC
`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.CreatedAt)
	return u, err
}
