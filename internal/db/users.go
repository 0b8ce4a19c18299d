package db

import (
	"database/sql"
	"errors"

	"github.com/colloquy-ai/colloquy/internal/models"
)

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("user not found")

func (db *Database) CreateUser(email, passwordHash string) (*models.User, error) {
	query := `
        INSERT INTO users (email, password_hash, created_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Subscription: models.SubscriptionNone,
	}
	err := db.db.QueryRow(query, email, passwordHash).Scan(&user.ID, &user.CreatedAt)
	return user, err
}

func (db *Database) GetUserByEmail(email string) (*models.User, error) {
	return db.scanUser(db.db.QueryRow(userSelect+" WHERE email = ?", email))
}

func (db *Database) GetUserByID(id int64) (*models.User, error) {
	return db.scanUser(db.db.QueryRow(userSelect+" WHERE id = ?", id))
}

func (db *Database) GetUserByStripeCustomer(customerID string) (*models.User, error) {
	return db.scanUser(db.db.QueryRow(userSelect+" WHERE stripe_customer_id = ?", customerID))
}

const userSelect = `
        SELECT id, email, password_hash, stripe_customer_id, subscription, created_at
        FROM users`

func (db *Database) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash,
		&user.StripeCustomerID, &user.Subscription, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (db *Database) SetStripeCustomer(userID int64, customerID string) error {
	_, err := db.db.Exec("UPDATE users SET stripe_customer_id = ? WHERE id = ?", customerID, userID)
	return err
}

func (db *Database) SetSubscription(userID int64, status string) error {
	_, err := db.db.Exec("UPDATE users SET subscription = ? WHERE id = ?", status, userID)
	return err
}
