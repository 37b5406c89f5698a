package repository

import (
	"database/sql"
	"fmt"

	"BeatFlow/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(user *model.User) error
	GetUserByID(id string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	UpdateProfile(userID, bio, avatarPath string) error
}

// mysqlUserRepository implements UserRepository for MySQL.
type mysqlUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new mysqlUserRepository.
func NewMySQLUserRepository(db *sql.DB) UserRepository {
	return &mysqlUserRepository{db: db}
}

// CreateUser adds a new user to the database.
func (r *mysqlUserRepository) CreateUser(user *model.User) error {
	query := "INSERT INTO users (id, name, email, password_hash, user_type, bio, avatar_path) VALUES (?, ?, ?, ?, ?, ?, ?)"
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare create user statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(user.ID, user.Name, user.Email, user.PasswordHash, user.UserType, user.Bio, user.AvatarPath); err != nil {
		return fmt.Errorf("failed to execute create user statement: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *mysqlUserRepository) GetUserByID(id string) (*model.User, error) {
	query := "SELECT id, name, email, password_hash, user_type, bio, avatar_path, created_at, updated_at FROM users WHERE id = ?"
	row := r.db.QueryRow(query, id)
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.UserType, &user.Bio, &user.AvatarPath, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user row for ID %s: %w", id, err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (r *mysqlUserRepository) GetUserByEmail(email string) (*model.User, error) {
	query := "SELECT id, name, email, password_hash, user_type, bio, avatar_path, created_at, updated_at FROM users WHERE email = ?"
	row := r.db.QueryRow(query, email)
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.UserType, &user.Bio, &user.AvatarPath, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user row for email %s: %w", email, err)
	}
	return user, nil
}

// UpdateProfile updates the mutable profile fields of a user.
func (r *mysqlUserRepository) UpdateProfile(userID, bio, avatarPath string) error {
	query := "UPDATE users SET bio = ?, avatar_path = ?, updated_at = NOW() WHERE id = ?"
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare update profile statement: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(bio, avatarPath, userID); err != nil {
		return fmt.Errorf("failed to update profile for user %s: %w", userID, err)
	}
	return nil
}
