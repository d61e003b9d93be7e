// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// PasswordHasher is the one-way hashing capability a User needs to manage its
// credential. *auth.PasswordService satisfies it.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) error
}

// User represents a registered account.
//
// PasswordHash carries the `json:"-"` tag so the hash can never leak through an
// API response, even if a handler encodes the whole struct by mistake.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// SetPassword hashes plaintext and stores only the hash.
func (u *User) SetPassword(h PasswordHasher, plaintext string) error {
	hash, err := h.Hash(plaintext)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword reports whether plaintext matches the stored hash.
func (u *User) CheckPassword(h PasswordHasher, plaintext string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return h.Verify(u.PasswordHash, plaintext) == nil
}
