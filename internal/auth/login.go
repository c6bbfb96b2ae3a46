package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminFallback lets the deployment bootstrap with env credentials before any
// users exist. Hash is a bcrypt hash; empty disables the fallback.
type AdminFallback struct {
	Username string
	PassHash string
}

// POST /auth/login  { "username": "...", "password": "..." }
//
// Credentials are checked against the users table; the optional admin
// fallback is consulted when the user is unknown.
func LoginHandler(a *AuthService, db *sql.DB, admin AdminFallback) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		sub, role, ok, err := lookup(r, db, req.Username, req.Password)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok && admin.Username != "" && req.Username == admin.Username {
			if bcrypt.CompareHashAndPassword([]byte(admin.PassHash), []byte(req.Password)) == nil {
				sub, role, ok = admin.Username, "admin", true
			}
		}
		if !ok {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		tok, err := a.IssueJWT(sub, role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": role})
	}
}

// lookup checks the users table. An unknown user or a missing table is a
// plain "no", anything else is a real error.
func lookup(r *http.Request, db *sql.DB, username, password string) (sub, role string, ok bool, err error) {
	var id, hash string
	err = db.QueryRowContext(r.Context(),
		`SELECT id, pass_hash, role FROM users WHERE username=$1`, username).
		Scan(&id, &hash, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUsersTableMissing(err) {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", "", false, nil
	}
	return id, role, true, nil
}

func isUsersTableMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table: users") || // sqlite
		strings.Contains(msg, `relation "users" does not exist`) // postgres
}
