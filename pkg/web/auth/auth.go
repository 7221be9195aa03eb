// Copyright 2022 The LVS Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"lvs/pkg/log"
)

// Account contains user information.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Password    []byte `json:"password,omitempty"`    // Hashed password.
	RawPassword string `json:"rawPassword,omitempty"` // Only used when changing password.
	IsAdmin     bool   `json:"isAdmin"`
}

// Response is returned by ValidateAuth.
type Response struct {
	IsValid bool
	User    Account
}

// Authenticator authenticates http requests.
type Authenticator struct {
	path      string // Path to save file.
	accounts  map[string]Account
	authCache map[string]Response

	hashCost int

	log *log.Logger
	mu  sync.Mutex
}

const defaultHashCost = 10

// NewBasicAuthenticator returns authenticator using basicAuth. A
// missing account file disables the control surface until an account
// is created.
func NewBasicAuthenticator(path string, logger *log.Logger) (*Authenticator, error) {
	a := Authenticator{
		path:      path,
		accounts:  make(map[string]Account),
		authCache: make(map[string]Response),

		hashCost: defaultHashCost,
		log:      logger,
	}

	file, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if file != nil {
		json.Unmarshal(file, &a.accounts) //nolint:errcheck
	}

	return &a, nil
}

func (a *Authenticator) userByName(name string) (Account, bool) {
	defer a.mu.Unlock()
	a.mu.Lock()

	for _, u := range a.accounts {
		if u.Username == name {
			return u, true
		}
	}
	return Account{}, false
}

// ValidateAuth should always take about the same amount of time to
// run, even when username or password is invalid.
func (a *Authenticator) ValidateAuth(auth string) Response {
	a.mu.Lock()
	if cached, exist := a.authCache[auth]; exist {
		a.mu.Unlock()
		return cached
	}
	a.mu.Unlock()

	name, pass := parseBasicAuth(auth)
	user, found := a.userByName(name)

	response := Response{}
	if !found || name != user.Username {
		// Generate fake hash to prevent timing based attacks.
		bcrypt.GenerateFromPassword([]byte(name), a.hashCost) //nolint:errcheck
	} else if passwordsMatch(user.Password, pass) {
		response = Response{IsValid: true, User: user}
	}

	a.mu.Lock()
	a.authCache[auth] = response
	a.mu.Unlock()
	return response
}

func (a *Authenticator) logFailedLogin(r *http.Request) {
	username, _ := parseBasicAuth(r.Header.Get("Authorization"))
	a.log.Info().Src("auth").
		Msgf("failed login: username: %v addr: %v", username, r.RemoteAddr)
}

// Modified from net/http request.go.
func parseBasicAuth(auth string) (username, password string) {
	const prefix = "Basic "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return
	}
	c, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return
	}
	cs := string(c)
	s := strings.IndexByte(cs, ':')
	if s < 0 {
		return
	}
	return cs[:s], cs[s+1:]
}

func passwordsMatch(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// UsersList returns a censored user list.
func (a *Authenticator) UsersList() map[string]Account {
	defer a.mu.Unlock()
	a.mu.Lock()

	users := make(map[string]Account, len(a.accounts))
	for id, user := range a.accounts {
		users[id] = Account{
			ID:       user.ID,
			Username: user.Username,
			IsAdmin:  user.IsAdmin,
		}
	}
	return users
}

// UserSet set user details.
func (a *Authenticator) UserSet(newUser Account) error {
	defer a.mu.Unlock()
	a.mu.Lock()

	if newUser.ID == "" {
		return errors.New("missing id")
	}
	if newUser.Username == "" {
		return errors.New("missing username")
	}

	user, exists := a.accounts[newUser.ID]
	if !exists && newUser.RawPassword == "" {
		return errors.New("password required for new users")
	}

	user.ID = newUser.ID
	user.Username = newUser.Username
	user.IsAdmin = newUser.IsAdmin
	if newUser.RawPassword != "" {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(newUser.RawPassword), a.hashCost)
		user.Password = hashed
	}

	a.accounts[user.ID] = user
	a.authCache = make(map[string]Response)

	if err := a.saveToFile(); err != nil {
		return fmt.Errorf("could not save users to file: %w", err)
	}
	return nil
}

// ErrUserNotExist user does not exist.
var ErrUserNotExist = errors.New("user does not exist")

// UserDelete deletes user by id.
func (a *Authenticator) UserDelete(id string) error {
	defer a.mu.Unlock()
	a.mu.Lock()

	if _, exists := a.accounts[id]; !exists {
		return ErrUserNotExist
	}
	delete(a.accounts, id)
	a.authCache = make(map[string]Response)

	return a.saveToFile()
}

func (a *Authenticator) saveToFile() error {
	users, err := json.MarshalIndent(a.accounts, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.path, users, 0o600)
}

// User blocks unauthenticated requests.
func (a *Authenticator) User(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := a.ValidateAuth(r.Header.Get("Authorization"))
		if !response.IsValid {
			a.logFailedLogin(r)
			w.Header().Set("WWW-Authenticate", `Basic realm="lvs"`)
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Admin blocks requests from non-admins.
func (a *Authenticator) Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := a.ValidateAuth(r.Header.Get("Authorization"))
		if !response.IsValid || !response.User.IsAdmin {
			a.logFailedLogin(r)
			w.Header().Set("WWW-Authenticate", `Basic realm="lvs"`)
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
