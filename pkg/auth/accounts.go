package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"learningpulse/pkg/domain"
	"learningpulse/pkg/persist"
)

// KeyRegisteredUsers holds the local accounts, keyed by lowercase email.
const KeyRegisteredUsers = "@registered_users"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Record is a locally registered account.
type Record struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash,omitempty"`

	// Password is the plaintext field written by older clients. It is cleared
	// on the first successful login.
	Password  string    `json:"password,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// UnmarshalJSON accepts numeric ids, which older clients wrote.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	r.ID = ""
	if len(aux.ID) > 0 && string(aux.ID) != "null" {
		var id string
		if err := json.Unmarshal(aux.ID, &id); err != nil {
			id = string(aux.ID)
		}
		r.ID = id
	}
	return nil
}

// User converts the record to a session user carrying token.
func (r Record) User(token string) domain.User {
	return domain.User{
		ID:       r.ID,
		Name:     r.Name,
		Email:    r.Email,
		Username: r.Username,
		Token:    token,
	}
}

// Accounts is the registry of locally registered users. The registry is read
// on every call so a failed read never stands in for the stored records.
type Accounts struct {
	p persist.Persister

	// mu serializes read-modify-write cycles on the registry key.
	mu sync.Mutex
}

func NewAccounts(p persist.Persister) *Accounts {
	return &Accounts{p: p}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// loadLocked reads the registry. A missing key is an empty registry; an
// unreadable or undecodable one is an error and must not be written over.
func (a *Accounts) loadLocked(ctx context.Context) (map[string]Record, error) {
	records, err := persist.LoadStrict(ctx, a.p, KeyRegisteredUsers, map[string]Record{})
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if records == nil {
		records = map[string]Record{}
	}
	return records, nil
}

// Register creates a record for reg. An existing email is left untouched.
func (a *Accounts) Register(ctx context.Context, reg domain.Registration) (Record, error) {
	name := strings.TrimSpace(reg.Name)
	email := normalizeEmail(reg.Email)
	if name == "" {
		return Record{}, fmt.Errorf("%w: name is required", ErrInvalidRegistration)
	}
	if !emailPattern.MatchString(email) {
		return Record{}, fmt.Errorf("%w: invalid email", ErrInvalidRegistration)
	}
	if err := ValidatePassword(reg.Password); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrInvalidRegistration, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	records, err := a.loadLocked(ctx)
	if err != nil {
		return Record{}, err
	}
	if _, exists := records[email]; exists {
		return Record{}, ErrDuplicateRegistration
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return Record{}, fmt.Errorf("hash password: %w", err)
	}
	rec := Record{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Username:     email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	records[email] = rec
	a.p.Write(KeyRegisteredUsers, records)
	return rec, nil
}

// Lookup finds the record registered under identifier.
func (a *Accounts) Lookup(ctx context.Context, identifier string) (Record, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	records, err := a.loadLocked(ctx)
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := records[normalizeEmail(identifier)]
	return rec, ok, nil
}

// Authenticate checks password for a local account. found is false when no
// local account matches identifier, in which case the caller may try elsewhere.
// A registry read failure is returned with found false and must not be
// treated as a missing account.
func (a *Accounts) Authenticate(ctx context.Context, identifier, password string) (rec Record, found bool, err error) {
	key := normalizeEmail(identifier)

	a.mu.Lock()
	defer a.mu.Unlock()
	records, err := a.loadLocked(ctx)
	if err != nil {
		return Record{}, false, err
	}
	rec, found = records[key]
	if !found {
		return Record{}, false, nil
	}

	if rec.PasswordHash != "" {
		if !CheckPassword(password, rec.PasswordHash) {
			return Record{}, true, ErrInvalidCredentials
		}
		return rec, true, nil
	}
	if !checkLegacyPassword(password, rec.Password) {
		return Record{}, true, ErrInvalidCredentials
	}

	hash, err := HashPassword(password)
	if err != nil {
		// The login itself succeeded; keep the legacy record for next time.
		return rec, true, nil
	}
	rec.PasswordHash = hash
	rec.Password = ""
	records[key] = rec
	a.p.Write(KeyRegisteredUsers, records)
	return rec, true, nil
}
