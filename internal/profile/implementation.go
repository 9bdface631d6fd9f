// internal/profile/implementation.go
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Jagadesh17/exchangeease/internal/identity"
	"github.com/Jagadesh17/exchangeease/internal/store"
)

// ErrRateLimited is returned when registration or login attempts arrive
// faster than the limiter allows.
var ErrRateLimited = errors.New("rate limit exceeded")

const minPasswordLength = 8

// Limiter settings per email: a burst of 5 attempts, refilling one every
// 12 seconds. The map is reset once it grows past limiterMapMax entries.
const (
	limiterBurst  = 5
	limiterMapMax = 1024
)

var limiterRate = rate.Every(12 * time.Second)

// service implements the Service interface.
type service struct {
	db     *sql.DB
	tokens *identity.Tokens

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewService creates a new profile service instance.
func NewService(db *sql.DB, tokens *identity.Tokens) Service {
	return &service{
		db:       db,
		tokens:   tokens,
		limiters: make(map[string]*rate.Limiter),
	}
}

// allow throttles register and login attempts per email, so one noisy
// caller cannot lock everyone else out.
func (s *service) allow(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.limiters) > limiterMapMax {
		s.limiters = make(map[string]*rate.Limiter)
	}
	limiter, ok := s.limiters[email]
	if !ok {
		limiter = rate.NewLimiter(limiterRate, limiterBurst)
		s.limiters[email] = limiter
	}
	return limiter.Allow()
}

// Register creates the profile and its credential in one transaction and
// returns a logged-in session.
func (s *service) Register(ctx context.Context, email, name, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if !s.allow(email) {
		return nil, ErrRateLimited
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email: %w", store.ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", store.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, store.ErrValidation)
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &Profile{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	credential := &Credential{
		ProfileID:    profile.ID,
		PasswordHash: passwordHash,
		Salt:         salt,
	}

	if err := s.insertProfile(ctx, profile, credential); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w: %w", email, ErrEmailTaken, store.ErrDuplicateRequest)
		}
		return nil, fmt.Errorf("failed to create profile: %w", store.Classify(err))
	}

	token, err := s.tokens.Issue(profile.ID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &Session{Token: token, Profile: profile}, nil
}

func (s *service) insertProfile(ctx context.Context, profile *Profile, credential *Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	profileQuery := `
		INSERT INTO profiles (id, email, name, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = tx.ExecContext(ctx, profileQuery, profile.ID, profile.Email, profile.Name, profile.CreatedAt)
	if err != nil {
		return err
	}

	credQuery := `
		INSERT INTO credentials (profile_id, password_hash, salt)
		VALUES ($1, $2, $3)
	`
	_, err = tx.ExecContext(ctx, credQuery, credential.ProfileID, credential.PasswordHash, credential.Salt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Authenticate verifies credentials and returns a session token. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !s.allow(email) {
		return nil, ErrRateLimited
	}

	profile, err := s.getByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invalid credentials: %w", store.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("authentication failed: %w", store.Classify(err))
	}

	credential, err := s.getCredential(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", store.Classify(err))
	}

	ok, err := verifyPassword(password, credential.Salt, credential.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("invalid credentials: %w", store.ErrUnauthenticated)
	}

	token, err := s.tokens.Issue(profile.ID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &Session{Token: token, Profile: profile}, nil
}

func (s *service) getByEmail(ctx context.Context, email string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, bio, location, profile_pic, created_at
		FROM profiles
		WHERE email = $1
	`, email)
	return scanProfile(row)
}

func (s *service) getCredential(ctx context.Context, profileID uuid.UUID) (*Credential, error) {
	credential := &Credential{}
	err := s.db.QueryRowContext(ctx, `
		SELECT profile_id, password_hash, salt
		FROM credentials
		WHERE profile_id = $1
	`, profileID).Scan(&credential.ProfileID, &credential.PasswordHash, &credential.Salt)
	if err != nil {
		return nil, err
	}
	return credential, nil
}

// Get retrieves a profile by ID.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, bio, location, profile_pic, created_at
		FROM profiles
		WHERE id = $1
	`, id)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", store.Classify(err))
	}
	return profile, nil
}

// Update applies a partial edit, owner only. Last write wins.
func (s *service) Update(ctx context.Context, id, actorID uuid.UUID, patch Patch) (*Profile, error) {
	if id != actorID {
		return nil, fmt.Errorf("profile %s: %w", id, store.ErrNotAuthorized)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		current.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Bio != nil {
		current.Bio = *patch.Bio
	}
	if patch.Location != nil {
		current.Location = *patch.Location
	}
	if patch.ProfilePic != nil {
		current.ProfilePic = *patch.ProfilePic
	}
	if current.Name == "" {
		return nil, fmt.Errorf("name cannot be empty: %w", store.ErrValidation)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE profiles
		SET name = $2, bio = NULLIF($3, ''), location = NULLIF($4, ''), profile_pic = NULLIF($5, '')
		WHERE id = $1
	`, id, current.Name, current.Bio, current.Location, current.ProfilePic)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", store.Classify(err))
	}

	return current, nil
}

// UserStats counts listings and completed swaps. A swap counts when an
// accepted match involves the user on either side.
func (s *service) UserStats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM profiles WHERE id = $1`, id).Scan(&stats.MemberSince)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", store.Classify(err))
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM books WHERE owner_id = $1`, id).Scan(&stats.BooksListed)
	if err != nil {
		return nil, fmt.Errorf("failed to count books: %w", store.Classify(err))
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM matches m
		LEFT JOIN books b ON b.id = m.book_requested_id
		WHERE m.status = 'accepted'
		  AND (m.requester_id = $1 OR b.owner_id = $1)
	`, id).Scan(&stats.SuccessfulSwaps)
	if err != nil {
		return nil, fmt.Errorf("failed to count swaps: %w", store.Classify(err))
	}

	return stats, nil
}

func scanProfile(row *sql.Row) (*Profile, error) {
	profile := &Profile{}
	var bio, location, pic, name sql.NullString
	err := row.Scan(&profile.ID, &profile.Email, &name, &bio, &location, &pic, &profile.CreatedAt)
	if err != nil {
		return nil, err
	}
	profile.Name = name.String
	profile.Bio = bio.String
	profile.Location = location.String
	profile.ProfilePic = pic.String
	return profile, nil
}
