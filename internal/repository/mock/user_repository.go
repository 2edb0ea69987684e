package mock

import (
	"context"
	"sync"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
)

// UserRepository is a mock implementation of repository.UserRepository.
type UserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
	plans map[string]*models.Plan // by plan ID

	// Error injection for testing error handling
	// NOTE: Set these BEFORE concurrent access begins
	GetByIDError error
	GetPlanError error
}

// NewUserRepository creates a new mock UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]*models.User),
		plans: make(map[string]*models.Plan),
	}
}

// Ensure UserRepository implements repository.UserRepository
var _ repository.UserRepository = (*UserRepository)(nil)

// Reset clears all users, plans, and injected errors.
func (r *UserRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[string]*models.User)
	r.plans = make(map[string]*models.Plan)
	r.GetByIDError = nil
	r.GetPlanError = nil
}

// SetUser installs a user and their plan, for test setup.
func (r *UserRepository) SetUser(user *models.User, plan *models.Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := *user
	r.users[user.ID] = &u
	if plan != nil {
		p := *plan
		r.plans[plan.ID] = &p
	}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if r.GetByIDError != nil {
		return nil, r.GetByIDError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := *user
	return &u, nil
}

// GetPlan retrieves the plan for a user.
func (r *UserRepository) GetPlan(ctx context.Context, userID string) (*models.Plan, error) {
	if r.GetPlanError != nil {
		return nil, r.GetPlanError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	plan, ok := r.plans[user.PlanID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p := *plan
	return &p, nil
}

// SessionRepository is a mock implementation of repository.SessionRepository.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]string // token -> user ID

	// Error injection for testing error handling
	ResolveUserError error
}

// NewSessionRepository creates a new mock SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]string),
	}
}

// Ensure SessionRepository implements repository.SessionRepository
var _ repository.SessionRepository = (*SessionRepository)(nil)

// Reset clears all sessions and injected errors.
func (r *SessionRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions = make(map[string]string)
	r.ResolveUserError = nil
}

// SetSession installs a session token for a user, for test setup.
func (r *SessionRepository) SetSession(token, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[token] = userID
}

// ResolveUser returns the user ID for a known session token.
func (r *SessionRepository) ResolveUser(ctx context.Context, sessionToken string) (string, error) {
	if r.ResolveUserError != nil {
		return "", r.ResolveUserError
	}
	if sessionToken == "" {
		return "", repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.sessions[sessionToken]
	if !ok {
		return "", repository.ErrNotFound
	}
	return userID, nil
}
