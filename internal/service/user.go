package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// UserService manages accounts and the driver roster.
type UserService struct {
	userRepo    repository.UserRepository
	transactor  repository.Transactor
	rosterCache redis.RosterCacheInterface
	hashCost    int
	now         func() time.Time
}

// NewUserService creates a new UserService. rosterCache may be nil.
func NewUserService(
	userRepo repository.UserRepository,
	transactor repository.Transactor,
	rosterCache redis.RosterCacheInterface,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		transactor:  transactor,
		rosterCache: rosterCache,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// CreateUserRequest contains the parameters for creating an account.
type CreateUserRequest struct {
	Actor       domain.Actor
	Login       string
	DisplayName string
	Role        string
	Password    string
}

// Create adds an account. Admin only.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	if !req.Actor.IsAdmin() {
		return nil, ErrNotPermitted
	}

	user, err := s.newUser(req.Login, req.DisplayName, req.Role, req.Password)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrLoginTaken
		}
		return nil, err
	}

	if user.IsDriver() {
		s.invalidateRoster(ctx)
	}
	return user, nil
}

func (s *UserService) newUser(login, displayName, role, password string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	displayName = strings.TrimSpace(displayName)
	if login == "" || displayName == "" {
		return nil, ErrMissingLogin
	}

	r, err := domain.ParseRole(role)
	if err != nil {
		return nil, ErrInvalidRole
	}

	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:           uuid.New().String(),
		Login:        login,
		DisplayName:  displayName,
		Role:         r,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}, nil
}

// List returns accounts in creation order, optionally restricted to one role. Admin only.
func (s *UserService) List(ctx context.Context, actor domain.Actor, role string) ([]*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrNotPermitted
	}

	var r domain.Role
	if role != "" {
		var err error
		if r, err = domain.ParseRole(role); err != nil {
			return nil, ErrInvalidRole
		}
	}

	users, err := s.userRepo.List(ctx, r)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

// Delete removes an account. Admin only.
// The last admin and drivers that still have rides cannot be deleted.
func (s *UserService) Delete(ctx context.Context, actor domain.Actor, userID string) error {
	if !actor.IsAdmin() {
		return ErrNotPermitted
	}
	if userID == "" {
		return ErrInvalidUserID
	}

	var deleted *domain.User
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		user, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			return userLookupError(err)
		}

		switch user.Role {
		case domain.RoleAdmin:
			admins, err := repos.Users.CountByRole(ctx, domain.RoleAdmin)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		case domain.RoleDriver:
			rides, err := repos.Rides.CountByDriver(ctx, user.ID)
			if err != nil {
				return err
			}
			if rides > 0 {
				return ErrDriverHasRides
			}
		}

		if err := repos.Users.Delete(ctx, user.ID); err != nil {
			if errors.Is(err, repository.ErrReferenced) {
				return ErrDriverHasRides
			}
			return userLookupError(err)
		}
		deleted = user
		return nil
	})
	if err != nil {
		return err
	}

	if deleted.IsDriver() {
		s.invalidateRoster(ctx)
	}
	log.Printf("user %s (%s) deleted by %s", deleted.Login, deleted.Role, actor.UserID)
	return nil
}

// Drivers returns the driver roster in creation order.
// The roster is served from the cache when possible; cache failures fall back to the store.
func (s *UserService) Drivers(ctx context.Context) ([]*domain.User, error) {
	if s.rosterCache != nil {
		cached, ok, err := s.rosterCache.GetDriverRoster(ctx)
		if err != nil {
			log.Printf("driver roster cache read failed: %v", err)
		}
		if ok {
			drivers := make([]*domain.User, 0, len(cached))
			for _, d := range cached {
				drivers = append(drivers, &domain.User{
					ID:          d.ID,
					Login:       d.Login,
					DisplayName: d.DisplayName,
					Role:        domain.RoleDriver,
				})
			}
			return drivers, nil
		}
	}

	drivers, err := s.userRepo.List(ctx, domain.RoleDriver)
	if err != nil {
		return nil, err
	}
	if drivers == nil {
		drivers = []*domain.User{}
	}

	if s.rosterCache != nil {
		entries := make([]redis.CachedDriver, 0, len(drivers))
		for _, d := range drivers {
			entries = append(entries, redis.CachedDriver{ID: d.ID, Login: d.Login, DisplayName: d.DisplayName})
		}
		if err := s.rosterCache.SetDriverRoster(ctx, entries); err != nil {
			log.Printf("driver roster cache write failed: %v", err)
		}
	}
	return drivers, nil
}

func (s *UserService) invalidateRoster(ctx context.Context) {
	if s.rosterCache == nil {
		return
	}
	if err := s.rosterCache.InvalidateDriverRoster(ctx); err != nil {
		log.Printf("driver roster cache invalidation failed: %v", err)
	}
}

// BootstrapUser is one account created on first start.
type BootstrapUser struct {
	Login       string
	DisplayName string
	Role        string
	Password    string
}

// Bootstrap creates the given accounts when the store holds no admin yet.
// It returns the number of accounts created. Logins that already exist are skipped.
func (s *UserService) Bootstrap(ctx context.Context, users []BootstrapUser) (int, error) {
	hasAdmin := false
	for _, u := range users {
		if u.Role == string(domain.RoleAdmin) {
			hasAdmin = true
			break
		}
	}

	created := 0
	err := s.transactor.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		admins, err := repos.Users.CountByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return err
		}
		if admins > 0 {
			return nil
		}
		if !hasAdmin {
			return ErrSeedWithoutAdmin
		}

		for _, u := range users {
			user, err := s.newUser(u.Login, u.DisplayName, u.Role, u.Password)
			if err != nil {
				return err
			}

			_, err = repos.Users.GetByLogin(ctx, user.Login)
			switch {
			case err == nil:
				continue
			case !errors.Is(err, repository.ErrNotFound):
				return err
			}

			if err := repos.Users.Create(ctx, user); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if created > 0 {
		s.invalidateRoster(ctx)
	}
	return created, nil
}

func userLookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
