package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tablereserve/internal/filter"
	"github.com/xxxsen/tablereserve/internal/model"
	appErr "github.com/xxxsen/tablereserve/internal/pkg/errors"
	"github.com/xxxsen/tablereserve/internal/pkg/jwt"
	"github.com/xxxsen/tablereserve/internal/pkg/password"
	"github.com/xxxsen/tablereserve/internal/pkg/timeutil"
	"github.com/xxxsen/tablereserve/internal/repo"
)

type UserService struct {
	users     *repo.UserRepo
	hasher    *password.Hasher
	jwtSecret []byte
	jwtTTL    time.Duration
	newID     func() int64
}

func NewUserService(users *repo.UserRepo, hasher *password.Hasher, secret []byte, ttl time.Duration) *UserService {
	return &UserService{
		users:     users,
		hasher:    hasher,
		jwtSecret: secret,
		jwtTTL:    ttl,
		newID:     newUserID,
	}
}

// ReplaceInput is the full body of a replace. Nil timestamps fall back to
// the current time, as they do on create.
type ReplaceInput struct {
	Email         string
	Password      string
	EmailVerified bool
	Created       *int64
	Modified      *int64
}

// Create validates, rejects duplicates case-insensitively, hashes and stores
// a new user.
func (s *UserService) Create(ctx context.Context, email, plainPassword string) (*model.User, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(plainPassword) == "" {
		return nil, appErr.Invalid("email and password are required")
	}
	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, appErr.ErrEmailExists
	case !errors.Is(err, appErr.ErrNotFound):
		return nil, err
	}
	hashed, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, err
	}
	now := timeutil.NowUnixMilli()
	user := &model.User{
		ID:       s.newID(),
		Email:    email,
		Password: hashed.Hash,
		Salt:     hashed.Salt,
		Created:  now,
		Modified: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, appErr.ErrConflict) {
			return nil, s.createConflict(ctx, user)
		}
		return nil, err
	}
	logutil.GetLogger(ctx).Info("user created", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login returns the user and a signed access key.
func (s *UserService) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	if strings.TrimSpace(email) == "" || plainPassword == "" {
		return nil, "", appErr.ErrUnauthorized
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, "", appErr.ErrUnauthorized
		}
		return nil, "", err
	}
	if err := password.Compare(user.Password, user.Salt, plainPassword); err != nil {
		return nil, "", appErr.ErrUnauthorized
	}
	token, err := jwt.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// createConflict tells a concurrent create of the same email apart from an
// id collision, which stays ErrConflict.
func (s *UserService) createConflict(ctx context.Context, user *model.User) error {
	if _, err := s.users.FindByEmail(ctx, user.Email); err == nil {
		return appErr.ErrEmailExists
	}
	logutil.GetLogger(ctx).Warn("user id collision on create", zap.Int64("user_id", user.ID))
	return appErr.ErrConflict
}

func (s *UserService) Count(ctx context.Context, where map[string]interface{}) (int64, error) {
	return s.users.Count(ctx, where)
}

func (s *UserService) Find(ctx context.Context, f *filter.Filter) ([]model.User, error) {
	return s.users.List(ctx, f)
}

func (s *UserService) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) UpdateAll(ctx context.Context, where map[string]interface{}, patch model.UserPatch) (int64, error) {
	if err := s.preparePatch(&patch); err != nil {
		return 0, err
	}
	count, err := s.users.UpdateAll(ctx, where, patch)
	return count, mapWriteErr(err)
}

func (s *UserService) UpdateByID(ctx context.Context, id int64, patch model.UserPatch) error {
	if err := s.preparePatch(&patch); err != nil {
		return err
	}
	return mapWriteErr(s.users.UpdateByID(ctx, id, patch))
}

func (s *UserService) Replace(ctx context.Context, id int64, in ReplaceInput) error {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Password) == "" {
		return appErr.Invalid("email and password are required")
	}
	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return err
	}
	now := timeutil.NowUnixMilli()
	user := &model.User{
		ID:            id,
		Email:         in.Email,
		Password:      hashed.Hash,
		Salt:          hashed.Salt,
		EmailVerified: in.EmailVerified,
		Created:       now,
		Modified:      now,
	}
	if in.Created != nil {
		user.Created = *in.Created
	}
	if in.Modified != nil {
		user.Modified = *in.Modified
	}
	return mapWriteErr(s.users.Replace(ctx, user))
}

func (s *UserService) DeleteByID(ctx context.Context, id int64) error {
	return s.users.DeleteByID(ctx, id)
}

// preparePatch rejects blank required fields and swaps a plaintext password
// for a fresh hash and salt. modified is left alone.
func (s *UserService) preparePatch(patch *model.UserPatch) error {
	patch.Salt = nil
	if patch.Email != nil && strings.TrimSpace(*patch.Email) == "" {
		return appErr.Invalid("email must not be empty")
	}
	if patch.Password == nil {
		return nil
	}
	if strings.TrimSpace(*patch.Password) == "" {
		return appErr.Invalid("password must not be empty")
	}
	hashed, err := s.hasher.Hash(*patch.Password)
	if err != nil {
		return err
	}
	patch.Password = &hashed.Hash
	patch.Salt = &hashed.Salt
	return nil
}

func mapWriteErr(err error) error {
	if errors.Is(err, appErr.ErrConflict) {
		return appErr.ErrEmailExists
	}
	return err
}
