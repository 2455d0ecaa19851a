package handler

import (
	"time"

	"github.com/xxxsen/tablereserve/internal/model"
	"github.com/xxxsen/tablereserve/internal/pkg/timeutil"
)

// userResponse is the only outward shape of a user; it has no password or
// salt fields at all.
type userResponse struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Created       time.Time `json:"created"`
	Modified      time.Time `json:"modified"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Created:       timeutil.FromUnixMilli(u.Created),
		Modified:      timeutil.FromUnixMilli(u.Modified),
	}
}

func toUserResponses(users []model.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	return out
}

type countResponse struct {
	Count int64 `json:"count"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessKey string       `json:"accessKey"`
	Profile   userResponse `json:"profile"`
}

// userWriteRequest is the body of PATCH and PUT. Salt is not accepted.
type userWriteRequest struct {
	ID            *int64     `json:"id"`
	Email         *string    `json:"email"`
	Password      *string    `json:"password"`
	EmailVerified *bool      `json:"emailVerified"`
	Created       *time.Time `json:"created"`
	Modified      *time.Time `json:"modified"`
}

func (r userWriteRequest) toPatch() model.UserPatch {
	return model.UserPatch{
		Email:         r.Email,
		Password:      r.Password,
		EmailVerified: r.EmailVerified,
		Created:       unixMilli(r.Created),
		Modified:      unixMilli(r.Modified),
	}
}

func unixMilli(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
