package model

// User is the stored shape of a user. Password and Salt must never leave the
// service; handlers render a dedicated response type instead.
type User struct {
	ID            int64
	Email         string
	Password      string
	Salt          string
	EmailVerified bool
	Created       int64
	Modified      int64
}

// UserPatch lists the columns a partial write touches. Nil fields are left
// as they are.
type UserPatch struct {
	Email         *string
	Password      *string
	Salt          *string
	EmailVerified *bool
	Created       *int64
	Modified      *int64
}

func (p UserPatch) Empty() bool {
	return p.Email == nil && p.Password == nil && p.Salt == nil &&
		p.EmailVerified == nil && p.Created == nil && p.Modified == nil
}
