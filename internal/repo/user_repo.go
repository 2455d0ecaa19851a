package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/tablereserve/internal/filter"
	"github.com/xxxsen/tablereserve/internal/model"
	"github.com/xxxsen/tablereserve/internal/pkg/dbutil"
	appErr "github.com/xxxsen/tablereserve/internal/pkg/errors"
)

const userTable = "users"

var userColumns = []string{"id", "email", "password", "salt", "email_verified", "created", "modified"}

// UserSchema lists the properties callers may filter and order on. Password
// and salt are never exposed.
var UserSchema = filter.Schema{
	"id":            {Column: "id", Kind: filter.KindInt},
	"email":         {Column: "email", Kind: filter.KindString},
	"emailVerified": {Column: "email_verified", Kind: filter.KindBool},
	"created":       {Column: "created", Kind: filter.KindTime},
	"modified":      {Column: "modified", Kind: filter.KindTime},
}

const defaultUserOrder = "id asc"

type UserRepo struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

func NewUserRepo(db *sql.DB, driver string) *UserRepo {
	return &UserRepo{db: db, dialect: dbutil.NewDialect(driver)}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	data := map[string]interface{}{
		"id":             user.ID,
		"email":          user.Email,
		"email_key":      emailKey(user.Email),
		"password":       user.Password,
		"salt":           user.Salt,
		"email_verified": user.EmailVerified,
		"created":        user.Created,
		"modified":       user.Modified,
	}
	sqlStr, args, err := builder.BuildInsert(userTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = r.dialect.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, map[string]interface{}{"id": id})
}

// FindByEmail matches email case-insensitively.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, map[string]interface{}{"email_key": emailKey(email)})
}

// emailKey is the folded form backing the unique index. Folding happens here
// because sqlite's LOWER only handles ASCII.
func emailKey(email string) string {
	return strings.ToLower(email)
}

func (r *UserRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.User, error) {
	where["_limit"] = []uint{0, 1}
	users, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, appErr.ErrNotFound
	}
	return &users[0], nil
}

func (r *UserRepo) List(ctx context.Context, f *filter.Filter) ([]model.User, error) {
	return r.query(ctx, f.Conditions(defaultUserOrder))
}

func (r *UserRepo) query(ctx context.Context, where map[string]interface{}) ([]model.User, error) {
	sqlStr, args, err := builder.BuildSelect(userTable, where, userColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = r.dialect.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	users := make([]model.User, 0)
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Password, &user.Salt, &user.EmailVerified, &user.Created, &user.Modified); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepo) Count(ctx context.Context, where map[string]interface{}) (int64, error) {
	sqlStr, args, err := builder.BuildSelect(userTable, where, []string{"count(*)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = r.dialect.Finalize(sqlStr, args)
	var count int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *UserRepo) UpdateByID(ctx context.Context, id int64, patch model.UserPatch) error {
	if patch.Empty() {
		_, err := r.GetByID(ctx, id)
		return err
	}
	affected, err := r.update(ctx, map[string]interface{}{"id": id}, patchData(patch))
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// UpdateAll applies patch to every row matching where and returns the
// number of rows touched.
func (r *UserRepo) UpdateAll(ctx context.Context, where map[string]interface{}, patch model.UserPatch) (int64, error) {
	if patch.Empty() {
		return r.Count(ctx, where)
	}
	return r.update(ctx, where, patchData(patch))
}

// Replace rewrites every column except id.
func (r *UserRepo) Replace(ctx context.Context, user *model.User) error {
	update := map[string]interface{}{
		"email":          user.Email,
		"email_key":      emailKey(user.Email),
		"password":       user.Password,
		"salt":           user.Salt,
		"email_verified": user.EmailVerified,
		"created":        user.Created,
		"modified":       user.Modified,
	}
	affected, err := r.update(ctx, map[string]interface{}{"id": user.ID}, update)
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *UserRepo) update(ctx context.Context, where, update map[string]interface{}) (int64, error) {
	sqlStr, args, err := builder.BuildUpdate(userTable, where, update)
	if err != nil {
		return 0, err
	}
	sqlStr, args = r.dialect.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return 0, appErr.ErrConflict
		}
		return 0, err
	}
	return result.RowsAffected()
}

func (r *UserRepo) DeleteByID(ctx context.Context, id int64) error {
	sqlStr, args, err := builder.BuildDelete(userTable, map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	sqlStr, args = r.dialect.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func patchData(p model.UserPatch) map[string]interface{} {
	data := make(map[string]interface{})
	if p.Email != nil {
		data["email"] = *p.Email
		data["email_key"] = emailKey(*p.Email)
	}
	if p.Password != nil {
		data["password"] = *p.Password
	}
	if p.Salt != nil {
		data["salt"] = *p.Salt
	}
	if p.EmailVerified != nil {
		data["email_verified"] = *p.EmailVerified
	}
	if p.Created != nil {
		data["created"] = *p.Created
	}
	if p.Modified != nil {
		data["modified"] = *p.Modified
	}
	return data
}
