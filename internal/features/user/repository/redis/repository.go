package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"coursepay-bot-backend/internal/features/user/models"
	"coursepay-bot-backend/internal/features/user/repository"
)

const (
	keyPrefixUser = "user:"
	keyAllUsers   = "users:all"
)

// setFieldScript writes one field of an existing user hash. It refuses to
// create a row, so field updates cannot resurrect deleted or unknown users.
var setFieldScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

type userRepository struct {
	client redis.UniversalClient
}

func NewUserRepository(client redis.UniversalClient) repository.UserRepository {
	return &userRepository{client: client}
}

func makeUserKey(id int64) string {
	return keyPrefixUser + strconv.FormatInt(id, 10)
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, user *models.User) error {
	key := makeUserKey(user.ID)

	// HSETNX on the id field decides creation; re-registration is a no-op.
	created, err := r.client.HSetNX(ctx, key, "id", user.ID).Result()
	if err != nil {
		return fmt.Errorf("create user %d: %w", user.ID, err)
	}
	if !created {
		return nil
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, key,
		"username", user.Username,
		"email", user.Email,
		"phone", user.Phone,
		"registered_at", user.RegisteredAt.UTC().Format(time.RFC3339),
	)
	pipe.SAdd(ctx, keyAllUsers, user.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create user %d: %w", user.ID, err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	fields, err := r.client.HGetAll(ctx, makeUserKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrUserNotFound
	}
	return userFromHash(fields)
}

func (r *userRepository) SetEmail(ctx context.Context, id int64, email string) error {
	return r.setField(ctx, id, "email", email)
}

func (r *userRepository) SetPhone(ctx context.Context, id int64, phone string) error {
	return r.setField(ctx, id, "phone", phone)
}

func (r *userRepository) setField(ctx context.Context, id int64, field, value string) error {
	res, err := setFieldScript.Run(ctx, r.client, []string{makeUserKey(id)}, field, value).Int()
	if err != nil {
		return fmt.Errorf("set %s for user %d: %w", field, id, err)
	}
	if res == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	ids, err := r.client.SMembers(ctx, keyAllUsers).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]*models.User, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		user, err := r.GetByID(ctx, id)
		if err != nil {
			// Skip rows that disappeared between SMEMBERS and HGETALL.
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.client.SCard(ctx, keyAllUsers).Result()
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func userFromHash(fields map[string]string) (*models.User, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", fields["id"], err)
	}
	user := &models.User{
		ID:       id,
		Username: fields["username"],
		Email:    fields["email"],
		Phone:    fields["phone"],
	}
	if raw := fields["registered_at"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			user.RegisteredAt = ts
		}
	}
	return user, nil
}
