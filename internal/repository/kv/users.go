package kv

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"projecthub/internal/model"
	"projecthub/internal/repository"
)

// userRecord model.User 的 json 会隐藏密码哈希，存储时单独保存
type userRecord struct {
	model.User
	PasswordHash string `json:"passwordHash"`
}

func toUserRecord(u *model.User) userRecord {
	return userRecord{User: *u, PasswordHash: u.PasswordHash}
}

func (r *userRecord) toModel() *model.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return &u
}

func (s *Store) userKey(id string) string { return s.key("user", id) }

// CreateUser 邮箱索引用 SETNX 保证唯一
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	emailKey := s.key("user", "email", u.Email)
	ok, err := s.rdb.SetNX(ctx, emailKey, u.ID, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrConflict
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := setJSON(ctx, pipe, s.userKey(u.ID), toUserRecord(u)); err != nil {
			return err
		}
		pipe.ZAdd(ctx, s.key("users"), redis.Z{Score: score(u.CreatedAt), Member: u.ID})
		return nil
	})
	if err != nil {
		s.rdb.Del(ctx, emailKey)
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var rec userRecord
	if err := getJSON(ctx, s.rdb, s.userKey(id), &rec); err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	id, err := s.rdb.Get(ctx, s.key("user", "email", email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	ids, err := s.rdb.ZRange(ctx, s.key("users"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.GetUsers(ctx, ids)
}

func (s *Store) GetUsers(ctx context.Context, ids []string) ([]*model.User, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.userKey(id)
	}
	recs, err := loadMany[userRecord](ctx, s.rdb, keys)
	if err != nil {
		return nil, err
	}
	users := make([]*model.User, len(recs))
	for i, rec := range recs {
		users[i] = rec.toModel()
	}
	return users, nil
}

// UpdateUser 保留已存储的密码哈希与邮箱
func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	current, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return err
	}
	next := *u
	next.Email = current.Email
	next.PasswordHash = current.PasswordHash
	next.CreatedAt = current.CreatedAt

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return setJSON(ctx, pipe, s.userKey(u.ID), toUserRecord(&next))
	})
	return err
}
