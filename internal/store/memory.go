package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dekyc/apiserver/internal/roster"
	"github.com/dekyc/apiserver/types"
)

const firstUserNumber = 1001

// MemoryUserRepository keeps the roster in process memory. Every mutation
// replaces the roster slice rather than editing it in place.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  []types.User
	nextID int
}

// NewMemoryUserRepository returns a repository holding a copy of users.
func NewMemoryUserRepository(users []types.User) *MemoryUserRepository {
	r := &MemoryUserRepository{nextID: firstUserNumber}
	r.users = slices.Clone(users)
	for _, u := range users {
		r.bumpNextID(u.ID)
	}
	return r
}

func (r *MemoryUserRepository) List(_ context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.users), nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(func(u types.User) bool { return u.ID == id })
	if i < 0 {
		return types.User{}, ErrNotFound
	}
	return r.users[i], nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(func(u types.User) bool { return strings.EqualFold(u.Email, email) })
	if i < 0 {
		return types.User{}, ErrNotFound
	}
	return r.users[i], nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(func(u types.User) bool { return strings.EqualFold(u.Email, user.Email) || u.ID == user.ID }) >= 0 {
		return types.User{}, ErrConflict
	}
	if user.ID == "" {
		user.ID = fmt.Sprintf("U-%d", r.nextID)
	}
	r.bumpNextID(user.ID)

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	r.users = append(slices.Clone(r.users), user)
	return user, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(func(u types.User) bool { return u.ID == user.ID })
	if i < 0 {
		return types.User{}, ErrNotFound
	}
	user.UpdatedAt = time.Now()
	next := slices.Clone(r.users)
	next[i] = user
	r.users = next
	return user, nil
}

func (r *MemoryUserRepository) UpdateStatus(_ context.Context, id string, status types.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(func(u types.User) bool { return u.ID == id }) < 0 {
		return ErrNotFound
	}
	r.users = roster.SetStatus(r.users, id, status)
	return nil
}

func (r *MemoryUserRepository) Seed(ctx context.Context, users []types.User) (int, error) {
	inserted := 0
	for _, u := range users {
		if _, err := r.Create(ctx, u); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (r *MemoryUserRepository) indexOf(match func(types.User) bool) int {
	return slices.IndexFunc(r.users, match)
}

func (r *MemoryUserRepository) bumpNextID(id string) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "U-"))
	if err == nil && n >= r.nextID {
		r.nextID = n + 1
	}
}

// MemoryDocumentRepository keeps document metadata in process memory.
type MemoryDocumentRepository struct {
	mu   sync.RWMutex
	docs []types.Document
}

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{}
}

func (r *MemoryDocumentRepository) Create(_ context.Context, doc types.Document) (types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.ContainsFunc(r.docs, func(d types.Document) bool { return d.ID == doc.ID }) {
		return types.Document{}, ErrConflict
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	r.docs = append(r.docs, doc)
	return doc, nil
}

func (r *MemoryDocumentRepository) Get(_ context.Context, id string) (types.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := slices.IndexFunc(r.docs, func(d types.Document) bool { return d.ID == id })
	if i < 0 {
		return types.Document{}, ErrNotFound
	}
	return r.docs[i], nil
}

func (r *MemoryDocumentRepository) ListByUser(_ context.Context, userID string) ([]types.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Document, 0)
	for _, d := range r.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *MemoryDocumentRepository) UpdateStatus(_ context.Context, id string, status types.DocumentStatus, at time.Time) (types.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.docs, func(d types.Document) bool { return d.ID == id })
	if i < 0 {
		return types.Document{}, ErrNotFound
	}
	doc := r.docs[i]
	doc.Status = status
	doc.VerifiedAt = nil
	if status == types.DocumentVerified {
		doc.VerifiedAt = &at
	}
	next := slices.Clone(r.docs)
	next[i] = doc
	r.docs = next
	return doc, nil
}

func (r *MemoryDocumentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.docs, func(d types.Document) bool { return d.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	r.docs = slices.Delete(slices.Clone(r.docs), i, i+1)
	return nil
}
