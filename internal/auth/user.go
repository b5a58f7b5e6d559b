package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already used")
)

type User struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null;default:''" json:"-"`
	Name         string         `gorm:"not null;default:''" json:"name"`
	Username     string         `gorm:"not null;default:''" json:"username"`
	Avatar       string         `gorm:"not null;default:''" json:"avatar"`
	Providers    pq.StringArray `gorm:"type:text[]" json:"providers"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created"`
	UpdatedAt    time.Time      `json:"updated"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// HasProvider reports whether the user has signed in through provider.
func (u *User) HasProvider(provider string) bool {
	for _, p := range u.Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Users persists accounts.
type Users interface {
	Create(ctx context.Context, u *User) error
	Save(ctx context.Context, u *User) error
	ByID(ctx context.Context, id string) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
}

type GormUsers struct {
	DB *gorm.DB
}

func (g *GormUsers) Create(ctx context.Context, u *User) error {
	err := g.DB.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

func (g *GormUsers) Save(ctx context.Context, u *User) error {
	return g.DB.WithContext(ctx).Save(u).Error
}

func (g *GormUsers) ByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	return g.first(ctx, "id = ?", id)
}

func (g *GormUsers) ByEmail(ctx context.Context, email string) (*User, error) {
	return g.first(ctx, "email = ?", NormalizeEmail(email))
}

func (g *GormUsers) first(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := g.DB.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// MemoryUsers keeps accounts in process memory.
type MemoryUsers struct {
	mu   sync.Mutex
	byID map[string]User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byID: map[string]User{}}
}

func (m *MemoryUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	m.byID[u.ID] = *u
	return nil
}

func (m *MemoryUsers) Save(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return ErrUserNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	m.byID[u.ID] = *u
	return nil
}

func (m *MemoryUsers) ByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryUsers) ByEmail(_ context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}
