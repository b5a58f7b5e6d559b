// Package syncer pushes the device state to the remote store and pulls it
// back, one user at a time.
//
// Push walks the local memos strictly in order, one upsert at a time, then
// writes the settings record once. The first failure stops the walk; memos
// already written stay written and a later push simply updates them again.
//
// Pull replaces the whole local memo collection but only overwrites the
// settings blocks present remotely. The two behave differently on purpose.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memosync/internal/keylock"
	"memosync/internal/local"
	"memosync/internal/repository"

	"go.uber.org/zap"
)

// ErrNoUser is returned when push or pull is called without a user id.
var ErrNoUser = errors.New("user id required")

// Result summarizes one push or pull.
type Result struct {
	Success bool
	// Memos is the number of memos written to the other side.
	Memos int
	// SettingsBlocks is the number of settings blocks written.
	SettingsBlocks int
	Duration       time.Duration
}

type Orchestrator struct {
	repo   *repository.Repository
	state  local.Store
	users  *keylock.Locker
	logger *zap.Logger
}

func New(repo *repository.Repository, state local.Store, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		repo:   repo,
		state:  state,
		users:  keylock.New(),
		logger: logger.Named("syncer"),
	}
}

// SyncUserData pushes every local memo and the settings bundle for userID.
// Errors from the repository are returned unchanged.
func (o *Orchestrator) SyncUserData(ctx context.Context, userID string) (Result, error) {
	if userID == "" {
		return Result{}, ErrNoUser
	}
	unlock, err := o.users.Lock(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	start := time.Now()
	memos, err := local.LoadMemos(ctx, o.state)
	if err != nil {
		return Result{}, err
	}
	settings, err := local.LoadSettings(ctx, o.state)
	if err != nil {
		return Result{}, err
	}

	// reject bad local data before the first network write
	for i, m := range memos {
		if m.ID == "" {
			return Result{}, fmt.Errorf("local memo at position %d has no id", i)
		}
	}
	if _, err := settings.Remote(userID); err != nil {
		return Result{}, err
	}

	res := Result{}
	for i, m := range memos {
		if _, err := o.repo.UpsertMemo(ctx, userID, m); err != nil {
			o.logger.Warn("push aborted",
				zap.String("user", userID),
				zap.String("memo", m.ID),
				zap.Int("position", i),
				zap.Int("remaining", len(memos)-i),
				zap.Error(err))
			res.Duration = time.Since(start)
			return res, err
		}
		res.Memos++
		o.logger.Debug("memo pushed", zap.String("user", userID), zap.String("memo", m.ID))
	}

	if _, err := o.repo.UpsertUserSettings(ctx, userID, settings); err != nil {
		o.logger.Warn("settings push failed", zap.String("user", userID), zap.Error(err))
		res.Duration = time.Since(start)
		return res, err
	}
	res.SettingsBlocks = len(settings.WithDefaults())
	res.Success = true
	res.Duration = time.Since(start)

	o.logger.Info("push complete",
		zap.String("user", userID),
		zap.Int("memos", res.Memos),
		zap.Duration("took", res.Duration))
	return res, nil
}

// RestoreUserData pulls the user's memos and settings into local state. The
// local memo set is replaced wholesale; settings blocks missing remotely keep
// their local value.
func (o *Orchestrator) RestoreUserData(ctx context.Context, userID string) (Result, error) {
	if userID == "" {
		return Result{}, ErrNoUser
	}
	unlock, err := o.users.Lock(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	start := time.Now()
	memos, err := o.repo.UserMemos(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	settings, found, err := o.repo.UserSettings(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	if err := local.SaveMemos(ctx, o.state, memos); err != nil {
		return res, err
	}
	res.Memos = len(memos)

	if found {
		n, err := local.SaveSettings(ctx, o.state, settings)
		res.SettingsBlocks = n
		if err != nil {
			return res, err
		}
	}
	res.Success = true
	res.Duration = time.Since(start)

	o.logger.Info("pull complete",
		zap.String("user", userID),
		zap.Int("memos", res.Memos),
		zap.Int("settings_blocks", res.SettingsBlocks),
		zap.Bool("settings_found", found),
		zap.Duration("took", res.Duration))
	return res, nil
}
