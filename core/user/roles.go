package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/campus/core"
)

// RoleCache guards role reconciliations: at most one per user in flight, and none again
// within the cooldown that follows a successful one.
type RoleCache interface {
	// Begin marks userID in flight and reports true, or reports false when userID is in flight
	// or was reconciled within the cooldown.
	Begin(ctx context.Context, userID string) (bool, error)
	// Done clears the in flight mark of userID. the cooldown starts only when ok.
	Done(ctx context.Context, userID string, ok bool) error
}

// RoleResolver derives user roles from the configured email allow-lists.
// admin wins over professor; every other email is a student.
type RoleResolver struct {
	repo       Repository
	cache      RoleCache
	admins     map[string]struct{}
	professors map[string]struct{}
	logger     core.Logger
}

func NewRoleResolver(conf *core.Config, repo Repository, cache RoleCache, logger core.Logger) *RoleResolver {
	return &RoleResolver{
		repo:       repo,
		cache:      cache,
		admins:     emailSet(conf.Roles.AdminEmails),
		professors: emailSet(conf.Roles.ProfessorEmails),
		logger:     logger,
	}
}

func emailSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		if email = core.CleanString(email, true /* lower */); email != "" {
			set[email] = struct{}{}
		}
	}
	return set
}

// ResolveRole is pure: it only depends on email and the allow-lists.
func (rr *RoleResolver) ResolveRole(email string) string {
	email = core.CleanString(email, true /* lower */)
	if _, ok := rr.admins[email]; ok {
		return RoleAdmin
	}
	if _, ok := rr.professors[email]; ok {
		return RoleProfessor
	}
	return RoleStudent
}

// EnsureCorrectRole reconciles the stored role of usr, unless the cache skips it.
// reports whether the role changed. errors are logged and usr is returned unchanged:
// a failed reconciliation never blocks authentication.
func (rr *RoleResolver) EnsureCorrectRole(ctx context.Context, usr User) (User, bool, error) {
	start, err := rr.cache.Begin(ctx, usr.ID)
	if err != nil {
		rr.logger.Error(fmt.Sprintf("user.EnsureCorrectRole: %v", err), err, usr)
		return usr, false, nil
	}
	if !start {
		return usr, false, nil
	}

	updated, changed, err := rr.reconcile(ctx, usr)
	if doneErr := rr.cache.Done(ctx, usr.ID, err == nil); doneErr != nil {
		rr.logger.Error(fmt.Sprintf("user.EnsureCorrectRole: %v", doneErr), doneErr, usr)
	}
	if err != nil {
		rr.logger.Error(fmt.Sprintf("user.EnsureCorrectRole: %v", err), err, usr)
		return usr, false, nil
	}
	return updated, changed, nil
}

// reconcile writes the derived role when it differs from the stored one,
// and keeps the professor profile in sync with the role.
func (rr *RoleResolver) reconcile(ctx context.Context, usr User) (User, bool, error) {
	role := rr.ResolveRole(usr.Email)
	if role == usr.Role {
		if err := rr.syncProfile(ctx, usr); err != nil {
			return usr, false, err
		}
		return usr, false, nil
	}

	prev := usr.Role
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	updated, err := rr.repo.UpdateUser(ctx, usr)
	if err != nil {
		return usr, false, err
	}
	if err := rr.syncProfile(ctx, updated); err != nil {
		return updated, true, err
	}
	rr.logger.Info(fmt.Sprintf("user %s role changed: %s -> %s", updated.ID, prev, role))
	return updated, true, nil
}

// syncProfile creates the missing profile of a professor, or deletes the stale one of a non professor.
func (rr *RoleResolver) syncProfile(ctx context.Context, usr User) error {
	_, err := rr.repo.GetProfessorProfile(ctx, usr.ID)
	switch {
	case err == nil && !usr.IsProfessor():
		return rr.repo.DeleteProfessorProfile(ctx, usr.ID)
	case err == ErrProfileNotFound && usr.IsProfessor():
		now := time.Now().UTC()
		_, err = rr.repo.SaveProfessorProfile(ctx, ProfessorProfile{UserID: usr.ID, CreatedAt: now, UpdatedAt: now})
		return err
	case err == ErrProfileNotFound:
		return nil
	}
	return err
}

// MemoryRoleCache is the process local RoleCache.
type MemoryRoleCache struct {
	mu       sync.Mutex
	cooldown time.Duration
	checked  map[string]time.Time // {userID: cooldown expiry}
	inFlight map[string]struct{}
	nowFunc  func() time.Time // mockable
}

func NewMemoryRoleCache(cooldown time.Duration) *MemoryRoleCache {
	return &MemoryRoleCache{
		cooldown: cooldown,
		checked:  make(map[string]time.Time),
		inFlight: make(map[string]struct{}),
		nowFunc:  time.Now,
	}
}

func (c *MemoryRoleCache) Begin(_ context.Context, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	c.evictExpired(now)

	if _, ok := c.checked[userID]; ok {
		return false, nil
	}
	if _, ok := c.inFlight[userID]; ok {
		return false, nil
	}
	c.inFlight[userID] = struct{}{}
	return true, nil
}

func (c *MemoryRoleCache) Done(_ context.Context, userID string, ok bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, userID)
	if ok {
		c.checked[userID] = c.nowFunc().Add(c.cooldown)
	}
	return nil
}

func (c *MemoryRoleCache) evictExpired(now time.Time) {
	for id, expiry := range c.checked {
		if !now.Before(expiry) {
			delete(c.checked, id)
		}
	}
}

func (c *MemoryRoleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired(c.nowFunc())
	return len(c.checked)
}
