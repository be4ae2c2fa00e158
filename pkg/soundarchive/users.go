package soundarchive

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type roleInvalidator interface {
	Invalidate(principalID string)
}

// CreateUser creates the identity account and its archive row.
func (s *service) CreateUser(ctx context.Context, p Principal, req NewUserRequest) (*UserRecord, error) {
	if err := s.requireUserAdmin(p); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = RoleUser
	}
	role, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	if req.Password != "" && len(req.Password) < 6 {
		return nil, NewValidationError("password", "must be at least 6 characters")
	}

	acct, err := s.accounts.CreateAccount(ctx, NewAccount{Email: email, Password: req.Password, FullName: req.FullName})
	if err != nil {
		return nil, upstream(err)
	}

	now := s.now().UTC()
	user := &UserRecord{
		UserID:    acct.ID,
		Email:     email,
		FullName:  strings.TrimSpace(req.FullName),
		Role:      role,
		IsActive:  boolOr(req.Active, true),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.UpsertUser(ctx, user); err != nil {
		s.logger.Error("account created without archive row", "user_id", acct.ID, "err", err)
		return nil, upstream(err)
	}
	active := user.IsActive
	s.appendLog(ctx, &UserStatusLog{
		AdminID:      p.ID,
		TargetUserID: user.UserID,
		NewRole:      role,
		NewActive:    &active,
		Reason:       "created",
	})
	s.logger.Info("user created", "user_id", user.UserID, "role", role, "by", p.ID)
	return user, nil
}

// UpdateUser changes role or active flag. Admins cannot demote or deactivate themselves.
func (s *service) UpdateUser(ctx context.Context, p Principal, userID string, patch UserPatch) (*UserRecord, error) {
	if err := s.requireUserAdmin(p); err != nil {
		return nil, err
	}
	if patch.Role == nil && patch.Active == nil {
		return nil, NewValidationError("patch", "nothing to update")
	}
	if patch.Role != nil {
		if _, err := ParseRole(string(*patch.Role)); err != nil {
			return nil, err
		}
		if *patch.Role != RoleAdmin {
			if err := CheckNotSelf(p, userID, "demote"); err != nil {
				return nil, err
			}
		}
	}
	if patch.Active != nil && !*patch.Active {
		if err := CheckNotSelf(p, userID, "deactivate"); err != nil {
			return nil, err
		}
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, upstream(err)
	}
	entry := &UserStatusLog{AdminID: p.ID, TargetUserID: userID, Reason: patch.Reason}
	if patch.Role != nil && *patch.Role != user.Role {
		entry.PrevRole, entry.NewRole = user.Role, *patch.Role
		user.Role = *patch.Role
	}
	if patch.Active != nil && *patch.Active != user.IsActive {
		prev, next := user.IsActive, *patch.Active
		entry.PrevActive, entry.NewActive = &prev, &next
		user.IsActive = next
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpsertUser(ctx, user); err != nil {
		return nil, upstream(err)
	}
	s.invalidateRole(userID)
	if entry.NewRole != "" || entry.NewActive != nil {
		s.appendLog(ctx, entry)
	}
	s.logger.Info("user updated", "user_id", userID, "role", user.Role, "active", user.IsActive, "by", p.ID)
	return user, nil
}

// DeleteUser removes the identity account and the archive row.
func (s *service) DeleteUser(ctx context.Context, p Principal, userID string) error {
	if err := s.requireUserAdmin(p); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return NewValidationError("user_id", "is required")
	}
	if err := CheckNotSelf(p, userID, "delete"); err != nil {
		return err
	}

	prev, err := s.users.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return upstream(err)
	}
	if err := s.accounts.DeleteAccount(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return upstream(err)
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return upstream(err)
	}
	s.invalidateRole(userID)

	entry := &UserStatusLog{AdminID: p.ID, TargetUserID: userID, Reason: "deleted"}
	if prev != nil {
		was, now := prev.IsActive, false
		entry.PrevRole = prev.Role
		entry.PrevActive, entry.NewActive = &was, &now
	}
	s.appendLog(ctx, entry)
	s.logger.Info("user deleted", "user_id", userID, "by", p.ID)
	return nil
}

// ListUsers returns a page of archive accounts.
func (s *service) ListUsers(ctx context.Context, p Principal, page, limit int) ([]*UserRecord, error) {
	if err := s.requireUserAdmin(p); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = maxPageSize
	}
	users, err := s.users.ListUsers(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, upstream(err)
	}
	return users, nil
}

func (s *service) requireUserAdmin(p Principal) error {
	if err := s.requireAdmin(p); err != nil {
		return err
	}
	if s.users == nil || s.accounts == nil {
		return ErrAdminUnavailable
	}
	return nil
}

func (s *service) appendLog(ctx context.Context, entry *UserStatusLog) {
	entry.ID = uuid.New()
	entry.CreatedAt = s.now().UTC()
	if err := s.users.AppendStatusLog(ctx, entry); err != nil {
		s.logger.Warn("failed to append user status log", "target_user_id", entry.TargetUserID, "err", err)
	}
}

func (s *service) invalidateRole(userID string) {
	if inv, ok := s.roles.(roleInvalidator); ok {
		inv.Invalidate(userID)
	}
}
