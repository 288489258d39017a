package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"tradeanalytics/internal/models"
	"tradeanalytics/internal/repository"
)

// childRoles lists the tiers below each owner role, top down.
var childRoles = map[string][]string{
	models.RoleSuperadmin: {models.RoleAdmin, models.RoleMaster, models.RoleUser},
	models.RoleAdmin:      {models.RoleMaster, models.RoleUser},
	models.RoleMaster:     {models.RoleUser},
}

func (s *Store) ListOwners(ctx context.Context, scope string) ([]repository.Owner, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	scope = strings.ToLower(strings.TrimSpace(scope))
	var accounts []models.Account
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("role = ?", scope).
		Order("id asc").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	owners := make([]repository.Owner, 0, len(accounts))
	for _, acc := range accounts {
		owners = append(owners, repository.Owner{ID: acc.ID, Scope: acc.Role, Name: acc.Name})
	}
	return owners, nil
}

// ResolveUsersUnderOwner walks the account tree down from the owner one tier
// at a time and returns every end user with its master and superadmin.
func (s *Store) ResolveUsersUnderOwner(ctx context.Context, ownerID string, scope string) ([]repository.UserSummary, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	scope = strings.ToLower(strings.TrimSpace(scope))
	tiers, ok := childRoles[scope]
	if !ok {
		return nil, fmt.Errorf("scope %q has no users", scope)
	}
	owner, err := s.getAccount(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil || owner.Role != scope {
		return nil, fmt.Errorf("%w: %s %s", repository.ErrOwnerNotFound, scope, ownerID)
	}
	superadminID, err := s.superadminOf(ctx, owner)
	if err != nil {
		return nil, err
	}

	parents := []string{owner.ID}
	var users []models.Account
	for _, role := range tiers {
		var level []models.Account
		for _, chunk := range chunks(parents, queryChunk) {
			var part []models.Account
			if err := s.db.WithContext(ctx).
				Model(&models.Account{}).
				Where("role = ?", role).
				Where("parent_id IN ?", chunk).
				Order("id asc").
				Find(&part).Error; err != nil {
				return nil, err
			}
			level = append(level, part...)
		}
		if role == models.RoleUser {
			users = level
			break
		}
		parents = parents[:0]
		for _, acc := range level {
			parents = append(parents, acc.ID)
		}
		if len(parents) == 0 {
			break
		}
	}

	out := make([]repository.UserSummary, 0, len(users))
	for _, acc := range users {
		balance := acc.Balance
		out = append(out, repository.UserSummary{
			ID:           acc.ID,
			Name:         acc.Name,
			Email:        acc.Email,
			Status:       acc.Status,
			Balance:      &balance,
			MasterID:     acc.ParentID,
			SuperadminID: superadminID,
		})
	}
	return out, nil
}

func (s *Store) getAccount(ctx context.Context, id string) (*models.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var acc models.Account
	err := s.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// superadminOf climbs parent links until it reaches a superadmin.
func (s *Store) superadminOf(ctx context.Context, acc *models.Account) (string, error) {
	cur := acc
	for hops := 0; hops < 4 && cur != nil; hops++ {
		if cur.Role == models.RoleSuperadmin {
			return cur.ID, nil
		}
		parent, err := s.getAccount(ctx, cur.ParentID)
		if err != nil {
			return "", err
		}
		cur = parent
	}
	return "", nil
}
