package directory

import (
	"context"
	"time"
)

func (s *Store) ListAliases(ctx context.Context, domainID int64) ([]Alias, error) {
	var models []aliasModel
	if err := s.db(ctx).Where("domain_id = ?", domainID).Order("name ASC, id ASC").Find(&models).Error; err != nil {
		return nil, wrap("list aliases", err)
	}
	out := make([]Alias, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAlias())
	}
	return out, nil
}

func (s *Store) GetAlias(ctx context.Context, id int64) (Alias, error) {
	var model aliasModel
	if err := s.db(ctx).First(&model, "id = ?", id).Error; err != nil {
		return Alias{}, wrap("get alias", translate(err))
	}
	return model.toAlias(), nil
}

func (s *Store) CreateAlias(ctx context.Context, a *Alias) error {
	now := time.Now().UTC()
	model := aliasModel{DomainID: a.DomainID, Name: a.Name, To: a.To, Active: a.Active, CreatedAt: now, UpdatedAt: now}
	if err := s.db(ctx).Create(&model).Error; err != nil {
		return wrap("create alias", translate(err))
	}
	*a = model.toAlias()
	return nil
}

func (s *Store) UpdateAlias(ctx context.Context, a *Alias) error {
	a.UpdatedAt = time.Now().UTC()
	res := s.db(ctx).Model(&aliasModel{ID: a.ID}).Updates(map[string]any{
		"name":       a.Name,
		"to":         a.To,
		"active":     a.Active,
		"updated_at": a.UpdatedAt,
	})
	return wrap("update alias", affected(res))
}

func (s *Store) DeleteAlias(ctx context.Context, id int64) error {
	res := s.db(ctx).Delete(&aliasModel{}, "id = ?", id)
	return wrap("delete alias", affected(res))
}
