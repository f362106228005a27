package directory

import (
	"context"
	"time"

	"mailadmin/services/audit"
)

func (s *Store) ListDomains(ctx context.Context) ([]Domain, error) {
	var models []domainModel
	if err := s.db(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, wrap("list domains", err)
	}
	return toDomains(models), nil
}

func (s *Store) ListDomainsByID(ctx context.Context, ids []int64) ([]Domain, error) {
	if len(ids) == 0 {
		return []Domain{}, nil
	}
	var models []domainModel
	if err := s.db(ctx).Where("id IN ?", ids).Order("name ASC").Find(&models).Error; err != nil {
		return nil, wrap("list domains by id", err)
	}
	return toDomains(models), nil
}

func (s *Store) GetDomain(ctx context.Context, id int64) (Domain, error) {
	var model domainModel
	if err := s.db(ctx).First(&model, "id = ?", id).Error; err != nil {
		return Domain{}, wrap("get domain", translate(err))
	}
	return model.toDomain(), nil
}

func (s *Store) FindDomainByName(ctx context.Context, name string) (Domain, error) {
	var model domainModel
	if err := s.db(ctx).First(&model, "name = ?", name).Error; err != nil {
		return Domain{}, wrap("find domain", translate(err))
	}
	return model.toDomain(), nil
}

func (s *Store) CreateDomain(ctx context.Context, d *Domain) error {
	now := time.Now().UTC()
	model := domainModel{Name: d.Name, Active: d.Active, CreatedAt: now, UpdatedAt: now}
	if err := s.db(ctx).Create(&model).Error; err != nil {
		return wrap("create domain", translate(err))
	}
	*d = model.toDomain()
	return nil
}

func (s *Store) UpdateDomain(ctx context.Context, d *Domain) error {
	d.UpdatedAt = time.Now().UTC()
	res := s.db(ctx).Model(&domainModel{ID: d.ID}).Updates(map[string]any{
		"name":       d.Name,
		"active":     d.Active,
		"updated_at": d.UpdatedAt,
	})
	return wrap("update domain", affected(res))
}

func (s *Store) DeleteDomain(ctx context.Context, id int64) error {
	res := s.db(ctx).Delete(&domainModel{}, "id = ?", id)
	return wrap("delete domain", affected(res))
}

func (s *Store) DomainManagers(ctx context.Context, domainID int64) ([]User, error) {
	var models []userModel
	err := s.db(ctx).
		Joins("JOIN user_domains ud ON ud.user_id = users.id").
		Where("ud.domain_id = ?", domainID).
		Preload("Domains").
		Order("users.email ASC").
		Find(&models).Error
	if err != nil {
		return nil, wrap("list domain managers", err)
	}
	return toUsers(models), nil
}

// DomainScope collects the ids that belong to a domain for audit queries.
func (s *Store) DomainScope(ctx context.Context, domainID int64) (audit.DomainScope, bool, error) {
	domain, err := s.GetDomain(ctx, domainID)
	if err != nil {
		if isNotFound(err) {
			return audit.DomainScope{}, false, nil
		}
		return audit.DomainScope{}, false, err
	}

	scope := audit.DomainScope{DomainID: domain.ID, DomainName: domain.Name}
	orm := s.db(ctx)
	if err := orm.Model(&aliasModel{}).Where("domain_id = ?", domainID).Order("id").Pluck("id", &scope.AliasIDs).Error; err != nil {
		return audit.DomainScope{}, false, wrap("scope aliases", err)
	}
	if err := orm.Model(&mailboxModel{}).Where("domain_id = ?", domainID).Order("id").Pluck("id", &scope.MailboxIDs).Error; err != nil {
		return audit.DomainScope{}, false, wrap("scope mailboxes", err)
	}
	if err := orm.Model(&userDomainModel{}).Where("domain_id = ?", domainID).Order("user_id").Pluck("user_id", &scope.UserIDs).Error; err != nil {
		return audit.DomainScope{}, false, wrap("scope users", err)
	}
	return scope, true, nil
}

func toDomains(models []domainModel) []Domain {
	out := make([]Domain, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}
