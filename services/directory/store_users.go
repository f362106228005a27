package directory

import (
	"context"
	"time"
)

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var models []userModel
	if err := s.db(ctx).Preload("Domains").Order("id ASC").Find(&models).Error; err != nil {
		return nil, wrap("list users", err)
	}
	return toUsers(models), nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var model userModel
	if err := s.db(ctx).Preload("Domains").First(&model, "id = ?", id).Error; err != nil {
		return User{}, wrap("get user", translate(err))
	}
	return model.toUser(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (User, error) {
	var model userModel
	if err := s.db(ctx).Preload("Domains").First(&model, "email = ?", email).Error; err != nil {
		return User{}, wrap("find user", translate(err))
	}
	return model.toUser(), nil
}

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	model := newUserModel(*u)
	model.ID = 0
	model.CreatedAt, model.UpdatedAt = now, now
	if err := s.db(ctx).Omit("Domains").Create(&model).Error; err != nil {
		return wrap("create user", translate(err))
	}
	created := model.toUser()
	created.DomainIDs = []int64{}
	*u = created
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()
	res := s.db(ctx).Model(&userModel{ID: u.ID}).Updates(map[string]any{
		"email":      u.Email,
		"password":   u.PasswordHash,
		"firstname":  u.FirstName,
		"lastname":   u.LastName,
		"role":       string(u.Role),
		"active":     u.Active,
		"updated_at": u.UpdatedAt,
	})
	return wrap("update user", affected(res))
}

func (s *Store) AssignDomain(ctx context.Context, userID, domainID int64) error {
	err := s.db(ctx).Create(&userDomainModel{UserID: userID, DomainID: domainID}).Error
	return wrap("assign domain", translate(err))
}

func (s *Store) UnassignDomain(ctx context.Context, userID, domainID int64) error {
	res := s.db(ctx).Delete(&userDomainModel{}, "user_id = ? AND domain_id = ?", userID, domainID)
	return wrap("unassign domain", affected(res))
}

func toUsers(models []userModel) []User {
	out := make([]User, 0, len(models))
	for _, m := range models {
		out = append(out, m.toUser())
	}
	return out
}
