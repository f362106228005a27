package directory

import (
	"context"
	"time"

	"gorm.io/gorm"
)

func (s *Store) mailboxes(ctx context.Context) *gorm.DB {
	return s.db(ctx).Preload("Domain").Preload("Autoresponder")
}

func (s *Store) ListMailboxes(ctx context.Context, domainID int64) ([]Mailbox, error) {
	var models []mailboxModel
	if err := s.mailboxes(ctx).Where("domain_id = ?", domainID).Order("name ASC").Find(&models).Error; err != nil {
		return nil, wrap("list mailboxes", err)
	}
	out := make([]Mailbox, 0, len(models))
	for _, m := range models {
		out = append(out, m.toMailbox())
	}
	return out, nil
}

func (s *Store) GetMailbox(ctx context.Context, id int64) (Mailbox, error) {
	var model mailboxModel
	if err := s.mailboxes(ctx).First(&model, "id = ?", id).Error; err != nil {
		return Mailbox{}, wrap("get mailbox", translate(err))
	}
	return model.toMailbox(), nil
}

func (s *Store) FindMailbox(ctx context.Context, domainID int64, name string) (Mailbox, error) {
	var model mailboxModel
	if err := s.mailboxes(ctx).First(&model, "domain_id = ? AND name = ?", domainID, name).Error; err != nil {
		return Mailbox{}, wrap("find mailbox", translate(err))
	}
	return model.toMailbox(), nil
}

func (s *Store) CreateMailbox(ctx context.Context, m *Mailbox) error {
	now := time.Now().UTC()
	model := mailboxModel{
		DomainID:   m.DomainID,
		Name:       m.Name,
		Password:   m.PasswordHash,
		Active:     m.Active,
		FooterText: m.FooterText,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db(ctx).Omit("Domain", "Autoresponder").Create(&model).Error; err != nil {
		return wrap("create mailbox", translate(err))
	}
	created, err := s.GetMailbox(ctx, model.ID)
	if err != nil {
		return err
	}
	*m = created
	return nil
}

func (s *Store) UpdateMailbox(ctx context.Context, m *Mailbox) error {
	m.UpdatedAt = time.Now().UTC()
	res := s.db(ctx).Model(&mailboxModel{ID: m.ID}).Updates(map[string]any{
		"name":        m.Name,
		"password":    m.PasswordHash,
		"active":      m.Active,
		"footer_text": m.FooterText,
		"updated_at":  m.UpdatedAt,
	})
	return wrap("update mailbox", affected(res))
}

func (s *Store) DeleteMailbox(ctx context.Context, id int64) error {
	res := s.db(ctx).Delete(&mailboxModel{}, "id = ?", id)
	return wrap("delete mailbox", affected(res))
}

func (s *Store) GetAutoresponder(ctx context.Context, mailboxID int64) (Autoresponder, error) {
	var model autoresponderModel
	if err := s.db(ctx).First(&model, "mailbox_id = ?", mailboxID).Error; err != nil {
		return Autoresponder{}, wrap("get autoresponder", translate(err))
	}
	return model.toAutoresponder(), nil
}

func (s *Store) SaveAutoresponder(ctx context.Context, a *Autoresponder) error {
	now := time.Now().UTC()
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		var model autoresponderModel
		err := tx.First(&model, "mailbox_id = ?", a.MailboxID).Error
		switch translate(err) {
		case nil:
		case ErrNotFound:
			model = autoresponderModel{MailboxID: a.MailboxID, CreatedAt: now}
		default:
			return err
		}
		model.Active = a.Active
		model.Subject = a.Subject
		model.Body = a.Body
		model.StartDate = a.StartDate
		model.EndDate = a.EndDate
		model.UpdatedAt = now
		if err := tx.Save(&model).Error; err != nil {
			return translate(err)
		}
		*a = model.toAutoresponder()
		return nil
	})
	return wrap("save autoresponder", err)
}

func (s *Store) DeleteAutoresponder(ctx context.Context, mailboxID int64) error {
	res := s.db(ctx).Delete(&autoresponderModel{}, "mailbox_id = ?", mailboxID)
	return wrap("delete autoresponder", affected(res))
}
