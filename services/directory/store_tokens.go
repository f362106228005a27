package directory

import (
	"context"
	"fmt"
	"time"

	"mailadmin/services/auth"
)

func (s *Store) InsertToken(ctx context.Context, kind auth.Kind, ownerID int64, value string, createdAt time.Time) error {
	var err error
	switch kind {
	case auth.KindUser:
		err = s.db(ctx).Omit("User").Create(&tokenModel{Token: value, UserID: ownerID, CreatedAt: createdAt}).Error
	case auth.KindMailbox:
		err = s.db(ctx).Omit("Mailbox").Create(&mailboxTokenModel{Token: value, MailboxID: ownerID, CreatedAt: createdAt}).Error
	default:
		return fmt.Errorf("insert token: unknown kind %q", kind)
	}
	return wrap("insert token", translate(err))
}

func (s *Store) LookupToken(ctx context.Context, kind auth.Kind, value string) (auth.Principal, error) {
	switch kind {
	case auth.KindUser:
		var model tokenModel
		err := s.db(ctx).Preload("User.Domains").First(&model, "token = ?", value).Error
		if err != nil {
			return nil, lookupErr(err)
		}
		return model.User.toUser().Principal(), nil
	case auth.KindMailbox:
		var model mailboxTokenModel
		err := s.db(ctx).Preload("Mailbox.Domain").First(&model, "token = ?", value).Error
		if err != nil {
			return nil, lookupErr(err)
		}
		return model.Mailbox.toMailbox().Principal(), nil
	}
	return nil, fmt.Errorf("lookup token: unknown kind %q", kind)
}

func lookupErr(err error) error {
	if isNotFound(translate(err)) {
		return auth.ErrTokenNotFound
	}
	return err
}

func (s *Store) DeleteToken(ctx context.Context, kind auth.Kind, value string) (bool, error) {
	var model any
	switch kind {
	case auth.KindUser:
		model = &tokenModel{}
	case auth.KindMailbox:
		model = &mailboxTokenModel{}
	default:
		return false, fmt.Errorf("delete token: unknown kind %q", kind)
	}
	res := s.db(ctx).Delete(model, "token = ?", value)
	if res.Error != nil {
		return false, wrap("delete token", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) OwnerTokens(ctx context.Context, kind auth.Kind, ownerID int64) ([]string, error) {
	var values []string
	var err error
	switch kind {
	case auth.KindUser:
		err = s.db(ctx).Model(&tokenModel{}).Where("user_id = ?", ownerID).Order("id").Pluck("token", &values).Error
	case auth.KindMailbox:
		err = s.db(ctx).Model(&mailboxTokenModel{}).Where("mailbox_id = ?", ownerID).Order("id").Pluck("token", &values).Error
	default:
		return nil, fmt.Errorf("owner tokens: unknown kind %q", kind)
	}
	if err != nil {
		return nil, wrap("owner tokens", err)
	}
	return values, nil
}
