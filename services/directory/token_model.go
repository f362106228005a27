package directory

import "time"

type tokenModel struct {
	ID        int64     `gorm:"primaryKey"`
	Token     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	UserID    int64     `gorm:"not null"`
	User      userModel `gorm:"foreignKey:UserID"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (tokenModel) TableName() string { return "tokens" }

type mailboxTokenModel struct {
	ID        int64        `gorm:"primaryKey"`
	Token     string       `gorm:"type:varchar(64);uniqueIndex;not null"`
	MailboxID int64        `gorm:"not null"`
	Mailbox   mailboxModel `gorm:"foreignKey:MailboxID"`
	CreatedAt time.Time    `gorm:"type:timestamptz;not null"`
}

func (mailboxTokenModel) TableName() string { return "mailbox_tokens" }
