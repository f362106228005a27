package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// The structs below freeze the schema as of this migration; the live models
// in services/directory may evolve independently.

type Domain struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type User struct {
	ID        int64     `gorm:"primaryKey"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Password  string    `gorm:"type:varchar(255);not null"`
	Firstname string    `gorm:"type:varchar(100);not null"`
	Lastname  string    `gorm:"type:varchar(100);not null"`
	Role      string    `gorm:"type:varchar(20);not null;default:user"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type UserDomain struct {
	UserID   int64  `gorm:"primaryKey"`
	DomainID int64  `gorm:"primaryKey;index"`
	User     User   `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Domain   Domain `gorm:"foreignKey:DomainID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Alias struct {
	ID        int64     `gorm:"primaryKey"`
	DomainID  int64     `gorm:"not null;index"`
	Name      string    `gorm:"type:varchar(255);not null"`
	To        string    `gorm:"column:to;type:varchar(255);not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Domain    Domain    `gorm:"foreignKey:DomainID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Mailbox struct {
	ID         int64     `gorm:"primaryKey"`
	DomainID   int64     `gorm:"not null;uniqueIndex:idx_mailboxes_domain_name"`
	Name       string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_mailboxes_domain_name"`
	Password   string    `gorm:"type:varchar(255);not null"`
	Active     bool      `gorm:"not null;default:true"`
	FooterText *string   `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt  time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Domain     Domain    `gorm:"foreignKey:DomainID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type MailboxAutoresponder struct {
	ID        int64      `gorm:"primaryKey"`
	MailboxID int64      `gorm:"uniqueIndex;not null"`
	Active    bool       `gorm:"not null;default:false"`
	Subject   string     `gorm:"type:varchar(255);not null"`
	Body      string     `gorm:"type:text;not null"`
	StartDate *time.Time `gorm:"type:timestamptz"`
	EndDate   *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Mailbox   Mailbox    `gorm:"foreignKey:MailboxID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Token struct {
	ID        int64     `gorm:"primaryKey"`
	Token     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	UserID    int64     `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type MailboxToken struct {
	ID        int64     `gorm:"primaryKey"`
	Token     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	MailboxID int64     `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Mailbox   Mailbox   `gorm:"foreignKey:MailboxID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// AuditLog has no foreign keys; rows outlive the entities they describe.
type AuditLog struct {
	ID         int64             `gorm:"type:bigserial;primaryKey"`
	ActorType  string            `gorm:"type:varchar(20);not null"`
	ActorID    *int64            `gorm:"type:bigint"`
	EventType  string            `gorm:"type:varchar(100);not null"`
	EntityType string            `gorm:"type:varchar(50);not null"`
	EntityID   *int64            `gorm:"type:bigint"`
	OldValue   datatypes.JSONMap `gorm:"type:jsonb"`
	NewValue   datatypes.JSONMap `gorm:"type:jsonb"`
	IPAddress  *string           `gorm:"type:varchar(45)"`
	UserAgent  *string           `gorm:"type:text"`
	Status     string            `gorm:"type:varchar(20);not null;default:success"`
	CreatedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func openTx(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&Domain{},
		&User{},
		&UserDomain{},
		&Alias{},
		&Mailbox{},
		&MailboxAutoresponder{},
		&Token{},
		&MailboxToken{},
		&AuditLog{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := openTx(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&AuditLog{},
		&MailboxToken{},
		&Token{},
		&MailboxAutoresponder{},
		&Mailbox{},
		&Alias{},
		&UserDomain{},
		&User{},
		&Domain{},
	)
}
