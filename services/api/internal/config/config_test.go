package config

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func(Config) bool
		wantErr bool
	}{
		{
			name: "defaults with postgres",
			env:  map[string]string{"DB_DSN": "postgres://localhost/mail"},
			want: func(c Config) bool {
				return c.Addr == ":8080" &&
					c.StoreDriver == DriverPostgres &&
					c.RateLimitPerMinute == 100 &&
					c.LoginRateLimitPerMinute == 10 &&
					c.AuditSubject == "mailadmin.audit.appended" &&
					c.SeedAdmin &&
					c.SeedAdminEmail == "a@a.pl" &&
					c.SeedAdminPassword == "admin" &&
					c.Level() == zerolog.InfoLevel
			},
		},
		{
			name: "memory store needs no dsn",
			env:  map[string]string{"STORE_DRIVER": "Memory", "LOG_LEVEL": "debug", "LOG_FORMAT": "console"},
			want: func(c Config) bool {
				return c.StoreDriver == DriverMemory && c.Level() == zerolog.DebugLevel
			},
		},
		{
			name: "origins split on commas",
			env:  map[string]string{"STORE_DRIVER": "memory", "CORS_ALLOWED_ORIGINS": "https://a.test,https://b.test"},
			want: func(c Config) bool {
				return reflect.DeepEqual(c.AllowedOrigins, []string{"https://a.test", "https://b.test"})
			},
		},
		{
			name:    "postgres without dsn",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			env:     map[string]string{"STORE_DRIVER": "sqlite"},
			wantErr: true,
		},
		{
			name:    "bad log level",
			env:     map[string]string{"STORE_DRIVER": "memory", "LOG_LEVEL": "loud"},
			wantErr: true,
		},
		{
			name:    "bad log format",
			env:     map[string]string{"STORE_DRIVER": "memory", "LOG_FORMAT": "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := load(context.Background(), envconfig.MapLookuper(tt.env))
			if (err != nil) != tt.wantErr {
				t.Fatalf("load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !tt.want(got) {
				t.Fatalf("load() = %+v", got)
			}
		})
	}
}
