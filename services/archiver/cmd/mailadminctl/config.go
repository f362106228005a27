package main

import (
	"context"
	"errors"

	"github.com/sethvargo/go-envconfig"

	"mailadmin/pkg/s3"
)

type config struct {
	DBDSN        string `env:"DB_DSN"`
	NATSURL      string `env:"NATS_URL"`
	AuditSubject string `env:"AUDIT_SUBJECT,default=mailadmin.audit.appended"`
	S3           s3.Config
}

func loadConfig(ctx context.Context) (config, error) {
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) requireDSN() error {
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	return nil
}
