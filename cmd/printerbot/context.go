package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"printerbot/internal/client"
	"printerbot/internal/config"
	"printerbot/internal/logger"
	"printerbot/internal/metrics"
	"printerbot/internal/repository"
	"printerbot/internal/repository/db"
	"printerbot/internal/service"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
		if c.configErr == nil && c.logLevelFlag != nil && *c.logLevelFlag != "" {
			c.config.LogLevel = *c.logLevelFlag
		}
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *logger.Logger {
	cfg, _ := c.ensureConfig()
	return logger.New(cfg.LogLevel)
}

// stack is everything a command needs to talk to the controller.
type stack struct {
	cfg     config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	session *client.Session
	db      *sql.DB
	svc     *service.Service
}

func (r *stack) Close() {
	r.session.Transport().Close()
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.log.Warnw("db_close_failed", "err", err)
		}
	}
	r.log.Sync()
}

// newSession builds a session and attempts the login. A failed login is not
// fatal.
func (c *commandContext) newSession(ctx context.Context, log *logger.Logger, rec client.Recorder) (*client.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	tr, err := client.NewTransport(client.TransportOptions{
		BaseURL:   cfg.Controller.URL,
		TLSVerify: cfg.Controller.TLSVerify,
		Timeout:   cfg.Controller.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("controller url: %w", err)
	}
	sess := client.NewSession(tr, client.SessionOptions{
		User:     cfg.Controller.User,
		Password: cfg.Controller.Password,
		APIKey:   cfg.Controller.APIKey,
		Log:      log,
		Recorder: rec,
	})
	if err := sess.Login(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			tr.Close()
			return nil, err
		}
		// requests go out with the API key, or anonymously
		log.Warnw("controller_login_failed", "err", err, "api_key", cfg.Controller.APIKey != "")
	}
	return sess, nil
}

// open wires the service stack against the controller and the journal
// database.
func (c *commandContext) open(ctx context.Context) (*stack, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	log := c.logger()
	m := metrics.New()

	sess, err := c.newSession(ctx, log, m)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.InitDB(cfg.DBPath)
	if err != nil {
		sess.Transport().Close()
		return nil, err
	}

	svc := service.NewService(service.Deps{
		Controller: sess,
		Repos:      repository.NewRepository(sqlDB),
		Config:     cfg,
		Metrics:    m,
		Log:        log,
	})
	return &stack{cfg: cfg, log: log, metrics: m, session: sess, db: sqlDB, svc: svc}, nil
}

// withService opens the stack, polls the controller once and runs fn.
func (c *commandContext) withService(ctx context.Context, fn func(*stack) error) error {
	rt, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.svc.Poll(ctx); err != nil {
		return fmt.Errorf("controller not ready: %w", err)
	}
	return fn(rt)
}
