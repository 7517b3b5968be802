package main

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelcms/internal/app"
	"reelcms/internal/logging"
	"reelcms/pkg/utils"
)

type commandContext struct {
	configFlag *string
	logLevel   *string

	once   sync.Once
	app    *app.App
	appErr error
}

func newCommandContext(configFlag, logLevel *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevel: logLevel}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureApp loads the config and opens the stores once per invocation.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.once.Do(func() {
		cfg, err := utils.Load(c.configPath())
		if err != nil {
			c.appErr = err
			return
		}
		level := cfg.Log.Level
		if c.logLevel != nil && *c.logLevel != "" {
			level = *c.logLevel
		}
		logger, err := logging.New(logging.Options{Level: level, Format: cfg.Log.Format, Output: os.Stderr})
		if err != nil {
			c.appErr = err
			return
		}
		if ctx == nil {
			ctx = context.Background()
		}
		c.app, c.appErr = app.Open(ctx, cfg, logger)
	})
	return c.app, c.appErr
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
