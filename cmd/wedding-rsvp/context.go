package main

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/apiclient"
	"wedding-rsvp/internal/config"
	"wedding-rsvp/internal/i18n"
	"wedding-rsvp/internal/rsvp"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.LoadConfig(path)
	})
	return c.config, c.configErr
}

// logger builds the process logger from the configured level.
func (c *commandContext) logger() zerolog.Logger {
	level := ""
	if c.config != nil {
		level = c.config.LogLevel
	}
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		level = strings.TrimSpace(*c.logLevelFlag)
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(parsed).With().Timestamp().Logger()
}

func (c *commandContext) localizer() *i18n.Localizer {
	return i18n.New(c.config.Language, c.config.DeadlineLabel)
}

func (c *commandContext) deadlineGate() (rsvp.DeadlineGate, error) {
	deadline, err := c.config.DeadlineTime()
	if err != nil {
		return rsvp.DeadlineGate{}, err
	}
	return rsvp.NewDeadlineGate(deadline), nil
}

func (c *commandContext) apiClient(logger zerolog.Logger) *apiclient.Client {
	return apiclient.New(c.config.APIBaseURL, c.config.RequestTimeout(), nil, logger)
}
