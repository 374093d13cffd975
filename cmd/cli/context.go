package main

import (
	"io"
	"strings"
	"sync"

	"github.com/himanishpuri/AdvertDNA/internal/app"
	"github.com/himanishpuri/AdvertDNA/internal/config"
)

// commandContext carries the flags and lazily built app shared by every
// subcommand of one invocation.
type commandContext struct {
	configFile string
	envFile    string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	app  *app.App
	sink io.Closer
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var envFiles []string
		if env := strings.TrimSpace(c.envFile); env != "" {
			envFiles = []string{env}
		}
		c.config, c.configErr = config.Load(strings.TrimSpace(c.configFile), envFiles...)
	})
	return c.config, c.configErr
}

// ensureApp wires the pipeline, store and prober on first use.
func (c *commandContext) ensureApp() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	log, sink, err := app.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	c.sink = sink

	a, err := app.New(cfg, log)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.sink != nil {
		c.sink.Close()
		c.sink = nil
	}
	return err
}
