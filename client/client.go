package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sardine-ai/configconsole/model"
	"github.com/sardine-ai/configconsole/source"
)

// ErrConfigNotFound is returned by the getters for keys missing from the
// resolved configuration.
var ErrConfigNotFound = errors.New("config not found")

// Client keeps the resolved configuration of one service up to date.
type Client struct {
	Store           source.Store
	Template        string
	Service         string
	RefreshInterval time.Duration

	mu     sync.RWMutex
	values map[string]string
	cancel context.CancelFunc
}

// NewClient creates a Client for service in template, refreshes it once and
// keeps refreshing it every refreshInterval in the background until Close
// is called or ctx is done.
func NewClient(ctx context.Context, store source.Store, template, service string, refreshInterval time.Duration) *Client {
	ctx, cancel := context.WithCancel(ctx)

	client := &Client{
		Store:           store,
		Template:        template,
		Service:         service,
		RefreshInterval: refreshInterval,
		values:          map[string]string{},
		cancel:          cancel,
	}

	if err := client.Refresh(ctx); err != nil {
		logrus.WithError(err).Error("error refreshing configuration")
	}

	go refresh(ctx, client)

	return client
}

// refresh reloads the configuration on every tick until ctx is canceled.
func refresh(ctx context.Context, client *Client) {
	ticker := time.NewTicker(client.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := client.Refresh(ctx); err != nil {
				logrus.WithError(err).Error("error refreshing configuration")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Refresh fetches the template and GLOBAL values and replaces the resolved
// configuration. The previous configuration is kept on error.
func (c *Client) Refresh(ctx context.Context) error {
	resolved, err := Fetch(ctx, c.Store, c.Template, c.Service)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.values = resolved
	c.mu.Unlock()
	logrus.WithField("template", c.Template).WithField("service", c.Service).Debug("configuration refreshed")
	return nil
}

// Fetch loads the template and GLOBAL values from store concurrently and
// resolves them for service.
func Fetch(ctx context.Context, store source.Store, template, service string) (map[string]string, error) {
	templates := []string{template}
	if template != model.GlobalTemplate {
		templates = append(templates, model.GlobalTemplate)
	}

	fetched := make([][]model.ConfigValue, len(templates))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range templates {
		i, name := i, name
		g.Go(func() error {
			values, err := store.GetValues(gctx, name)
			if err != nil {
				return fmt.Errorf("fetching template %q: %w", name, err)
			}
			fetched[i] = values
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.ConfigValue
	for _, values := range fetched {
		all = append(all, values...)
	}
	return Resolve(all, template, service), nil
}

// Close stops the background refresh.
func (c *Client) Close() {
	c.cancel()
}

// Values returns a copy of the resolved configuration.
func (c *Client) Values() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values := make(map[string]string, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	return values
}

func (c *Client) get(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	return value, nil
}

// GetConfig decodes the YAML value of name into data, which must be a
// non-nil pointer.
func (c *Client) GetConfig(name string, data interface{}) error {
	value, err := c.get(name)
	if err != nil {
		return err
	}
	return yaml.Unmarshal([]byte(value), data)
}

// GetConfigString returns the raw value of name.
func (c *Client) GetConfigString(name string) (string, error) {
	return c.get(name)
}

func (c *Client) GetConfigInt(name string) (int, error) {
	var value int
	if err := c.GetConfig(name, &value); err != nil {
		return 0, fmt.Errorf("config %s is not an int: %w", name, err)
	}
	return value, nil
}

func (c *Client) GetConfigFloat(name string) (float64, error) {
	var value float64
	if err := c.GetConfig(name, &value); err != nil {
		return 0, fmt.Errorf("config %s is not a float: %w", name, err)
	}
	return value, nil
}

// GetConfigArrayOfStrings decodes a YAML sequence such as "[a, b]".
func (c *Client) GetConfigArrayOfStrings(name string) ([]string, error) {
	var value []string
	if err := c.GetConfig(name, &value); err != nil {
		return nil, fmt.Errorf("config %s is not an array of strings: %w", name, err)
	}
	return value, nil
}
