package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sardine-ai/configconsole/model"
	"github.com/sardine-ai/configconsole/source"
)

const testDocument = `values:
  - template: GLOBAL
    key: region
    value: eu-west-1
  - template: GLOBAL
    key: timeout
    value: "30"
  - template: GLOBAL
    service: web
    key: workers
    value: "2"
  - template: GLOBAL
    service: VARIABLES
    key: ${domain}
    value: example.com
  - template: shop
    key: timeout
    value: "10"
  - template: shop
    service: web
    key: url
    value: https://${env}.${domain}
  - template: shop
    service: web
    key: ratio
    value: "0.5"
  - template: shop
    service: web
    key: hosts
    value: "[a, b]"
  - template: shop
    service: VARIABLES
    key: ${env}
    value: prod
`

func newFileStore(t *testing.T) *source.DocumentStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDocument), 0o644))
	store, err := source.NewFileRepository("main", path)
	require.NoError(t, err)
	require.NoError(t, store.Refresh())
	return store
}

func TestNewClient(t *testing.T) {
	client := NewClient(context.Background(), newFileStore(t), "shop", "web", time.Hour)
	defer client.Close()

	assert.Equal(t, map[string]string{
		"region":  "eu-west-1",
		"timeout": "10",
		"workers": "2",
		"url":     "https://prod.example.com",
		"ratio":   "0.5",
		"hosts":   "[a, b]",
	}, client.Values())

	s, err := client.GetConfigString("region")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", s)

	i, err := client.GetConfigInt("timeout")
	require.NoError(t, err)
	assert.Equal(t, 10, i)

	f, err := client.GetConfigFloat("ratio")
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)

	hosts, err := client.GetConfigArrayOfStrings("hosts")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, hosts)

	_, err = client.GetConfigInt("region")
	assert.Error(t, err)

	_, err = client.GetConfigString("missing")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestClientRefreshPicksUpChanges(t *testing.T) {
	store := newFileStore(t)
	client := NewClient(context.Background(), store, "shop", "", time.Hour)
	defer client.Close()

	require.NoError(t, store.Save(context.Background(), model.ConfigValue{Template: "shop", Key: "timeout", Value: "20"}))
	require.NoError(t, client.Refresh(context.Background()))

	i, err := client.GetConfigInt("timeout")
	require.NoError(t, err)
	assert.Equal(t, 20, i)
}

type failingStore struct {
	source.Store
}

func (failingStore) GetValues(context.Context, string) ([]model.ConfigValue, error) {
	return nil, errors.New("unreachable")
}

func TestClientKeepsValuesOnError(t *testing.T) {
	client := NewClient(context.Background(), failingStore{}, "shop", "web", time.Hour)
	defer client.Close()

	assert.Empty(t, client.Values())
	assert.Error(t, client.Refresh(context.Background()))
}
