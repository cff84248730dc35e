package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/sardine-ai/configconsole/model"
	"github.com/sirupsen/logrus"
)

// HTTPStore is a Store talking to the REST API of a remote console server.
// URL points at a single repository, e.g. http://host:8080/main.
type HTTPStore struct {
	URL    *url.URL     // Base URL of the remote repository
	APIKey string       // Optional API key for X-API-Key header authentication
	Client *http.Client // HTTP client, http.DefaultClient when nil
}

// NewWebRepository creates an HTTPStore for the repository at webURL.
func NewWebRepository(webURL, apiKey string) (*HTTPStore, error) {
	parsed, err := url.Parse(webURL)
	if err != nil {
		return nil, err
	}
	return &HTTPStore{URL: parsed, APIKey: apiKey}, nil
}

type templateQuery struct {
	Template string `url:"template"`
}

type serviceQuery struct {
	Template string `url:"template"`
	Service  string `url:"service"`
}

type valueQuery struct {
	Template string `url:"template"`
	Service  string `url:"service"`
	Key      string `url:"key"`
}

// GetValues returns all values of a template.
func (w *HTTPStore) GetValues(ctx context.Context, template string) ([]model.ConfigValue, error) {
	var values []model.ConfigValue
	err := w.do(ctx, http.MethodGet, "values", templateQuery{Template: template}, nil, &values)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []model.ConfigValue{}
	}
	return values, nil
}

// Exists reports whether a value with the given identity is present.
func (w *HTTPStore) Exists(ctx context.Context, template, service, key string) (bool, error) {
	err := w.do(ctx, http.MethodHead, "value", valueQuery{Template: template, Service: service, Key: key}, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Save inserts or replaces a value.
func (w *HTTPStore) Save(ctx context.Context, cv model.ConfigValue) error {
	return w.do(ctx, http.MethodPut, "value", nil, cv, nil)
}

// DeleteValue removes a single value.
func (w *HTTPStore) DeleteValue(ctx context.Context, cv model.ConfigValue) error {
	return w.do(ctx, http.MethodDelete, "value", valueQuery{Template: cv.Template, Service: cv.Service, Key: cv.Key}, nil, nil)
}

// DeleteForTemplate removes every value of a template.
func (w *HTTPStore) DeleteForTemplate(ctx context.Context, template string) error {
	return w.do(ctx, http.MethodDelete, "values", templateQuery{Template: template}, nil, nil)
}

// DeleteForService removes every value of a service within a template.
func (w *HTTPStore) DeleteForService(ctx context.Context, template, service string) error {
	return w.do(ctx, http.MethodDelete, "values", serviceQuery{Template: template, Service: service}, nil, nil)
}

// Templates returns the sorted distinct template names.
func (w *HTTPStore) Templates(ctx context.Context) ([]string, error) {
	var templates []string
	if err := w.do(ctx, http.MethodGet, "templates", nil, nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (w *HTTPStore) do(ctx context.Context, method, path string, params interface{}, body interface{}, out interface{}) error {
	target := *w.URL
	target.Path = strings.TrimSuffix(target.Path, "/") + "/" + path
	if params != nil {
		values, err := query.Values(params)
		if err != nil {
			return err
		}
		target.RawQuery = values.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		logrus.Debug("error creating request")
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")

	// Set X-API-Key header if API key is configured
	if w.APIKey != "" {
		request.Header.Set("X-API-Key", w.APIKey)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(request)
	if err != nil {
		logrus.Debug("error doing request")
		return err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logrus.WithError(err).Debug("error closing response body")
		}
	}(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil || method == http.MethodHead {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logrus.Debug("error decoding response")
		return err
	}
	return nil
}
