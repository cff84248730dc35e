package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sardine-ai/configconsole/model"
)

func TestResolve(t *testing.T) {
	values := []model.ConfigValue{
		{Template: "GLOBAL", Key: "a", Value: "global"},
		{Template: "GLOBAL", Key: "b", Value: "global"},
		{Template: "GLOBAL", Service: "web", Key: "b", Value: "global-web"},
		{Template: "GLOBAL", Service: "web", Key: "c", Value: "global-web"},
		{Template: "t1", Key: "c", Value: "t1"},
		{Template: "t1", Key: "d", Value: "t1"},
		{Template: "t1", Service: "web", Key: "d", Value: "t1-web"},
		{Template: "t1", Service: "db", Key: "e", Value: "t1-db"},
		{Template: "t2", Key: "f", Value: "t2"},
	}

	tests := []struct {
		name     string
		template string
		service  string
		expected map[string]string
	}{
		{
			name:     "all layers",
			template: "t1",
			service:  "web",
			expected: map[string]string{"a": "global", "b": "global-web", "c": "t1", "d": "t1-web"},
		},
		{
			name:     "template scope only",
			template: "t1",
			expected: map[string]string{"a": "global", "b": "global", "c": "t1", "d": "t1"},
		},
		{
			name:     "global template",
			template: "GLOBAL",
			service:  "web",
			expected: map[string]string{"a": "global", "b": "global-web", "c": "global-web"},
		},
		{
			name:     "variables template skips global",
			template: "VARIABLES",
			expected: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(values, tt.template, tt.service))
		})
	}
}

func TestResolveVariables(t *testing.T) {
	values := []model.ConfigValue{
		{Template: "GLOBAL", Service: "VARIABLES", Key: "%host%", Value: "global-host"},
		{Template: "GLOBAL", Service: "VARIABLES", Key: "%port%", Value: "80"},
		{Template: "t1", Service: "VARIABLES", Key: "%host%", Value: "t1-host"},
		{Template: "t1", Key: "url", Value: "http://%host%:%port%"},
	}

	resolved := Resolve(values, "t1", "VARIABLES")

	assert.Equal(t, map[string]string{"url": "http://t1-host:80"}, resolved)
}
