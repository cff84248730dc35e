package client

import (
	"sort"
	"strings"

	"github.com/sardine-ai/configconsole/model"
)

// Resolve computes the effective configuration of service in template from
// the values of template and GLOBAL.
//
// Layers, later ones override earlier ones per key:
//
//	GLOBAL/""  GLOBAL/service  template/""  template/service
//
// The GLOBAL layers are skipped for the VARIABLES template and the template
// layers for GLOBAL itself. Every variable key found in a resolved value is
// replaced by the variable's value. VARIABLES values are never part of the
// result.
func Resolve(values []model.ConfigValue, template, service string) map[string]string {
	isGlobal := strings.EqualFold(template, model.GlobalTemplate)
	isVariables := strings.EqualFold(template, model.VariablesService)

	type layer struct{ template, service string }
	var layers []layer
	if !isVariables {
		layers = append(layers, layer{model.GlobalTemplate, ""})
		if service != "" {
			layers = append(layers, layer{model.GlobalTemplate, service})
		}
	}
	if !isGlobal {
		layers = append(layers, layer{template, ""})
		if service != "" {
			layers = append(layers, layer{template, service})
		}
	}

	result := map[string]string{}
	for _, l := range layers {
		for _, cv := range values {
			if cv.Service == model.VariablesService {
				continue
			}
			if cv.Template == l.template && cv.Service == l.service {
				result[cv.Key] = cv.Value
			}
		}
	}

	vars := variables(values, template)
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for k, v := range result {
		for _, name := range keys {
			v = strings.ReplaceAll(v, name, vars[name])
		}
		result[k] = v
	}
	return result
}

// variables returns the VARIABLES values of template, completed by those of
// GLOBAL that template does not define.
func variables(values []model.ConfigValue, template string) map[string]string {
	vars := map[string]string{}
	for _, cv := range values {
		if cv.Service == model.VariablesService && cv.Template == template && cv.Key != "" {
			vars[cv.Key] = cv.Value
		}
	}
	for _, cv := range values {
		if cv.Service != model.VariablesService || cv.Template != model.GlobalTemplate || cv.Key == "" {
			continue
		}
		if _, ok := vars[cv.Key]; !ok {
			vars[cv.Key] = cv.Value
		}
	}
	return vars
}
