// Package configtree projects the config values of a template into a
// grouped, sorted and searchable tree and keeps that projection consistent
// while values are edited, created and deleted through a remote store.
package configtree

import (
	"sort"
	"strings"

	"github.com/sardine-ai/configconsole/model"
)

const (
	// IconGlobal marks the node holding template-global values.
	IconGlobal = "fa-institution"
	// IconService marks a node holding the values of a named service.
	IconService = "fa-flask"
)

// Node groups the values of one service. Name is "" for template-global
// values.
type Node struct {
	Name  string
	Items []*model.ConfigValue
	Icon  string
}

// IconFor derives the node icon from its name.
func IconFor(name string) string {
	if strings.TrimSpace(name) == "" {
		return IconGlobal
	}
	return IconService
}

// filterOut reports whether cv is hidden from the tree for the given query.
//
// VARIABLES values are always shown. With a query, values containing it in
// any field are hidden and the rest are shown; without a query, everything
// else is hidden.
func filterOut(cv model.ConfigValue, query string) bool {
	if cv.Service == model.VariablesService {
		return false
	}
	if query != "" {
		needle := strings.TrimSpace(query)
		for _, field := range cv.Fields() {
			if strings.Contains(field, needle) {
				return true
			}
		}
		return false
	}
	return true
}

// BuildTree groups the values that survive the query filter by service,
// sorts every group by key and the groups by name. The tree owns copies of
// the input values.
func BuildTree(values []model.ConfigValue, query string) []*Node {
	groups := map[string][]*model.ConfigValue{}
	for _, cv := range values {
		if filterOut(cv, query) {
			continue
		}
		item := cv
		groups[item.Service] = append(groups[item.Service], &item)
	}

	tree := make([]*Node, 0, len(groups))
	for name, items := range groups {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Key < items[j].Key
		})
		tree = append(tree, &Node{Name: name, Items: items, Icon: IconFor(name)})
	}
	sort.SliceStable(tree, func(i, j int) bool {
		return tree[i].Name < tree[j].Name
	})
	return tree
}

// removeItem drops every item with key from the node named service and the
// node itself once it is empty. It reports whether anything was removed.
func removeItem(tree []*Node, service, key string) ([]*Node, bool) {
	idx := -1
	for i, node := range tree {
		if node.Name == service {
			idx = i
		}
	}
	if idx < 0 {
		return tree, false
	}

	node := tree[idx]
	kept := node.Items[:0]
	removed := false
	for _, item := range node.Items {
		if item.Key == key {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	node.Items = kept

	if len(node.Items) == 0 {
		tree = append(tree[:idx], tree[idx+1:]...)
	}
	return tree, removed
}

// findItem returns the tree item with the identity of cv, if any.
func findItem(tree []*Node, cv model.ConfigValue) *model.ConfigValue {
	for _, node := range tree {
		if node.Name != cv.Service {
			continue
		}
		for _, item := range node.Items {
			if item.Key == cv.Key && item.Template == cv.Template {
				return item
			}
		}
	}
	return nil
}
