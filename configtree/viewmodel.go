package configtree

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sardine-ai/configconsole/model"
)

// Store is the part of the remote store the view model needs.
type Store interface {
	GetValues(ctx context.Context, template string) ([]model.ConfigValue, error)
	Exists(ctx context.Context, template, service, key string) (bool, error)
	Save(ctx context.Context, cv model.ConfigValue) error
	DeleteValue(ctx context.Context, cv model.ConfigValue) error
	DeleteForTemplate(ctx context.Context, template string) error
	DeleteForService(ctx context.Context, template, service string) error
}

// Alerts shows user-facing messages.
type Alerts interface {
	Success(message string)
	Danger(message string)
}

// Navigator moves the user to another screen.
type Navigator interface {
	NavigateTo(segments ...string)
}

// ViewModel holds the config tree of one template.
type ViewModel struct {
	store  Store
	alerts Alerts
	nav    Navigator

	mu          sync.RWMutex
	template    string
	searchQuery string
	tree        []*Node
	loaded      bool
	editing     map[editKey]bool
	closed      bool
	cancel      context.CancelFunc
}

// New returns an empty, not yet loaded view model.
func New(store Store, alerts Alerts, nav Navigator) *ViewModel {
	return &ViewModel{
		store:   store,
		alerts:  alerts,
		nav:     nav,
		tree:    []*Node{},
		editing: map[editKey]bool{},
	}
}

func (vm *ViewModel) Template() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.template
}

// SetTemplate changes the template without reloading.
func (vm *ViewModel) SetTemplate(template string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.template = template
}

func (vm *ViewModel) SearchQuery() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.searchQuery
}

// Loaded reports whether a load attempt has completed, successful or not.
func (vm *ViewModel) Loaded() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.loaded
}

// Tree returns a copy of the current tree.
func (vm *ViewModel) Tree() []Node {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	nodes := make([]Node, 0, len(vm.tree))
	for _, node := range vm.tree {
		items := make([]*model.ConfigValue, 0, len(node.Items))
		for _, item := range node.Items {
			cv := *item
			items = append(items, &cv)
		}
		nodes = append(nodes, Node{Name: node.Name, Items: items, Icon: node.Icon})
	}
	return nodes
}

// SetSearchQuery stores the query and rebuilds the tree from the store.
func (vm *ViewModel) SetSearchQuery(ctx context.Context, query string) error {
	vm.mu.Lock()
	vm.searchQuery = query
	vm.mu.Unlock()
	return vm.Reload(ctx)
}

// Reload fetches the values of the current template and rebuilds the tree.
// On failure the tree is left as it was.
func (vm *ViewModel) Reload(ctx context.Context) error {
	template := vm.Template()
	logrus.WithField("template", template).Debug("loading config values")

	values, err := vm.store.GetValues(ctx, template)

	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		if err != nil {
			return &NetworkError{Op: "reload", Err: err}
		}
		return nil
	}
	if err == nil {
		vm.tree = BuildTree(values, vm.searchQuery)
	}
	vm.loaded = true
	vm.mu.Unlock()

	if err != nil {
		vm.fail("reload", err, fmt.Sprintf("Error loading config values for template '%s'!", template),
			logrus.Fields{"template": template})
		return &NetworkError{Op: "reload", Err: err}
	}
	return nil
}

// DeleteNode deletes a single value and removes it from the tree without
// reloading.
func (vm *ViewModel) DeleteNode(ctx context.Context, cv model.ConfigValue) error {
	if err := vm.store.DeleteValue(ctx, cv); err != nil {
		vm.fail("delete value", err, fmt.Sprintf("Error deleting config pair '%s-%s'", cv.Key, cv.Value),
			logrus.Fields{"template": cv.Template, "service": cv.Service, "key": cv.Key})
		return &NetworkError{Op: "delete value", Err: err}
	}

	vm.mu.Lock()
	vm.tree, _ = removeItem(vm.tree, cv.Service, cv.Key)
	delete(vm.editing, rowOf(cv))
	vm.mu.Unlock()
	return nil
}

// DeleteTemplate deletes every value of the current template and leaves the
// screen.
func (vm *ViewModel) DeleteTemplate(ctx context.Context) error {
	template := vm.Template()
	if err := vm.store.DeleteForTemplate(ctx, template); err != nil {
		vm.fail("delete template", err, fmt.Sprintf("Error deleting config values for template '%s'!", template),
			logrus.Fields{"template": template})
		return &NetworkError{Op: "delete template", Err: err}
	}
	vm.alerts.Success(fmt.Sprintf("All config values for template '%s' were deleted successfully!", template))
	vm.nav.NavigateTo("config")
	return nil
}

// DeleteService deletes every value of service in the current template and
// reloads the tree.
func (vm *ViewModel) DeleteService(ctx context.Context, service string) error {
	template := vm.Template()
	if err := vm.store.DeleteForService(ctx, template, service); err != nil {
		vm.fail("delete service", err, fmt.Sprintf("Error deleting configuration values for service '%s'!", service),
			logrus.Fields{"template": template, "service": service})
		return &NetworkError{Op: "delete service", Err: err}
	}
	vm.alerts.Success(fmt.Sprintf("Successfully deleted all configuration values for service '%s'", service))
	return vm.Reload(ctx)
}

// SaveValue updates the value of cv. The tree shows the new value right away
// and gets the old one back if the store rejects the change.
func (vm *ViewModel) SaveValue(ctx context.Context, cv model.ConfigValue, newValue string) error {
	vm.mu.Lock()
	item := findItem(vm.tree, cv)
	var oldValue string
	if item != nil {
		oldValue = item.Value
		item.Value = newValue
	}
	vm.mu.Unlock()

	updated := cv
	updated.Value = newValue
	if err := vm.store.Save(ctx, updated); err != nil {
		if item != nil {
			vm.mu.Lock()
			item.Value = oldValue
			vm.mu.Unlock()
		}
		vm.fail("save value", err, fmt.Sprintf("Failed to modify value for key : %s", cv.Key),
			logrus.Fields{"template": cv.Template, "service": cv.Service, "key": cv.Key})
		return &NetworkError{Op: "save value", Err: err}
	}
	vm.alerts.Success(fmt.Sprintf("Modified value for key : %s", cv.Key))
	return nil
}

// CreateValue validates and stores a new value. An empty template defaults
// to the current one.
func (vm *ViewModel) CreateValue(ctx context.Context, cv model.ConfigValue) error {
	if cv.Template == "" {
		cv.Template = vm.Template()
	}
	failure := func(err error) string {
		return fmt.Sprintf("Error creating new key-value pair '%s - %s': %v", cv.Key, cv.Value, err)
	}
	fields := logrus.Fields{"template": cv.Template, "service": cv.Service, "key": cv.Key}

	if err := Validate(cv); err != nil {
		vm.fail("validate", err, failure(err), fields)
		return err
	}

	exists, err := vm.store.Exists(ctx, cv.Template, cv.Service, cv.Key)
	if err != nil {
		vm.fail("check value", err, failure(err), fields)
		return &NetworkError{Op: "check value", Err: err}
	}
	if exists {
		err := fmt.Errorf("%w: configuration for '%s' does already exist", ErrDuplicateKey, cv.Key)
		vm.fail("create value", err, failure(err), fields)
		return err
	}

	if err := vm.store.Save(ctx, cv); err != nil {
		vm.fail("create value", err, failure(err), fields)
		return &NetworkError{Op: "create value", Err: err}
	}
	vm.alerts.Success(fmt.Sprintf("Successfully created key-value pair: '%s - %s'.", cv.Key, cv.Value))
	vm.nav.NavigateTo("config", cv.Template)
	return nil
}

// GoToDetail opens the detail screen of cv.
func (vm *ViewModel) GoToDetail(cv *model.ConfigValue) {
	if cv == nil {
		return
	}
	vm.nav.NavigateTo("config", cv.Template, cv.Service, cv.Key)
}

// Bind reloads the tree for every template received until ctx is done, the
// channel is closed or Close is called. A reload already running when the
// binding ends is not aborted, its result is dropped once closed. Binding a
// closed view model reopens it.
func (vm *ViewModel) Bind(ctx context.Context, templates <-chan string) {
	ctx, cancel := context.WithCancel(ctx)
	vm.mu.Lock()
	if vm.cancel != nil {
		vm.cancel()
	}
	vm.cancel = cancel
	vm.closed = false
	vm.mu.Unlock()

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case template, ok := <-templates:
				if !ok {
					return
				}
				vm.SetTemplate(template)
				_ = vm.Reload(context.WithoutCancel(ctx))
			}
		}
	}()
}

// Close ends the template binding. The view model no longer applies reload
// results afterwards.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.closed = true
	if vm.cancel != nil {
		vm.cancel()
		vm.cancel = nil
	}
}

func (vm *ViewModel) fail(op string, err error, message string, fields logrus.Fields) {
	entry := logrus.WithError(err).WithFields(fields)
	var validationErr *ValidationError
	if errors.As(err, &validationErr) || errors.Is(err, ErrDuplicateKey) {
		entry.Warn(op + " rejected")
	} else {
		entry.Error(op + " failed")
	}
	vm.alerts.Danger(message)
}
