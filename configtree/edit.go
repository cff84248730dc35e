package configtree

import "github.com/sardine-ai/configconsole/model"

// editKey identifies a tree row. Keys are unique per service within the
// template the view model shows, so the template is not part of it.
type editKey struct {
	service string
	key     string
}

func rowOf(cv model.ConfigValue) editKey {
	return editKey{service: cv.Service, key: cv.Key}
}

// StartEdit marks the row of cv as being edited inline.
func (vm *ViewModel) StartEdit(cv model.ConfigValue) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.editing[rowOf(cv)] = true
}

// FinishEdit clears the inline edit mark of the row of cv.
func (vm *ViewModel) FinishEdit(cv model.ConfigValue) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	delete(vm.editing, rowOf(cv))
}

// IsEditing reports whether the row of cv is being edited inline.
func (vm *ViewModel) IsEditing(cv model.ConfigValue) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.editing[rowOf(cv)]
}
