package imports

import (
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bundle = MapTable{
	"./src/math": `function (module, exports, require) {
		exports.square = function (x) { return x * x; };
	}`,
	"./src/geometry": `function (module, exports, require) {
		var math = require("./src/math");
		exports.area = function (r) { return 3 * math.square(r); };
	}`,
	"./src/lazy": `function (module, exports, require) {
		require.r(exports);
		require.d(exports, "value", function () { return 42; });
	}`,
	"./src/replace": `function (module) {
		module.exports = function () { return "whole"; };
	}`,
}

type harness struct {
	vm    *goja.Runtime
	shim  *Shim
	tasks []func() error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{vm: goja.New()}
	h.shim = NewShim(h.vm, func(task func() error) { h.tasks = append(h.tasks, task) })
	require.NoError(t, h.vm.Set("__imports", h.shim.Object()))
	require.NoError(t, h.vm.Set("imports", h.shim.Exports()))
	return h
}

func (h *harness) run(t *testing.T, m ImportMap) error {
	t.Helper()

	src, err := NewResolver(bundle).Source(m)
	require.NoError(t, err)

	_, err = h.vm.RunString(src)
	return err
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	for _, task := range h.tasks {
		require.NoError(t, task())
	}
	h.tasks = nil
}

func TestResolverInertWithoutTable(t *testing.T) {
	src, err := NewResolver(nil).Source(ImportMap{{Name: "math", Module: "./src/math"}})
	require.NoError(t, err)
	assert.Empty(t, src)
	assert.False(t, NewResolver(nil).Enabled())
}

func TestResolverEmptyMap(t *testing.T) {
	src, err := NewResolver(bundle).Source(nil)
	require.NoError(t, err)
	assert.Empty(t, src)
}

func TestResolverModuleNotFound(t *testing.T) {
	_, err := NewResolver(bundle).Source(ImportMap{{Name: "gone", Module: "./src/gone"}})
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Contains(t, err.Error(), "./src/gone")
}

func TestResolverValidatesMap(t *testing.T) {
	_, err := NewResolver(bundle).Source(ImportMap{
		{Name: "math", Module: "./src/math"},
		{Name: "math", Module: "./src/geometry"},
	})
	assert.ErrorIs(t, err, ErrDuplicateImport)

	_, err = NewResolver(bundle).Source(ImportMap{{Name: "", Module: "./src/math"}})
	assert.ErrorIs(t, err, ErrInvalidImport)
}

func TestImportsInOrder(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, ImportMap{
		{Name: "math", Module: "./src/math"},
		{Name: "geometry", Module: "./src/geometry"},
	}))
	require.NoError(t, h.shim.Err())

	v, err := h.vm.RunString("geometry.area(2) + imports.math.square(3)")
	require.NoError(t, err)
	assert.Equal(t, int64(21), v.ToInteger())
}

func TestImportsDependencyAfterDependent(t *testing.T) {
	h := newHarness(t)
	err := h.run(t, ImportMap{
		{Name: "geometry", Module: "./src/geometry"},
		{Name: "math", Module: "./src/math"},
	})
	require.Error(t, err)

	var importErr *ImportError
	require.True(t, errors.As(h.shim.Err(), &importErr))
	assert.Equal(t, "./src/math", importErr.Module)
	assert.Equal(t, "math", importErr.Name)
	assert.Equal(t, "geometry", importErr.Requester)
	assert.Contains(t, err.Error(), "./src/math")
	assert.Contains(t, err.Error(), "reorder")
}

func TestImportsUndeclaredDependency(t *testing.T) {
	h := newHarness(t)
	require.Error(t, h.run(t, ImportMap{{Name: "geometry", Module: "./src/geometry"}}))

	var importErr *ImportError
	require.True(t, errors.As(h.shim.Err(), &importErr))
	assert.Empty(t, importErr.Name)
	assert.Contains(t, importErr.Error(), "not in the import map")
}

func TestDeferredBinding(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, ImportMap{{Name: "lazy", Module: "./src/lazy"}}))

	v, err := h.vm.RunString("lazy.value")
	require.NoError(t, err)
	assert.True(t, goja.IsUndefined(v), "binding must not be assigned synchronously")

	require.Len(t, h.tasks, 1)
	h.flush(t)

	v, err = h.vm.RunString("lazy.value")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.ToInteger())

	v, err = h.vm.RunString("lazy.__esModule")
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())
}

func TestModuleExportsReplaced(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, ImportMap{{Name: "replace", Module: "./src/replace"}}))

	v, err := h.vm.RunString("replace()")
	require.NoError(t, err)
	assert.Equal(t, "whole", v.String())
}

func TestReservedNamesNotBound(t *testing.T) {
	src, err := NewResolver(MapTable{"./send": `function (module) { module.exports = 1; }`}).
		Source(ImportMap{{Name: "send", Module: "./send"}, {Name: "with-dash", Module: "./send"}})
	require.NoError(t, err)

	assert.NotContains(t, src, "var send")
	assert.NotContains(t, src, "var with-dash")
}

func TestBindable(t *testing.T) {
	assert.True(t, Bindable("lodash"))
	assert.True(t, Bindable("$"))
	assert.False(t, Bindable("options"))
	assert.False(t, Bindable("class"))
	assert.False(t, Bindable("my-lib"))
}
