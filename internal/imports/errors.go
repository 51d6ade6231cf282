package imports

import "fmt"

// ImportError reports a require of a module that was not provided yet.
type ImportError struct {
	// Module is the module id that could not be found.
	Module string
	// Name is the logical import name Module is mapped to, or "" when the
	// module is not in the import map at all.
	Name string
	// Requester is the import whose factory called require.
	Requester string
}

func (e *ImportError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("import %q requires module %s, which is not in the import map; add it before %q",
			e.Requester, e.Module, e.Requester)
	}
	return fmt.Sprintf("import %s (mapped to %q) cannot be found while resolving %q; reorder the import map so that %q is listed before %q",
		e.Module, e.Name, e.Requester, e.Name, e.Requester)
}
