package detect

import "fmt"

// ModelLoadError reports a classifier model that could not be located or loaded.
// It is fatal: no detector is returned alongside it.
type ModelLoadError struct {
	Name string
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load classifier %q from %s: %v", e.Name, e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}
