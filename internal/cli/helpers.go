package cli

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/mesh-intelligence/shelf/internal/admin"
	"github.com/mesh-intelligence/shelf/internal/auth"
	"github.com/mesh-intelligence/shelf/internal/restapi"
	"github.com/mesh-intelligence/shelf/internal/store"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// validResources is the comma-separated list of resource names for error output.
var validResources = strings.Join(types.StandardResources, ", ")

// client builds an authenticated REST client from the loaded configuration.
func (a *app) client() (*restapi.Client, error) {
	cfg, err := clientConfig(a.config)
	if err != nil {
		return nil, userError(err)
	}
	c, err := restapi.New(cfg,
		restapi.WithTokenSource(auth.NewStore(a.configDir)),
		restapi.WithLogger(a.logger),
	)
	if err != nil {
		return nil, userError(err)
	}
	return c, nil
}

// schema looks up resource, turning an unknown name into a user error.
func schema(resource string) (types.Schema, error) {
	s, err := types.LookupSchema(resource)
	if err != nil {
		return types.Schema{}, userError(fmt.Errorf("%w %q (valid: %s)", err, resource, validResources))
	}
	return s, nil
}

// page opens an admin page over resource. The returned view holds the last
// rendered state. The caller must Close the page.
func (a *app) page(resource string) (*admin.Page, *view, error) {
	s, err := schema(resource)
	if err != nil {
		return nil, nil, err
	}
	c, err := a.client()
	if err != nil {
		return nil, nil, err
	}
	v := &view{}
	st := store.New(c, s, store.WithLogger(a.logger))
	return admin.NewPage(st, v, admin.WithLogger(a.logger)), v, nil
}

// view is the CLI's renderer: it keeps the most recent state.
type view struct {
	mu   sync.Mutex
	last admin.State
}

func (v *view) Render(s admin.State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = s
}

func (v *view) State() admin.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// parseFields turns key=value arguments into a record. Values that look like
// JSON arrays or objects are decoded; everything else stays text and is
// coerced to the field's kind by the schema.
func parseFields(args []string) (types.Record, error) {
	fields := make(types.Record, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, userError(fmt.Errorf("invalid field %q (expected key=value)", arg))
		}
		var parsed any = value
		if strings.HasPrefix(value, "[") || strings.HasPrefix(value, "{") {
			if err := json.Unmarshal([]byte(value), &parsed); err != nil {
				parsed = value
			}
		}
		fields[key] = parsed
	}
	return fields, nil
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
