package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/shelf/internal/auth"
	"github.com/mesh-intelligence/shelf/internal/listing"
	"github.com/mesh-intelligence/shelf/internal/mockapi"
	"github.com/mesh-intelligence/shelf/internal/paths"
	"github.com/mesh-intelligence/shelf/internal/sqlite"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

const (
	testEmail    = "admin@example.com"
	testPassword = "hunter2"
)

// harness runs shelf commands against a development backend on httptest.
type harness struct {
	t         *testing.T
	url       string
	configDir string
	backend   *sqlite.Backend
}

func newHarness(t *testing.T, opts ...sqlite.Option) *harness {
	t.Helper()
	t.Setenv(envPassword, "")
	t.Setenv(paths.EnvConfigDir, "")
	t.Setenv(paths.EnvDataDir, "")

	backend, err := sqlite.Open(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	srv, err := mockapi.New(backend, mockapi.Config{AdminEmail: testEmail, AdminPassword: testPassword, Secret: "test-secret"})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{t: t, url: ts.URL, configDir: t.TempDir(), backend: backend}
}

// run executes one shelf invocation with stdin as its input.
func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config-dir", h.configDir, "--base-url", h.url}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, err := h.run("", args...)
	require.NoError(h.t, err, "stderr: %s", errOut)
	return out
}

func (h *harness) login() {
	h.t.Helper()
	h.mustRun("login", "--email", testEmail, "--password", testPassword)
}

func (h *harness) seed(resource string, fields types.Record) types.Record {
	h.t.Helper()
	rec, err := h.backend.Create(context.Background(), resource, fields)
	require.NoError(h.t, err)
	return rec
}

func TestVersion(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "shelf v")
	assert.Contains(t, out.String(), "module: github.com/mesh-intelligence/shelf")
}

func TestFirstRunWritesDefaultConfig(t *testing.T) {
	h := newHarness(t)
	h.mustRun("resources")

	data, err := os.ReadFile(paths.ConfigFile(h.configDir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url: http://localhost:8080")
}

func TestLoginAndLogout(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("login", "--email", testEmail, "--password", testPassword)
	assert.Contains(t, out, "Logged in as "+testEmail)

	token, err := auth.NewStore(h.configDir).Token()
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	info, err := os.Stat(filepath.Join(h.configDir, auth.FileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out = h.mustRun("logout")
	assert.Contains(t, out, "Logged out")
	_, err = auth.NewStore(h.configDir).Token()
	assert.ErrorIs(t, err, auth.ErrNoToken)
}

func TestLoginPasswordSources(t *testing.T) {
	t.Run("prompt", func(t *testing.T) {
		h := newHarness(t)
		_, errOut, err := h.run(testPassword+"\n", "login", "--email", testEmail)
		require.NoError(t, err)
		assert.Contains(t, errOut, "Password: ")
	})
	t.Run("environment", func(t *testing.T) {
		h := newHarness(t)
		t.Setenv(envPassword, testPassword)
		_, _, err := h.run("", "login", "--email", testEmail)
		require.NoError(t, err)
	})
	t.Run("email from config", func(t *testing.T) {
		h := newHarness(t)
		h.mustRun("init", "--admin-email", testEmail, "--data-dir", t.TempDir())
		_, _, err := h.run("", "login", "--password", testPassword)
		require.NoError(t, err)
	})
}

func TestCreateHelpExamplesRun(t *testing.T) {
	h := newHarness(t)
	h.login()

	var examples [][]string
	for _, line := range strings.Split(newCreateCmd(&app{}).Long, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "shelf create ") {
			examples = append(examples, splitExample(line)[1:])
		}
	}
	require.NotEmpty(t, examples)

	for _, args := range examples {
		t.Run(args[1], func(t *testing.T) {
			_, _, err := h.run("", args...)
			require.NoError(t, err)
		})
	}
}

// splitExample splits a shell command line on spaces, keeping double-quoted
// runs together and dropping the quotes.
func splitExample(line string) []string {
	var out []string
	var cur strings.Builder
	quoted := false
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case r == ' ' && !quoted:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func TestReadPasswordFromNonTerminal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\r\nrest\n"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	tests := []struct {
		name string
		in   func() io.Reader
		want string
	}{
		{name: "file", in: func() io.Reader { return f }, want: "s3cret"},
		{name: "reader", in: func() io.Reader { return strings.NewReader("piped\n") }, want: "piped"},
		{name: "no newline", in: func() io.Reader { return strings.NewReader("last") }, want: "last"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{in: tt.in()}
			var echo bytes.Buffer
			got, err := a.readPassword(&echo)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, echo.String())
		})
	}
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("", "login", "--email", testEmail, "--password", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, exitUserError, exitCode(err))

	_, _, err = h.run("", "login", "--password", testPassword)
	assert.ErrorIs(t, err, errNoEmail)
}

func TestCommandsRequireLogin(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "list", "users")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestUnknownResource(t *testing.T) {
	h := newHarness(t)
	h.login()
	_, _, err := h.run("", "list", "widgets")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnknownResource)
	assert.Contains(t, err.Error(), "products")
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestResources(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("resources")
	for _, name := range types.StandardResources {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "list,delete")

	out = h.mustRun("resources", "testimonials")
	assert.Contains(t, out, "rating")
	assert.Contains(t, out, "min=1 max=5 default=5")
}

func TestUserLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login()

	out := h.mustRun("--json", "create", "users", "name=Ada", "email=ada@example.com")
	var created types.Record
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	id := created.ID("id")
	require.NotEmpty(t, id)
	assert.Equal(t, "user", created["role"])
	assert.Equal(t, types.StatusActive, created["status"])

	out = h.mustRun("get", "users", id)
	assert.Contains(t, out, "ada@example.com")

	out = h.mustRun("update", "users", id, "role=admin")
	assert.Contains(t, out, "User updated successfully")
	assert.Contains(t, out, "admin")

	out = h.mustRun("toggle-status", "users", id)
	assert.Contains(t, out, "User status changed to inactive")

	stored, err := h.backend.Get(context.Background(), types.ResourceUsers, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored["name"])
	assert.Equal(t, "admin", stored["role"])
	assert.Equal(t, types.StatusInactive, stored["status"])

	out = h.mustRun("delete", "users", id, "--yes")
	assert.Contains(t, out, "User deleted successfully")
	_, err = h.backend.Get(context.Background(), types.ResourceUsers, id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCreateValidationFailure(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, _, err := h.run("", "create", "testimonials", "name=Ada", "rating=9")
	require.Error(t, err)
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("role"))
	assert.True(t, verr.Has("rating"))
	assert.Equal(t, exitUserError, exitCode(err))

	records, err := h.backend.List(context.Background(), types.ResourceTestimonials)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCreateNotSupported(t *testing.T) {
	h := newHarness(t)
	h.login()
	_, _, err := h.run("", "create", "orders", "customer=Ada")
	assert.ErrorIs(t, err, types.ErrNotSupported)
}

func TestInvalidFieldArgument(t *testing.T) {
	h := newHarness(t)
	h.login()
	_, _, err := h.run("", "create", "users", "name")
	require.Error(t, err)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestGetMissingRecord(t *testing.T) {
	h := newHarness(t)
	h.login()
	_, _, err := h.run("", "get", "users", "nope")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteConfirmation(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		want    string
		deleted bool
	}{
		{name: "no cancels", answer: "n\n", want: "Cancelled", deleted: false},
		{name: "empty answer cancels", answer: "\n", want: "Cancelled", deleted: false},
		{name: "closed input cancels", answer: "", want: "Cancelled", deleted: false},
		{name: "yes deletes", answer: "y\n", want: "Banner deleted successfully", deleted: true},
		{name: "YES deletes", answer: "YES\n", want: "Banner deleted successfully", deleted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.login()
			rec := h.seed(types.ResourceBanners, types.Record{"title": "Spring", "subtitle": "New", "link": "/spring", "position": 1})
			id := rec.ID("id")

			out, errOut, err := h.run(tt.answer, "delete", "banners", id)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
			assert.Contains(t, errOut, "Delete banner "+id+"? [y/N]")

			_, err = h.backend.Get(context.Background(), types.ResourceBanners, id)
			if tt.deleted {
				assert.ErrorIs(t, err, types.ErrNotFound)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestListSearchAndPages(t *testing.T) {
	h := newHarness(t)
	h.login()
	for i := 1; i <= 14; i++ {
		name := fmt.Sprintf("Chair %02d", i)
		if i%2 == 0 {
			name = fmt.Sprintf("Lamp %02d", i)
		}
		h.seed(types.ResourceProducts, types.Record{"name": name, "price": float64(i)})
	}

	out := h.mustRun("list", "products")
	assert.Contains(t, out, "Page 1 of 2 (14 Products)")
	assert.Contains(t, out, "Chair 01")
	assert.NotContains(t, out, "Chair 11")

	out = h.mustRun("list", "products", "--page", "2")
	assert.Contains(t, out, "Chair 11")
	assert.Contains(t, out, "Page 2 of 2")

	out = h.mustRun("--json", "list", "products", "--search", "lamp")
	var page listing.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 7, page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)
	assert.Len(t, page.Items, 7)

	out = h.mustRun("--json", "list", "products", "--all")
	var all []types.Record
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Len(t, all, 14)
}

func TestListEmpty(t *testing.T) {
	h := newHarness(t)
	h.login()
	out := h.mustRun("list", "categories")
	assert.Contains(t, out, "Page 1 of 1 (0 Categories)")
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.seed(types.ResourceCategories, types.Record{"name": "Furniture", "subCategory": []any{"Chairs", "Tables"}})
	h.seed(types.ResourceCategories, types.Record{"name": "Lighting"})

	path := filepath.Join(t.TempDir(), "categories.csv")
	_, errOut, err := h.run("", "export", "categories", "--format", "csv", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, errOut, "Exported 2 categories")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,subCategory", lines[0])
	assert.Contains(t, lines[1], "Furniture")

	out := h.mustRun("export", "categories", "--format", "yaml", "--search", "light")
	assert.Contains(t, out, "name: Lighting")
	assert.NotContains(t, out, "Furniture")

	_, _, err = h.run("", "export", "categories", "--format", "xml")
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestReceipt(t *testing.T) {
	h := newHarness(t, sqlite.WithSampleData())
	h.login()
	orders, err := h.backend.List(context.Background(), types.ResourceOrders)
	require.NoError(t, err)
	require.NotEmpty(t, orders)
	id := orders[0].ID("id")

	out := h.mustRun("receipt", id)
	assert.Contains(t, out, "RECEIPT")
	assert.Contains(t, out, "216.00")
	assert.Contains(t, out, "24.00")
	assert.Contains(t, out, "240.00")

	out = h.mustRun("--json", "receipt", id)
	var r types.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, 120.0, r.UnitPrice)

	_, _, err = h.run("", "receipt", "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDashboard(t *testing.T) {
	h := newHarness(t, sqlite.WithSampleData())
	h.login()
	h.seed(types.ResourceOrders, types.Record{"customer": "Bo", "items": 1, "total": 60.5, "status": "shipped"})

	out := h.mustRun("--json", "dashboard")
	var sum summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 1, sum.Users)
	assert.Equal(t, 2, sum.Orders)
	assert.Equal(t, 2, sum.Products)
	assert.InDelta(t, 300.5, sum.Revenue, 1e-9)
	assert.Equal(t, map[string]int{"pending": 1, "shipped": 1}, sum.OrdersByStatus)

	out = h.mustRun("dashboard")
	assert.Contains(t, out, "Revenue")
	assert.Contains(t, out, "300.50")
}

func TestBackendDownIsSystemError(t *testing.T) {
	h := newHarness(t)
	h.login()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dead := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	h.url = dead
	_, _, err = h.run("", "list", "users")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrNetwork)
	assert.Equal(t, exitSysError, exitCode(err))
}

func TestInit(t *testing.T) {
	h := newHarness(t)
	dataDir := t.TempDir()

	out := h.mustRun("init", "--admin-email", testEmail, "--data-dir", dataDir, "--seed")
	assert.Contains(t, out, "shelf initialized successfully")

	data, err := os.ReadFile(paths.ConfigFile(h.configDir))
	require.NoError(t, err)
	cfg := string(data)
	assert.Contains(t, cfg, "base_url: "+h.url)
	assert.Contains(t, cfg, "admin_email: "+testEmail)
	assert.Contains(t, cfg, "data_dir: "+dataDir)
	assert.Contains(t, cfg, "# Per-request timeout")

	_, err = os.Stat(filepath.Join(dataDir, "users.jsonl"))
	assert.NoError(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cmd, zap.NewNop(), ln, handler, "/tmp/data") }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, out.String(), "Server stopped")
}

func TestServeMockRequiresPassword(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "serve-mock", "--data-dir", t.TempDir())
	assert.ErrorIs(t, err, errNoMockPassword)
}

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    types.Record
		wantErr bool
	}{
		{name: "text stays text", args: []string{"name=Desk", "price=12.5"}, want: types.Record{"name": "Desk", "price": "12.5"}},
		{name: "value may contain equals", args: []string{"link=/a?b=c"}, want: types.Record{"link": "/a?b=c"}},
		{name: "json array decoded", args: []string{`colors=["red","blue"]`}, want: types.Record{"colors": []any{"red", "blue"}}},
		{name: "bad json stays text", args: []string{"note=[oops"}, want: types.Record{"note": "[oops"}},
		{name: "empty value", args: []string{"image="}, want: types.Record{"image": ""}},
		{name: "missing equals", args: []string{"name"}, wantErr: true},
		{name: "missing key", args: []string{"=x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFields(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &types.ValidationError{Fields: []types.FieldError{{Field: "name", Reason: "is required"}}}, want: exitUserError},
		{name: "not found", err: &types.BackendError{Status: http.StatusNotFound}, want: exitUserError},
		{name: "unauthorized", err: fmt.Errorf("list: %w", auth.ErrExpired), want: exitUserError},
		{name: "network", err: &types.NetworkError{Op: "list", Err: errors.New("refused")}, want: exitSysError},
		{name: "backend", err: &types.BackendError{Status: http.StatusInternalServerError}, want: exitSysError},
		{name: "explicit system", err: systemError(errors.New("disk full")), want: exitSysError},
		{name: "explicit user", err: userError(types.ErrNetwork), want: exitUserError},
		{name: "anything else", err: errors.New("boom"), want: exitUserError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
