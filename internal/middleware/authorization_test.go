package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pipe-company/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

var allPermissions = []string{
	PermProductsWrite, PermMediaWrite, PermQuotesRead, PermQuotesWrite,
	PermCompanyWrite, PermAuditRead, PermBackupsManage, PermUsersManage,
}

func withRole(r *http.Request, role string) *http.Request {
	ctx := context.WithValue(r.Context(), UserRoleKey, role)
	return r.WithContext(ctx)
}

func serveWithPermission(perm, role string, setRole bool) int {
	handler := RequirePermission(perm, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest("GET", "/api/admin/backups", nil)
	if setRole {
		req = withRole(req, role)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code
}

// Feature: pipe-company, Property 27: Permission checks follow the role table
func TestProperty_RequirePermissionFollowsRoleTable(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("access is granted iff the role holds the permission", prop.ForAll(
		func(role string, permIdx int) bool {
			perm := allPermissions[permIdx]
			code := serveWithPermission(perm, role, true)
			if HasPermission(role, perm) {
				return code == http.StatusNoContent
			}
			return code == http.StatusForbidden
		},
		gen.OneConstOf(domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer, "customer", ""),
		gen.IntRange(0, len(allPermissions)-1),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRoleTable(t *testing.T) {
	for _, perm := range allPermissions {
		if !HasPermission(domain.RoleAdmin, perm) {
			t.Errorf("admin should hold %s", perm)
		}
	}
	if HasPermission(domain.RoleEditor, PermBackupsManage) || HasPermission(domain.RoleEditor, PermUsersManage) {
		t.Error("editors must not manage backups or users")
	}
	if !HasPermission(domain.RoleEditor, PermProductsWrite) {
		t.Error("editors should edit products")
	}
	if HasPermission(domain.RoleViewer, PermQuotesWrite) || !HasPermission(domain.RoleViewer, PermQuotesRead) {
		t.Error("viewers read quotes but cannot change them")
	}
}

func TestRequirePermissionWithoutRole(t *testing.T) {
	if code := serveWithPermission(PermQuotesRead, "", false); code != http.StatusForbidden {
		t.Errorf("expected 403 without a role in context, got %d", code)
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for role, want := range map[string]int{
		domain.RoleAdmin:  http.StatusOK,
		domain.RoleEditor: http.StatusForbidden,
		domain.RoleViewer: http.StatusForbidden,
	} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, withRole(httptest.NewRequest("GET", "/api/users", nil), role))
		if w.Code != want {
			t.Errorf("role %s: got %d want %d", role, w.Code, want)
		}
	}
}

func TestActorID(t *testing.T) {
	if ActorID(context.Background()) != nil {
		t.Error("no user in context should give nil actor")
	}

	bad := context.WithValue(context.Background(), UserIDKey, "not-a-uuid")
	if ActorID(bad) != nil {
		t.Error("malformed id should give nil actor")
	}

	id := uuid.New()
	good := context.WithValue(context.Background(), UserIDKey, id.String())
	if got := ActorID(good); got == nil || *got != id {
		t.Errorf("expected %s, got %v", id, got)
	}
}
