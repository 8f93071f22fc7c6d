package middleware

import (
	"net/http"
	"slices"

	"pipe-company/internal/domain"

	"go.uber.org/zap"
)

// Permissions granted to back-office roles
const (
	PermProductsWrite = "products:write"
	PermMediaWrite    = "media:write"
	PermQuotesRead    = "quotes:read"
	PermQuotesWrite   = "quotes:write"
	PermCompanyWrite  = "company:write"
	PermAuditRead     = "audit:read"
	PermBackupsManage = "backups:manage"
	PermUsersManage   = "users:manage"
)

var rolePermissions = map[string][]string{
	domain.RoleAdmin: {
		PermProductsWrite, PermMediaWrite, PermQuotesRead, PermQuotesWrite,
		PermCompanyWrite, PermAuditRead, PermBackupsManage, PermUsersManage,
	},
	domain.RoleEditor: {
		PermProductsWrite, PermMediaWrite, PermQuotesRead, PermQuotesWrite,
		PermCompanyWrite, PermAuditRead,
	},
	domain.RoleViewer: {
		PermQuotesRead, PermAuditRead,
	},
}

// HasPermission reports whether role grants perm. Unknown roles grant nothing.
func HasPermission(role, perm string) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// RequireAdmin middleware ensures the user has admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]string{domain.RoleAdmin}, logger)
}

// RequireRole middleware ensures the user has one of the specified roles
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if !slices.Contains(allowedRoles, role) {
				logger.Warn("User role not authorized",
					zap.String("role", role),
					zap.Strings("allowed_roles", allowedRoles),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission middleware ensures the user's role grants perm
func RequirePermission(perm string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if !HasPermission(role, perm) {
				logger.Warn("Permission denied",
					zap.String("role", role),
					zap.String("permission", perm),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
