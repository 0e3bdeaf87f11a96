package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/repository"
	"github.com/tablelane/tablelane-api/internal/presentation/http/dto/response"
)

// TenantFromSlug resolves the tenant from the :tenant_slug path
// parameter. Used on public QR routes and webhook routes, where no JWT
// is available.
func TenantFromSlug(tenantRepo repository.TenantRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Param("tenant_slug")
		if slug == "" {
			response.BadRequest(c, "Tenant slug is required")
			c.Abort()
			return
		}

		tenant, err := tenantRepo.GetBySlug(c.Request.Context(), slug)
		if err != nil {
			response.InternalServerError(c, "Failed to resolve tenant")
			c.Abort()
			return
		}
		if tenant == nil {
			response.NotFound(c, "Restaurant not found")
			c.Abort()
			return
		}

		c.Set("tenant_id", tenant.ID)
		c.Set("tenant", tenant)

		c.Next()
	}
}

// RequireTenant ensures a valid tenant context exists
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, exists := c.Get("tenant_id")
		if !exists {
			response.BadRequest(c, "Tenant context required")
			c.Abort()
			return
		}

		id, ok := tenantID.(uuid.UUID)
		if !ok || id == uuid.Nil {
			response.BadRequest(c, "Invalid tenant context")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetTenantID retrieves the tenant ID from gin context
func GetTenantID(c *gin.Context) uuid.UUID {
	tenantID, exists := c.Get("tenant_id")
	if !exists {
		return uuid.Nil
	}
	id, ok := tenantID.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

// GetTenant retrieves the resolved tenant entity from gin context, if
// the request came through TenantFromSlug.
func GetTenant(c *gin.Context) *entity.Tenant {
	val, exists := c.Get("tenant")
	if !exists {
		return nil
	}
	tenant, ok := val.(*entity.Tenant)
	if !ok {
		return nil
	}
	return tenant
}
