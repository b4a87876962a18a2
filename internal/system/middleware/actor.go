package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/waterreg/registry-server/internal/system/constants"
	"github.com/waterreg/registry-server/internal/system/error/serviceerror"
	"github.com/waterreg/registry-server/internal/system/log"
	"github.com/waterreg/registry-server/internal/system/utils"
	"github.com/waterreg/registry-server/internal/user/model"
	"github.com/waterreg/registry-server/internal/workflow"
)

// ProfileHeaderName selects the tenant the caller acts for.
const ProfileHeaderName = "X-Profile"

// TenantClaim is a tenant membership asserted by the auth service.
type TenantClaim struct {
	ID   string              `json:"id"`
	Role workflow.TenantRole `json:"role"`
}

// ActorClaims are the claims of an actor token.
type ActorClaims struct {
	Type          workflow.UserType `json:"type"`
	FirstName     string            `json:"firstName"`
	LastName      string            `json:"lastName"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
	Groups        []string          `json:"groups"`
	AdminOfGroups []string          `json:"adminOfGroups"`
	Tenants       []TenantClaim     `json:"tenants"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the user directory identity.
func (c *ActorClaims) Identity() model.Identity {
	return model.Identity{
		AuthUserID:    c.Subject,
		Type:          c.Type,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Email:         c.Email,
		Phone:         c.Phone,
		Groups:        c.Groups,
		AdminOfGroups: c.AdminOfGroups,
	}
}

// ActorResolver maps verified claims to a local actor.
type ActorResolver interface {
	ResolveActor(ctx context.Context, identity model.Identity, tenant *workflow.TenantProfile) (*workflow.Actor, error)
}

// ActorAuth verifies the bearer token and stores the resolved actor on the context.
func ActorAuth(secret, issuer string, resolver ActorResolver) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if issuer != "" {
		parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithIssuer(issuer))
	}

	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			utils.SendError(c, serviceerror.CustomServiceError(serviceerror.UnauthorizedError, "Authorization is required"))
			return
		}

		claims := &ActorClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			utils.SendError(c, serviceerror.CustomServiceError(serviceerror.UnauthorizedError, "Invalid or expired token"))
			return
		}

		tenant, ok := selectTenant(claims, c.GetHeader(ProfileHeaderName))
		if !ok {
			utils.SendError(c, serviceerror.CustomServiceError(serviceerror.UnauthorizedError, "Profile is not available"))
			return
		}

		ctx := c.Request.Context()
		actor, err := resolver.ResolveActor(ctx, claims.Identity(), tenant)
		if err != nil {
			log.GetLogger().WithContext(ctx).Error("Failed to resolve actor",
				log.String("auth_user_id", claims.Subject), log.Error(err))
			utils.SendError(c, &serviceerror.InternalServerError)
			return
		}

		c.Set(constants.ContextKeyActor, actor)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader(constants.AuthorizationHeaderName), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], constants.TokenTypeBearer) {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// selectTenant returns the profile named by the header. The personal profile
// is used when the header is empty or names the user itself.
func selectTenant(claims *ActorClaims, profile string) (*workflow.TenantProfile, bool) {
	if profile == "" || profile == "personal" {
		return nil, true
	}
	for _, t := range claims.Tenants {
		if t.ID == profile {
			return &workflow.TenantProfile{ID: t.ID, Role: t.Role}, true
		}
	}
	return nil, false
}

// RequireAdmin rejects callers that are not platform admins.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ActorFrom(c).IsAdmin() {
			utils.SendError(c, serviceerror.CustomServiceError(serviceerror.ForbiddenError, "Admin access is required"))
			return
		}
		c.Next()
	}
}

// ActorFrom returns the actor set by ActorAuth, or nil.
func ActorFrom(c *gin.Context) *workflow.Actor {
	v, ok := c.Get(constants.ContextKeyActor)
	if !ok {
		return nil
	}
	actor, _ := v.(*workflow.Actor)
	return actor
}
