package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/desk-kit/support-desk/internal/domain"
	"github.com/desk-kit/support-desk/internal/repository"
	"github.com/desk-kit/support-desk/internal/service"
	"github.com/desk-kit/support-desk/pkg/util"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens and resolves the acting user.
type AuthMiddleware struct {
	tokens   *TokenVerifier
	users    repository.UserRepository
	profiles ProfileCache
}

// NewAuthMiddleware constructs middleware. profiles may be nil to disable
// profile caching.
func NewAuthMiddleware(tokens *TokenVerifier, users repository.UserRepository, profiles ProfileCache) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, profiles: profiles}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}

	user, err := m.resolveProfile(c.Context(), claims)
	if err != nil {
		return err
	}

	actor := service.Actor{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CompanyID: user.CompanyID,
	}
	StoreActor(c, actor)
	return c.Next()
}

// StoreActor stashes a resolved actor on the request, in the same slot
// Handle uses. Entry points that authenticate out of band can reuse it.
func StoreActor(c *fiber.Ctx, actor service.Actor) {
	c.Locals(actorKey, actor)
}

// resolveProfile loads the user, preferring the cache. A cached entry
// whose role or company no longer matches the token is stale: drop it
// and reload from the store.
func (m *AuthMiddleware) resolveProfile(ctx context.Context, claims *Claims) (*domain.User, error) {
	userID := claims.Subject

	if m.profiles != nil {
		if cached, ok := m.profiles.Get(ctx, userID); ok {
			if cached.Role == claims.Role && cached.CompanyID == claims.CompanyID {
				return cached, nil
			}
			m.profiles.Invalidate(ctx, userID)
		}
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if util.IsNotFound(err) {
			return nil, util.NewUnauthorized("user not found")
		}
		return nil, util.MapError(err)
	}
	if user.CompanyID != claims.CompanyID {
		return nil, util.NewUnauthorized("token company mismatch")
	}
	if m.profiles != nil {
		m.profiles.Set(ctx, user)
	}
	return user, nil
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(c *fiber.Ctx) (service.Actor, bool) {
	val := c.Locals(actorKey)
	if val == nil {
		return service.Actor{}, false
	}
	actor, ok := val.(service.Actor)
	return actor, ok
}
