package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/roster-import-service/internal/services"
)

const (
	HeaderUserID         = "X-User-ID"
	HeaderOrganizationID = "X-Organization-ID"

	ctxUserID         = "user_id"
	ctxOrganizationID = "organization_id"
)

var errMissingIdentity = errors.New("caller identity is missing")

// Authenticator resolves the caller of a request.
type Authenticator interface {
	Authenticate(c *gin.Context) (services.Actor, error)
}

// HeaderAuthenticator trusts the identity headers set by the gateway.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(c *gin.Context) (services.Actor, error) {
	actor := services.Actor{
		UserID:         strings.TrimSpace(c.GetHeader(HeaderUserID)),
		OrganizationID: strings.TrimSpace(c.GetHeader(HeaderOrganizationID)),
	}
	if actor.UserID == "" || actor.OrganizationID == "" {
		return services.Actor{}, errMissingIdentity
	}
	return actor, nil
}

// TokenParser is the part of the casdoor client the middleware needs.
type TokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// CasdoorAuthenticator verifies a casdoor bearer token. The token owner is
// the organization; the casdoor user id (or name) is the user.
type CasdoorAuthenticator struct {
	parser TokenParser
}

func NewCasdoorAuthenticator(parser TokenParser) *CasdoorAuthenticator {
	return &CasdoorAuthenticator{parser: parser}
}

// NewCasdoorClient builds the SDK client from the configured application.
func NewCasdoorClient(endpoint, clientID, clientSecret, certificate, organization, application string) *casdoorsdk.Client {
	return casdoorsdk.NewClient(endpoint, clientID, clientSecret, certificate, organization, application)
}

func (a *CasdoorAuthenticator) Authenticate(c *gin.Context) (services.Actor, error) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return services.Actor{}, errMissingIdentity
	}
	claims, err := a.parser.ParseJwtToken(strings.TrimSpace(token))
	if err != nil {
		return services.Actor{}, err
	}
	userID := claims.Id
	if userID == "" {
		userID = claims.Name
	}
	if userID == "" || claims.Owner == "" {
		return services.Actor{}, errMissingIdentity
	}
	return services.Actor{UserID: userID, OrganizationID: claims.Owner}, nil
}

// AuthMiddleware rejects unauthenticated requests and stores the caller.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := auth.Authenticate(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
				Details: err.Error(),
			})
			return
		}
		c.Set(ctxUserID, actor.UserID)
		c.Set(ctxOrganizationID, actor.OrganizationID)

		ctx := services.WithRequestID(c.Request.Context(), c.GetString("request_id"))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:         c.GetString(ctxUserID),
		OrganizationID: c.GetString(ctxOrganizationID),
	}
}
