package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/iurnickita/foodorder/internal/token"
)

type Auth interface {
	Middleware(h http.HandlerFunc) http.HandlerFunc
	AdminMiddleware(h http.HandlerFunc) http.HandlerFunc
}

const cookieUserToken = "foodorderToken"

var errNoToken = errors.New("no token")

// Principal - аутентифицированный пользователь запроса
type Principal struct {
	UserID int64
	Role   string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(Principal)
	return principal, ok
}

type auth struct {
	token *token.Token
}

func NewAuth(token *token.Token) Auth {
	return &auth{token: token}
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// получение пользователя из токена
		principal, err := a.getPrincipal(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}

		// передаём управление хендлеру
		h.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	}
}

func (a *auth) AdminMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return a.Middleware(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := PrincipalFrom(r.Context())
		if principal.Role != token.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (a *auth) getPrincipal(r *http.Request) (Principal, error) {
	tokenString, err := tokenFromRequest(r)
	if err != nil {
		return Principal{}, err
	}
	claims, err := a.token.GetClaims(tokenString)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: claims.UserID, Role: claims.Role}, nil
}

// tokenFromRequest: заголовок Authorization, затем куки
func tokenFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if tokenString, ok := strings.CutPrefix(header, "Bearer "); ok && tokenString != "" {
		return tokenString, nil
	}
	tokenCookie, err := r.Cookie(cookieUserToken)
	if err != nil {
		return "", errNoToken
	}
	return tokenCookie.Value, nil
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	})
}
