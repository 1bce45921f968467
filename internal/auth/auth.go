package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"

	"github.com/tahcohcat/pizzeria-ops/internal/apierr"
	"github.com/tahcohcat/pizzeria-ops/internal/models"
)

const (
	sessionName   = "pizzeria-session"
	sessionUserID = "employee_id"
	issuer        = "pizzeria-ops"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid token")
)

// Principal is the authenticated employee attached to a request.
type Principal struct {
	EmployeeID int         `json:"employee_id"`
	Username   string      `json:"username"`
	Role       models.Role `json:"role"`
}

// Claims are the JWT claims issued at login.
type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// EmployeeLookup loads the current employee record so that deactivated
// accounts and role changes take effect without waiting for token expiry.
type EmployeeLookup interface {
	GetEmployeeByID(ctx context.Context, id int) (*models.Employee, error)
}

type Manager struct {
	store     *sessions.CookieStore
	secret    []byte
	ttl       time.Duration
	employees EmployeeLookup
}

func NewManager(sessionSecret, jwtSecret string, ttl time.Duration, employees EmployeeLookup) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store, secret: []byte(jwtSecret), ttl: ttl, employees: employees}
}

// IssueToken signs an HS256 token for the employee.
func (m *Manager) IssueToken(e *models.Employee) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(m.ttl)
	claims := Claims{
		Username: e.Username,
		Role:     e.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.Itoa(e.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken verifies a token and returns the principal it names.
func (m *Manager) ParseToken(token string) (*Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return &Principal{EmployeeID: id, Username: claims.Username, Role: claims.Role}, nil
}

// StartSession stores the employee id in the session cookie.
func (m *Manager) StartSession(w http.ResponseWriter, r *http.Request, e *models.Employee) error {
	session, _ := m.store.Get(r, sessionName)
	session.Values[sessionUserID] = e.ID
	return session.Save(r, w)
}

// EndSession expires the session cookie.
func (m *Manager) EndSession(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.store.Get(r, sessionName)
	delete(session.Values, sessionUserID)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// authenticate resolves the employee id from a bearer token or, failing
// that, from the session cookie. Browsers cannot set headers on websocket
// upgrades, so those alone may carry the token as a query parameter.
func (m *Manager) authenticate(r *http.Request) (int, error) {
	token, ok := bearerToken(r)
	if !ok && websocket.IsWebSocketUpgrade(r) {
		token = r.URL.Query().Get("token")
	}
	if token != "" {
		p, err := m.ParseToken(token)
		if err != nil {
			return 0, err
		}
		return p.EmployeeID, nil
	}

	session, err := m.store.Get(r, sessionName)
	if err != nil {
		return 0, ErrUnauthenticated
	}
	id, ok := session.Values[sessionUserID].(int)
	if !ok || id == 0 {
		return 0, ErrUnauthenticated
	}
	return id, nil
}

// Middleware rejects requests without a valid token or session and puts the
// Principal into the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.authenticate(r)
		if err != nil {
			apierr.Write(w, r, apierr.CodeUnauthorized, err.Error())
			return
		}

		e, err := m.employees.GetEmployeeByID(r.Context(), id)
		if err != nil || !e.IsActive {
			apierr.Write(w, r, apierr.CodeUnauthorized, "account not available")
			return
		}

		p := Principal{EmployeeID: e.ID, Username: e.Username, Role: e.Role}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireRole allows the request only when the principal has at least min.
func RequireRole(min models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				apierr.Write(w, r, apierr.CodeUnauthorized, ErrUnauthenticated.Error())
				return
			}
			if !p.Role.AtLeast(min) {
				apierr.Write(w, r, apierr.CodeForbidden, fmt.Sprintf("requires %s role", min))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ctxKey string

const principalKey ctxKey = "pizzeria:principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
