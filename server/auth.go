package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/zenazn/goji/web"

	"github.com/openseis/seisvol/seisvol"
)

var (
	// global authorization list of user -> privilege.
	authorizedUsers   map[string]string
	authorizedUsersMu sync.RWMutex
)

// authConfig holds the [auth] settings.  Authorization is off unless a
// secret key is given.
type authConfig struct {
	AuthFile  string `toml:"auth_file"`
	SecretKey string `toml:"secret_key"`

	// TokenHours is the lifetime of generated tokens; zero means no expiry.
	TokenHours int `toml:"token_hours"`
}

func authEnabled() bool {
	return tc.Auth.SecretKey != ""
}

// generateJWT returns a JWT given a user and secret key string
func generateJWT(user string) (string, error) {
	claims := jwt.MapClaims{"user": user}
	if tc.Auth.TokenHours > 0 {
		claims["exp"] = time.Now().Add(time.Duration(tc.Auth.TokenHours) * time.Hour).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tc.Auth.SecretKey))
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// isAuthorized is middleware that validates a JWT on mutating requests and
// sets the c.Env["user"] field to the authenticated user.  Reads pass
// through unchecked.
func isAuthorized(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if !authEnabled() || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			h.ServeHTTP(w, r)
			return
		}
		reqToken := r.Header.Get("Authorization")
		if len(reqToken) == 0 {
			Unauthorized(w, r, "JWT required via Authorization in request header")
			return
		}
		splitToken := strings.Split(reqToken, "Bearer")
		if len(splitToken) != 2 {
			Unauthorized(w, r, "bearer not in proper format")
			return
		}
		reqToken = strings.TrimSpace(splitToken[1])
		if len(reqToken) == 0 {
			Unauthorized(w, r, "requests require JWT authentication")
			return
		}
		token, err := jwt.Parse(reqToken, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
			}
			return []byte(tc.Auth.SecretKey), nil
		})
		if err != nil {
			Unauthorized(w, r, "error parsing JWT: %v", err)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			Unauthorized(w, r, "failed authorization")
			return
		}
		user, ok := claims["user"].(string)
		if !ok {
			Unauthorized(w, r, "user %v is not a simple string", claims["user"])
			return
		}
		if !globalIsAuthorized(user, r.Method) {
			Unauthorized(w, r, "user %q is not authorized", user)
			return
		}
		if c.Env == nil {
			c.Env = make(map[interface{}]interface{})
		}
		c.Env["user"] = user
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func loadAuthFile() error {
	if len(tc.Auth.AuthFile) == 0 {
		if authEnabled() {
			seisvol.Infof("No authorization file found.  Any user with a valid token may write.\n")
		}
		return nil
	}
	data, err := os.ReadFile(tc.Auth.AuthFile)
	if err != nil {
		return err
	}
	users := make(map[string]string)
	if err := json.Unmarshal(data, &users); err != nil {
		return err
	}
	authorizedUsersMu.Lock()
	authorizedUsers = users
	authorizedUsersMu.Unlock()
	return nil
}

// globalIsAuthorized returns true if the user is in our authorization file,
// or if no authorization file was given.
func globalIsAuthorized(user string, httpMethod string) bool {
	authorizedUsersMu.RLock()
	defer authorizedUsersMu.RUnlock()
	if authorizedUsers == nil {
		return true
	}
	method := strings.ToLower(httpMethod)
	readReq := method == "get" || method == "head"
	priv, found := authorizedUsers[user]
	if !found {
		priv, found = authorizedUsers["*"]
		if !found {
			return false
		}
	}
	switch priv {
	case "readwrite":
		return true
	case "read":
		return readReq
	case "write":
		return !readReq
	default:
		seisvol.Errorf("Authorized user %q has unparsable privilege %q\n", user, priv)
		return false
	}
}
