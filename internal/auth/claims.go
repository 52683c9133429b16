package auth

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// StringList decodes either a JSON array or a space separated string ("a b c").
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*l = strings.Fields(s)
	return nil
}

// Claims is the session token payload.
type Claims struct {
	Username    string     `json:"username,omitempty"`
	Email       string     `json:"email,omitempty"`
	Name        string     `json:"name,omitempty"`
	Scopes      StringList `json:"scopes,omitempty"`
	Permissions StringList `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// UnmarshalJSON also accepts the OAuth style "scope" claim.
func (c *Claims) UnmarshalJSON(b []byte) error {
	type plain Claims
	aux := struct {
		*plain
		Scope StringList `json:"scope"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if len(c.Scopes) == 0 && len(aux.Scope) > 0 {
		c.Scopes = aux.Scope
	}
	return nil
}

func (c *Claims) Identity() Identity {
	return Identity{
		SubjectID:   c.Subject,
		Username:    c.Username,
		Email:       c.Email,
		Name:        c.Name,
		Scopes:      []string(c.Scopes),
		Permissions: []string(c.Permissions),
	}
}
