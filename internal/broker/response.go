package broker

import (
	"encoding/json"
	"fmt"
)

// TokenResponse es la forma wire de una respuesta de token, tanto la
// recibida del token endpoint externo como la sintetizada localmente al
// servir un token cacheado/almacenado. Extra se aplana en el JSON final
// (issued_token_type, account-link-url, etc).
type TokenResponse struct {
	AccessToken      string         `json:"access_token,omitempty"`
	IDToken          string         `json:"id_token,omitempty"`
	RefreshToken     string         `json:"refresh_token,omitempty"`
	TokenType        string         `json:"token_type,omitempty"`
	ExpiresIn        int64          `json:"expires_in,omitempty"`
	RefreshExpiresIn int64          `json:"refresh_expires_in,omitempty"`
	Scope            string         `json:"scope,omitempty"`
	SessionState     string         `json:"session_state,omitempty"`
	Extra            map[string]any `json:"-"`
}

// SetExtra agrega un claim extra (crea el mapa si hace falta).
func (t *TokenResponse) SetExtra(key string, value any) {
	if t.Extra == nil {
		t.Extra = map[string]any{}
	}
	t.Extra[key] = value
}

// IssuedTokenType retorna el claim issued_token_type si está presente.
func (t *TokenResponse) IssuedTokenType() string {
	if t.Extra == nil {
		return ""
	}
	s, _ := t.Extra["issued_token_type"].(string)
	return s
}

// Validate verifica el invariante de éxito: una respuesta exitosa nunca
// expone access token e id token ambos vacíos.
func (t *TokenResponse) Validate() error {
	if t.AccessToken == "" && t.IDToken == "" {
		return newError(KindProtocol, "token response has neither access_token nor id_token")
	}
	return nil
}

// MarshalJSON aplana Extra junto a los campos fijos.
func (t TokenResponse) MarshalJSON() ([]byte, error) {
	type alias TokenResponse
	base, err := json.Marshal(alias(t))
	if err != nil {
		return nil, err
	}
	if len(t.Extra) == 0 {
		return base, nil
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range t.Extra {
		if _, fixed := m[k]; fixed {
			return nil, fmt.Errorf("extra claim %q collides with a fixed field", k)
		}
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON separa los campos fijos de los extra.
func (t *TokenResponse) UnmarshalJSON(data []byte) error {
	type alias TokenResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = TokenResponse(a)

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	fixed := map[string]struct{}{
		"access_token": {}, "id_token": {}, "refresh_token": {}, "token_type": {},
		"expires_in": {}, "refresh_expires_in": {}, "scope": {}, "session_state": {},
	}
	for k, v := range m {
		if _, ok := fixed[k]; ok {
			continue
		}
		t.SetExtra(k, v)
	}
	return nil
}
