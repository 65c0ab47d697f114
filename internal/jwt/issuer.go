// Package jwt firma tokens del broker: client assertions (JWT-bearer) y el
// identity-assertion token emitido al completar un login federado.
package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/google/uuid"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer firma tokens con la clave activa (Ed25519).
type Issuer struct {
	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer crea un Issuer con la clave dada.
func NewIssuer(kid string, priv ed25519.PrivateKey) (*Issuer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519: clave privada inválida (%d bytes)", len(priv))
	}
	return &Issuer{
		kid:  kid,
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// GenerateIssuer crea un Issuer con un keypair efímero (dev/tests).
func GenerateIssuer() (*Issuer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewIssuer(uuid.NewString(), priv)
}

// ActiveKID devuelve el KID activo actual.
func (i *Issuer) ActiveKID() string { return i.kid }

// SignRaw firma un MapClaims arbitrario, setea header kid/typ y devuelve el JWT firmado.
func (i *Issuer) SignRaw(claims jwtv5.MapClaims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.kid
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.priv)
}

// Keyfunc devuelve un jwt.Keyfunc que valida contra la clave activa.
// Usado en tests y en verificación local de assertions propias.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != i.kid {
			return nil, errors.New("kid desconocido")
		}
		return i.pub, nil
	}
}
