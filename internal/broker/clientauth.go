package broker

import (
	"context"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// authenticateTokenRequest adjunta la autenticación del cliente al request
// saliente:
//
//   - jwt_authentication: assertion JWT firmada (HS256 con el secreto si el
//     método es client_secret_jwt, asimétrica vía signer en otro caso),
//     adjunta como client_assertion_type + client_assertion.
//   - basic_authentication: HTTP Basic (client id, secreto resuelto).
//   - default: client_id + client_secret como parámetros del form.
//
// El secreto se resuelve una sola vez vía vault y se libera antes de salir
// del frame; nunca se loguea completo.
func (p *Provider) authenticateTokenRequest(ctx context.Context, tr *tokenRequest) error {
	if p.cfg.JWTAuthentication {
		jws, err := p.signAssertion(ctx)
		if err != nil {
			return err
		}
		tr.set(ParamClientAssertionType, ClientAssertionTypeJWT)
		tr.set(ParamClientAssertion, jws)
		return nil
	}

	secret, err := p.vault.Resolve(ctx, p.secretRef)
	if err != nil {
		return wrapError(KindCredential, "could not resolve client secret", err)
	}
	defer secret.Release()

	if p.cfg.BasicAuthentication {
		tr.basicUser = p.cfg.ClientID
		tr.basicPass = secret.Value()
		return nil
	}

	tr.set(ParamClientID, p.cfg.ClientID)
	tr.set(ParamClientSecret, secret.Value())
	return nil
}

// assertionClaims arma el payload de la client assertion: id fresco, issuer
// y subject iguales al client id, audience el token endpoint, expiración
// acotada por el lifespan configurado.
func (p *Provider) assertionClaims() jwtv5.MapClaims {
	now := p.now()
	return jwtv5.MapClaims{
		"jti": uuid.NewString(),
		"iss": p.cfg.ClientID,
		"sub": p.cfg.ClientID,
		"aud": p.cfg.TokenURL,
		"exp": now.Add(p.cfg.AssertionLifespan).Unix(),
		"iat": now.Unix(),
	}
}

func (p *Provider) signAssertion(ctx context.Context) (string, error) {
	claims := p.assertionClaims()

	if p.cfg.ClientAuthMethod == AuthMethodClientSecretJWT {
		secret, err := p.vault.Resolve(ctx, p.secretRef)
		if err != nil {
			return "", wrapError(KindCredential, "could not resolve client secret", err)
		}
		defer secret.Release()

		tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
		tk.Header["typ"] = "JWT"
		jws, err := tk.SignedString([]byte(secret.Value()))
		if err != nil {
			return "", wrapError(KindCredential, "could not sign client assertion", err)
		}
		return jws, nil
	}

	if p.signer == nil {
		return "", newError(KindCredential, "no asymmetric signer configured")
	}
	jws, err := p.signer.SignRaw(claims)
	if err != nil {
		return "", wrapError(KindCredential, "could not sign client assertion", err)
	}
	return jws, nil
}

// generateTokenRequest arma el request del grant authorization_code ya
// autenticado. Solo se loguea un prefijo corto del secreto, nunca el valor.
func (p *Provider) generateTokenRequest(ctx context.Context, authorizationCode, redirectURI string) (*tokenRequest, error) {
	tr := newTokenRequest(p.cfg.TokenURL)
	tr.set(ParamCode, authorizationCode)
	tr.set(ParamRedirectURI, redirectURI)
	tr.set(ParamGrantType, GrantAuthorizationCode)

	if err := p.authenticateTokenRequest(ctx, tr); err != nil {
		return nil, err
	}
	return tr, nil
}
