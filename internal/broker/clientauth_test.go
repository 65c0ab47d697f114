package broker

import (
	"context"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

func TestAuthenticateTokenRequestDefaultPostsSecret(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, ProviderConfig{TokenURL: "https://gov.example/token"})

	tr, err := p.generateTokenRequest(context.Background(), "code-1", "https://broker.example/cb")
	if err != nil {
		t.Fatalf("generateTokenRequest: %v", err)
	}
	if got := tr.Form.Get(ParamClientID); got != "broker-client" {
		t.Errorf("client_id = %q", got)
	}
	if got := tr.Form.Get(ParamClientSecret); got != "plain-test-secret" {
		t.Errorf("client_secret = %q", got)
	}
	if got := tr.Form.Get(ParamGrantType); got != GrantAuthorizationCode {
		t.Errorf("grant_type = %q", got)
	}
	if tr.basicUser != "" {
		t.Error("basic auth set on the default method")
	}
}

func TestAuthenticateTokenRequestBasic(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, ProviderConfig{
		TokenURL:            "https://gov.example/token",
		BasicAuthentication: true,
	})

	tr, err := p.generateTokenRequest(context.Background(), "code-1", "https://broker.example/cb")
	if err != nil {
		t.Fatalf("generateTokenRequest: %v", err)
	}
	if tr.basicUser != "broker-client" || tr.basicPass != "plain-test-secret" {
		t.Fatalf("basic = %q/%q", tr.basicUser, tr.basicPass)
	}
	if tr.Form.Has(ParamClientSecret) {
		t.Error("client_secret leaked into the form")
	}
}

func TestClientSecretJWTAssertion(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, ProviderConfig{
		TokenURL:          "https://gov.example/token",
		JWTAuthentication: true,
		ClientAuthMethod:  AuthMethodClientSecretJWT,
		AssertionLifespan: 30 * time.Second,
	})

	tr, err := p.generateTokenRequest(context.Background(), "code-1", "https://broker.example/cb")
	if err != nil {
		t.Fatalf("generateTokenRequest: %v", err)
	}
	if got := tr.Form.Get(ParamClientAssertionType); got != ClientAssertionTypeJWT {
		t.Fatalf("client_assertion_type = %q", got)
	}
	jws := tr.Form.Get(ParamClientAssertion)
	if jws == "" {
		t.Fatal("no client_assertion attached")
	}

	// verificable con el mismo secreto (HS256)
	tok, err := jwtv5.Parse(jws, func(*jwtv5.Token) (any, error) {
		return []byte("plain-test-secret"), nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		t.Fatalf("assertion does not verify: %v", err)
	}
	claims := tok.Claims.(jwtv5.MapClaims)
	if claims["iss"] != "broker-client" || claims["sub"] != "broker-client" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims["aud"] != "https://gov.example/token" {
		t.Fatalf("aud = %v", claims["aud"])
	}
	exp, _ := claims["exp"].(float64)
	iat, _ := claims["iat"].(float64)
	if exp-iat != 30 {
		t.Fatalf("assertion lifespan = %v", exp-iat)
	}
	if claims["jti"] == "" {
		t.Fatal("assertion without fresh jti")
	}
}

func TestPrivateKeyJWTAssertionUsesSigner(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, ProviderConfig{
		TokenURL:          "https://gov.example/token",
		JWTAuthentication: true,
		ClientAuthMethod:  AuthMethodPrivateKeyJWT,
	})

	jws, err := p.signAssertion(context.Background())
	if err != nil {
		t.Fatalf("signAssertion: %v", err)
	}
	tok, _, err := jwtv5.NewParser().ParseUnverified(jws, jwtv5.MapClaims{})
	if err != nil {
		t.Fatalf("parse assertion: %v", err)
	}
	if alg, _ := tok.Header["alg"].(string); alg != "EdDSA" {
		t.Fatalf("alg = %q", alg)
	}
	if kid, _ := tok.Header["kid"].(string); kid == "" {
		t.Fatal("asymmetric assertion without kid header")
	}
}

func TestSignAssertionWithoutSignerFails(t *testing.T) {
	p := NewProvider(ProviderConfig{
		Alias: "x", Realm: "r", ClientID: "c", TokenURL: "https://gov.example/token",
		ClientAuthMethod: AuthMethodPrivateKeyJWT,
	}, Deps{})

	if _, err := p.signAssertion(context.Background()); err == nil {
		t.Fatal("expected error without a configured signer")
	} else if !IsKind(err, KindCredential) {
		t.Fatalf("error kind = %v, want credential", err)
	}
}
