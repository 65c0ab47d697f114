package broker

import "fmt"

// Registry indexa los providers por (realm, alias). Se construye una vez al
// armar la app y es de solo lectura después, así que no necesita locking.
type Registry struct {
	providers map[string]*Provider
	byRealm   map[string][]*Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: map[string]*Provider{},
		byRealm:   map[string][]*Provider{},
	}
}

func registryKey(realm, alias string) string { return realm + "/" + alias }

// Add registra un provider. Alias duplicado dentro del realm es un error de
// configuración.
func (r *Registry) Add(p *Provider) error {
	key := registryKey(p.Realm(), p.Alias())
	if _, ok := r.providers[key]; ok {
		return fmt.Errorf("duplicate provider alias %q in realm %q", p.Alias(), p.Realm())
	}
	r.providers[key] = p
	r.byRealm[p.Realm()] = append(r.byRealm[p.Realm()], p)
	return nil
}

// Get retorna el provider por realm y alias.
func (r *Registry) Get(realm, alias string) (*Provider, bool) {
	p, ok := r.providers[registryKey(realm, alias)]
	return p, ok
}

// ForRealm retorna los providers del realm, en orden de registro.
func (r *Registry) ForRealm(realm string) []*Provider {
	return r.byRealm[realm]
}

// ForIssuer rutea un external exchange: retorna el primer provider del realm
// que se declara responsable del subject_issuer pedido (con fallback al
// defaultIssuer cuando el request no lo trae).
func (r *Registry) ForIssuer(realm, defaultIssuer string, ec ExchangeContext) (*Provider, bool) {
	for _, p := range r.byRealm[realm] {
		if p.IsIssuer(defaultIssuer, ec) {
			return p, true
		}
	}
	return nil, false
}
