// Package vault resuelve material secreto referenciado desde la configuración
// de providers. La resolución es scoped: el valor se obtiene por request y se
// libera (Release) en el mismo stack frame, nunca se cachea entre llamadas.
package vault

import (
	"context"
	"os"
	"strings"

	"github.com/dropDatabas3/fedbroker/internal/security/secretbox"
)

// Secret es material secreto con vida acotada al request. Release borra el
// valor; el caller debe llamarlo con defer apenas obtiene el Secret.
type Secret struct {
	value []byte
}

// Value retorna el secreto en claro. Vacío después de Release.
func (s *Secret) Value() string {
	if s == nil {
		return ""
	}
	return string(s.value)
}

// Prefix retorna los primeros n caracteres del secreto, para logging.
// Nunca loguear Value() completo.
func (s *Secret) Prefix(n int) string {
	v := s.Value()
	if len(v) <= n {
		return v
	}
	return v[:n]
}

// Release sobreescribe el material. Idempotente.
func (s *Secret) Release() {
	if s == nil {
		return
	}
	for i := range s.value {
		s.value[i] = 0
	}
	s.value = s.value[:0]
}

// Vault resuelve referencias a secretos.
type Vault interface {
	// Resolve resuelve ref a material secreto scoped. Si el vault no tiene
	// valor para la referencia, el string crudo configurado se usa como
	// fallback. Retorna un Secret vacío (no nil) para ref vacía.
	Resolve(ctx context.Context, ref string) (*Secret, error)
}

// Default implementa Vault con tres formas de referencia:
//
//	"env:NAME"                      -> variable de entorno NAME
//	"base64(nonce)|base64(ct)"      -> secretbox.Decrypt
//	cualquier otro string           -> el valor literal (fallback dev)
type Default struct{}

// New crea el vault por defecto.
func New() *Default { return &Default{} }

func (d *Default) Resolve(_ context.Context, ref string) (*Secret, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return &Secret{}, nil
	}

	if name, ok := strings.CutPrefix(ref, "env:"); ok {
		if v := os.Getenv(name); v != "" {
			return &Secret{value: []byte(v)}, nil
		}
		// env vacía: fallback al literal (sin el prefijo no hay nada útil)
		return &Secret{}, nil
	}

	if secretbox.IsEncrypted(ref) {
		pt, err := secretbox.Decrypt(ref)
		if err != nil {
			return nil, err
		}
		return &Secret{value: []byte(pt)}, nil
	}

	return &Secret{value: []byte(ref)}, nil
}
