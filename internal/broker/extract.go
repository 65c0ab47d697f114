package broker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ExtractToken extrae el campo tokenName de la respuesta cruda del token
// endpoint. Si el body empieza con "{" se parsea como JSON y se retorna el
// valor de texto no-blank (o "" si falta); un JSON malformado es un error
// fatal de extracción, nunca se traga en silencio. Cualquier otro body se
// trata como form-encoded y se busca tokenName=([^&]+).
//
// El modo dual existe porque distintas familias de providers devuelven JSON
// o query-string clásico.
func ExtractToken(response, tokenName string) (string, error) {
	if response == "" {
		return "", nil
	}

	if strings.HasPrefix(response, "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(response), &m); err != nil {
			return "", wrapError(KindProtocol,
				fmt.Sprintf("could not extract token [%s] from response", tokenName), err)
		}
		return jsonTextValue(m, tokenName), nil
	}

	re, err := regexp.Compile(regexp.QuoteMeta(tokenName) + "=([^&]+)")
	if err != nil {
		return "", wrapError(KindProtocol, "invalid token name", err)
	}
	if m := re.FindStringSubmatch(response); m != nil {
		return m[1], nil
	}
	return "", nil
}

// jsonTextValue retorna el valor del campo como texto. Números y booleanos
// se convierten; string vacío se normaliza a "".
func jsonTextValue(m map[string]any, name string) string {
	v, ok := m[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

// jsonPathValue resuelve un path dot-notation ("user.id") dentro de un
// documento JSON ya parseado. Reemplaza el scraping por regex de respuestas
// anidadas: el documento se parsea una vez y los campos se resuelven por
// path declarado.
func jsonPathValue(doc map[string]any, path string) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(path, ".")
	cur := any(doc)
	for i, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		if i == len(parts)-1 {
			return jsonTextValue(m, part)
		}
		cur = m[part]
	}
	return ""
}

// mapIdentity aplica un ProfileFieldMap sobre el documento de perfil.
// El subject id es requerido siempre; los demás campos fallan solo si están
// marcados required.
func mapIdentity(fields ProfileFieldMap, doc map[string]any) (*Identity, error) {
	id := jsonPathValue(doc, fields.ID.Path)
	if id == "" {
		return nil, newError(KindProtocol, "profile response missing subject identifier")
	}

	ident := &Identity{ExternalUserID: id, Username: id}

	if fields.Username.Path != "" {
		if v := jsonPathValue(doc, fields.Username.Path); v != "" {
			ident.Username = v
		} else if fields.Username.Required {
			return nil, newError(KindProtocol, "profile response missing required username")
		}
	}
	if fields.FirstName.Path != "" {
		if v := jsonPathValue(doc, fields.FirstName.Path); v != "" {
			ident.FirstName = v
		} else if fields.FirstName.Required {
			return nil, newError(KindProtocol, "profile response missing required first name")
		}
	}
	if fields.LastName.Path != "" {
		if v := jsonPathValue(doc, fields.LastName.Path); v != "" {
			ident.LastName = v
		} else if fields.LastName.Required {
			return nil, newError(KindProtocol, "profile response missing required last name")
		}
	}
	return ident, nil
}
