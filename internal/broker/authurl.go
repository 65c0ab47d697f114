package broker

import (
	"context"
	"net/url"
	"strings"

	"github.com/dropDatabas3/fedbroker/internal/session"
)

// BuildAuthorizationURL construye la URL de redirect al authorization
// endpoint externo. No hace llamadas de red; solo puede fallar con una URL
// base malformada, y en ese caso el error es del broker, no un error crudo
// de parsing.
func (p *Provider) BuildAuthorizationURL(ctx context.Context, req AuthenticationRequest) (string, error) {
	base, err := url.Parse(p.cfg.AuthorizationURL)
	if err != nil || base.Scheme == "" {
		return "", wrapError(KindProtocol, "could not create authentication request: malformed authorization url", err)
	}

	q := base.Query()
	q.Set(ParamScope, p.cfg.DefaultScope)
	q.Set(ParamState, req.State)
	q.Set(ParamResponseType, "code")
	q.Set(ParamClientID, p.cfg.ClientID)
	q.Set(ParamRedirectURI, req.RedirectURI)

	if p.cfg.LoginHint {
		if hint := p.note(ctx, req.SessionID, session.NoteLoginHint); hint != "" {
			q.Set(ParamLoginHint, hint)
		}
	}

	if p.cfg.UILocales && req.Locale != "" {
		q.Set(ParamUILocales, req.Locale)
	}

	prompt := p.cfg.Prompt
	if prompt == "" {
		prompt = p.note(ctx, req.SessionID, session.NotePrompt)
	}
	if prompt != "" {
		q.Set(ParamPrompt, prompt)
	}

	if acr := p.note(ctx, req.SessionID, session.NoteACRValues); acr != "" {
		q.Set(ParamACRValues, acr)
	}

	for _, name := range splitForwardParameters(p.cfg.ForwardParameters) {
		v := p.note(ctx, req.SessionID, session.NoteForwardedParamPrefix+name)
		if v != "" {
			q.Set(name, v)
		}
	}

	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (p *Provider) note(ctx context.Context, sessionID, key string) string {
	if p.notes == nil || sessionID == "" {
		return ""
	}
	return p.notes.Get(ctx, sessionID, key)
}

// ForwardParameterNames expone la lista declarada de parámetros a reenviar;
// la capa HTTP la usa para capturar esos valores como session notes.
func ForwardParameterNames(cfg string) []string {
	return splitForwardParameters(cfg)
}

// splitForwardParameters parte la lista separada por comas, con trim.
func splitForwardParameters(cfg string) []string {
	if strings.TrimSpace(cfg) == "" {
		return nil
	}
	parts := strings.Split(cfg, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}
