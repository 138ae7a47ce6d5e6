package content

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Personalizer renders {{ first_name }}-style variables in message content
// using the Liquid template language. Rendering is lax: a broken template or
// missing variable falls back to the original content so a bad merge tag
// never blocks a send.
type Personalizer struct {
	engine *liquid.Engine
	cache  sync.Map // template source → *liquid.Template
}

// NewPersonalizer creates a personalizer with the standard filters.
func NewPersonalizer() *Personalizer {
	engine := liquid.NewEngine()

	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	engine.RegisterFilter("capitalize", func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	})

	return &Personalizer{engine: engine}
}

// Render substitutes vars into source. On any template error the original
// source is returned unchanged.
func (p *Personalizer) Render(source string, vars map[string]interface{}) string {
	if source == "" || !strings.Contains(source, "{{") {
		return source
	}

	var tmpl *liquid.Template
	if cached, ok := p.cache.Load(source); ok {
		tmpl = cached.(*liquid.Template)
	} else {
		parsed, err := p.engine.ParseString(source)
		if err != nil {
			return source
		}
		p.cache.Store(source, parsed)
		tmpl = parsed
	}

	out, err := tmpl.RenderString(vars)
	if err != nil {
		return source
	}
	return out
}
