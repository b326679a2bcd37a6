package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/akshaydinakar/wb-builder-exercise/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/layers>; rel="layers"`,
		`</api/v1/sources>; rel="sources"`,
		`</api/v1/viewport>; rel="viewport"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/layers>; rel="layers"`,
	},
	"/api/v1/layers": {
		`</api/v1/sources>; rel="sources"`,
		`</api/v1/state>; rel="state"`,
	},
	"/api/v1/layers/{id}": {
		`</api/v1/layers>; rel="collection"`,
	},
	"/api/v1/sources": {
		`</api/v1/layers>; rel="layers"`,
		`</api/v1/viewport>; rel="viewport"`,
		`</api/v1/extents>; rel="extents"`,
	},
	"/api/v1/sources/{name}/extent": {
		`</api/v1/sources>; rel="collection"`,
	},
	"/api/v1/viewport": {
		`</api/v1/sources>; rel="sources"`,
		`</api/v1/extents>; rel="extents"`,
	},
	"/api/v1/state": {
		`</api/v1/layers>; rel="layers"`,
		`</api/v1/events>; rel="events"`,
	},
	"/api/v1/extents": {
		`</api/v1/tables>; rel="tables"`,
		`</api/v1/query>; rel="query"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link
// headers: static rels per operation, a self link for item endpoints, and
// first/prev/next/last for paginated bodies.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if p, ok := v.(humastar.Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		return v, nil
	}
}
