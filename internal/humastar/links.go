package humastar

import (
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// LinkSet holds RFC 8288 Link header templates keyed by operation path.
// Targets may carry the path parameters of the operation they belong to;
// those are filled in from the request URL when the header is written.
type LinkSet struct {
	entry string
	links map[string][]string
}

// AutoLinks derives navigation links from the registered routes:
//
//   - the entry point links to every top-level collection, the OpenAPI
//     document and the docs
//   - a collection links to its item template and back to the entry point
//   - an item links to its collection and to the readable sub-resources
//     nested under it, such as a layer's features or a scenario's settings
//
// Call it after every route is registered. Operations tagged "editor" are
// streaming endpoints and are left out.
func AutoLinks(api huma.API, entry string) *LinkSet {
	ls := &LinkSet{entry: entry, links: map[string][]string{}}
	paths := api.OpenAPI().Paths

	readable := make([]string, 0, len(paths))
	for p, pi := range paths {
		if pi.Get == nil || slices.Contains(pi.Get.Tags, "editor") {
			continue
		}
		readable = append(readable, p)
	}
	sort.Strings(readable)

	for _, p := range readable {
		parent := path.Dir(p)
		if isParam(lastSegment(p)) {
			// item
			if slices.Contains(readable, parent) {
				ls.add(p, parent, "collection")
				ls.add(parent, p, "item")
			}
			continue
		}
		if isParam(lastSegment(parent)) && slices.Contains(readable, parent) {
			// sub-resource of an item
			ls.add(parent, p, lastSegment(p))
			ls.add(p, parent, "up")
			continue
		}
		if !strings.Contains(p, "{") && p != entry {
			ls.add(entry, p, lastSegment(p))
			ls.add(p, entry, "up")
		}
	}

	// tiles are addressed by a template under the layer item
	for p := range paths {
		if strings.HasSuffix(p, "/tiles/{z}/{x}/{y}") {
			ls.add(strings.TrimSuffix(p, "/tiles/{z}/{x}/{y}"), p, "tiles")
		}
	}

	ls.add(entry, "/openapi.json", "service-desc")
	ls.add(entry, "/docs", "service-doc")
	return ls
}

// For returns the Link header templates of an operation path.
func (ls *LinkSet) For(opPath string) []string {
	return ls.links[opPath]
}

// Root returns the entry point's links for non-Huma handlers.
func (ls *LinkSet) Root() []string {
	return ls.links[ls.entry]
}

// Transformer returns a Huma Transformer that writes the derived links with
// the request's path parameters filled in, a self link on item paths,
// pagination links and state-dependent actions.
func (ls *LinkSet) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		urlPath := ctx.URL().Path
		params := pathParams(op.Path, urlPath)
		for _, link := range ls.links[op.Path] {
			ctx.AppendHeader("Link", expand(link, params))
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, urlPath))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(urlPath) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func (ls *LinkSet) add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	if slices.Contains(ls.links[from], val) {
		return
	}
	ls.links[from] = append(ls.links[from], val)
}

// pathParams matches a route template against a concrete path.
func pathParams(template, concrete string) map[string]string {
	ts := strings.Split(template, "/")
	cs := strings.Split(concrete, "/")
	if len(ts) != len(cs) {
		return nil
	}
	out := map[string]string{}
	for i, seg := range ts {
		if isParam(seg) {
			out[seg] = cs[i]
		}
	}
	return out
}

// expand fills known parameters into a link; unknown ones stay templated.
func expand(link string, params map[string]string) string {
	for k, v := range params {
		link = strings.ReplaceAll(link, k, v)
	}
	return link
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}
