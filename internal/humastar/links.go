package humastar

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// EntryPath is the entry point every collection links up to.
const EntryPath = "/health"

// LinkSet holds the RFC 8288 Link header values of each operation path.
type LinkSet struct {
	links map[string][]string
}

// NewLinkSet returns an empty set; its Transformer can be installed before
// the set is populated.
func NewLinkSet() *LinkSet {
	return &LinkSet{links: map[string][]string{}}
}

// Populate walks the OpenAPI document and derives hypermedia links between
// collections, items and the entry point. Operations tagged with any of skip
// (e.g. streams) are ignored. Call after every route is registered and
// before serving.
func (ls *LinkSet) Populate(api huma.API, skip ...string) {
	oapi := api.OpenAPI()
	ls.links = map[string][]string{}

	var collections, items []string
	tagsOf := map[string][]string{}
	for p, pi := range oapi.Paths {
		tags := primaryTags(pi)
		if anyTag(tags, skip) {
			continue
		}
		tagsOf[p] = tags
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	sort.Strings(collections)
	sort.Strings(items)

	// item → parent collection, or parent item for sub-resources
	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			if strings.Contains(parent, "{") {
				ls.add(item, parent, "up")
			} else {
				ls.add(item, parent, "collection")
				ls.add(item, parent, "up")
			}
		}
	}

	// collection → item template
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				ls.add(coll, item, "item")
			}
		}
		if coll != EntryPath {
			ls.add(coll, EntryPath, "up")
		}
		if oapi.Paths[coll].Post != nil {
			ls.add(coll, coll, "create-form")
		}
	}

	for _, item := range items {
		pi := oapi.Paths[item]
		if pi.Put != nil || pi.Patch != nil {
			ls.add(item, item, "edit")
		}
	}

	// collections sharing a tag cross-link by their last segment
	for _, a := range collections {
		for _, b := range collections {
			if a != b && sharedTag(tagsOf[a], tagsOf[b]) != "" {
				ls.add(a, b, lastSegment(b))
			}
		}
	}

	for _, coll := range collections {
		if coll != EntryPath {
			ls.add(EntryPath, coll, lastSegment(coll))
		}
	}
	ls.add(EntryPath, "/openapi.json", "service-desc")
	ls.add(EntryPath, "/docs", "service-doc")

	for _, p := range append(append([]string{}, collections...), items...) {
		if ref := getResponseSchemaRef(oapi.Paths[p]); ref != "" {
			ls.add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	// document the relationships in the OpenAPI responses too
	for p, pi := range oapi.Paths {
		headers, ok := ls.links[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}
}

// For returns the Link header values of an operation path.
func (ls *LinkSet) For(opPath string) []string {
	if ls == nil {
		return nil
	}
	return ls.links[opPath]
}

// Transformer returns a Huma Transformer that writes the Link headers of ls
// at runtime, plus self, pagination and action links taken from the
// response.
func (ls *LinkSet) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range ls.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
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
	for _, existing := range ls.links[from] {
		if existing == val {
			return
		}
	}
	ls.links[from] = append(ls.links[from], val)
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func anyTag(tags, want []string) bool {
	for _, t := range tags {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}

func sharedTag(a, b []string) string {
	for _, at := range a {
		for _, bt := range b {
			if at == bt {
				return at
			}
		}
	}
	return ""
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil {
		return
	}
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

func getResponseSchemaRef(pi *huma.PathItem) string {
	if pi.Get == nil || pi.Get.Responses == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") || resp.Content == nil {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				parts := strings.Split(mt.Schema.Ref, "/")
				return parts[len(parts)-1]
			}
		}
	}
	return ""
}

func parseLinkHeader(h string) (rel, href string) {
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
