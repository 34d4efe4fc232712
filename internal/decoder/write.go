package decoder

import (
	"net/url"
	"strings"

	"github.com/prasenjit/firescope/internal/models"
	"github.com/tidwall/gjson"
)

const documentsSegment = "/documents/"

// splitDocumentPath returns the collection and id of a document resource
// name. ok is false when the name has fewer than two path segments after
// the documents root.
func splitDocumentPath(name string) (collection, id string, ok bool) {
	tail := name
	if idx := strings.Index(name, documentsSegment); idx != -1 {
		tail = name[idx+len(documentsSegment):]
	} else if !strings.Contains(name, "/") {
		return "", "", false
	}
	if decoded, err := url.PathUnescape(tail); err == nil {
		tail = decoded
	}
	parts := strings.Split(tail, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[len(parts)-2], parts[len(parts)-1], true
}

// documentRefs emits one doc_lookup per reference. The node is either a
// bare list of names or an object wrapping them under "documents".
func documentRefs(node gjson.Result) []models.QueryDescription {
	var refs []gjson.Result
	switch {
	case node.IsArray():
		refs = node.Array()
	case node.Get("documents").IsArray():
		refs = node.Get("documents").Array()
	default:
		refs = []gjson.Result{node}
	}

	var out []models.QueryDescription
	for _, ref := range refs {
		name := ref.String()
		if !strings.Contains(name, documentsSegment) {
			continue
		}
		collection, id, ok := splitDocumentPath(name)
		if !ok {
			continue
		}
		out = append(out, models.QueryDescription{
			Kind:           models.KindDocLookup,
			CollectionPath: collection,
			Filters:        []models.Filter{},
			OrderBy:        []models.OrderBy{},
			Documents:      []models.DocumentRef{{Collection: collection, ID: id}},
			DocumentID:     id,
		})
	}
	return out
}

// writes decodes a list of write operations. An update guarded by
// currentDocument.exists == false is reported as a create.
func writes(list gjson.Result) []models.QueryDescription {
	var out []models.QueryDescription
	for _, w := range list.Array() {
		var (
			kind models.QueryKind
			name string
			doc  gjson.Result
		)
		switch {
		case w.Get("delete").Exists():
			kind = models.KindDelete
			name = w.Get("delete").String()
		case w.Get("update").Exists():
			kind = models.KindUpdate
			doc = w.Get("update")
			name = doc.Get("name").String()
			if exists := w.Get("currentDocument.exists"); exists.Exists() && !exists.Bool() {
				kind = models.KindCreate
			}
		case w.Get("create").Exists():
			kind = models.KindCreate
			doc = w.Get("create")
			name = doc.Get("name").String()
		default:
			continue
		}

		collection, id, ok := splitDocumentPath(name)
		if !ok {
			continue
		}
		desc := models.QueryDescription{
			Kind:           kind,
			CollectionPath: collection,
			Filters:        []models.Filter{},
			OrderBy:        []models.OrderBy{},
			DocumentID:     id,
		}
		if doc.Exists() {
			desc.Fields = DecodeFields(doc.Get("fields"))
		}
		out = append(out, desc)
	}
	return out
}
