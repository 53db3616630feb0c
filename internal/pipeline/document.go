package pipeline

import (
	"context"
	"fmt"

	"github.com/bft-labs/pit/internal/domain"
	"github.com/bft-labs/pit/internal/rdf"
)

const textPlain = "text/plain"

// BuildDocument fetches uri and maps it to a thesis. The content of the
// first text/plain file, in pcdm:hasFile order, becomes the full text.
func (p *Pipeline) BuildDocument(ctx context.Context, uri string) (domain.Thesis, error) {
	data, err := p.fetcher.FetchResource(ctx, uri)
	if err != nil {
		return domain.Thesis{}, err
	}
	g, err := rdf.ParseExpanded(data)
	if err != nil {
		return domain.Thesis{}, fmt.Errorf("%w: %s: %w", domain.ErrTransform, uri, err)
	}

	obj, ok := g.Node(uri)
	if !ok || !obj.HasType(rdf.PCDMObject) {
		if obj, ok = g.FirstOfType(rdf.PCDMObject); !ok {
			return domain.Thesis{}, fmt.Errorf("%w: %s: no %s in representation", domain.ErrTransform, uri, rdf.PCDMObject)
		}
	}

	doc := thesisFromNode(obj)
	doc.FullText, err = p.fullText(ctx, g, obj)
	if err != nil {
		return domain.Thesis{}, err
	}
	return doc, nil
}

func thesisFromNode(n *rdf.Node) domain.Thesis {
	return domain.Thesis{
		URI:           n.ID,
		Abstract:      n.Values(rdf.DCTermsAbstract),
		Advisor:       n.Values(rdf.RDAAdvisor),
		Author:        n.Values(rdf.DCTermsCreator),
		CopyrightDate: n.Values(rdf.DCTermsDateCopyrighted),
		Degree:        n.Values(rdf.MSLDegree),
		Department:    n.Values(rdf.MSLDepartment),
		Description:   n.Values(rdf.MODSNote),
		Handle:        n.Values(rdf.BIBOHandle),
		PublishedDate: n.Values(rdf.DCTermsIssued),
		Title:         n.Values(rdf.DCTermsTitle),
	}
}

func (p *Pipeline) fullText(ctx context.Context, g *rdf.Graph, obj *rdf.Node) (string, error) {
	for _, id := range obj.Objects(rdf.PCDMHasFile) {
		file, ok := g.Node(id)
		if !ok {
			continue
		}
		if file.Value(rdf.EBUHasMimeType) == textPlain {
			return p.fetcher.FetchText(ctx, id)
		}
	}
	return "", nil
}

// Members returns the member URIs of a collection: pcdm:hasMember then
// ldp:contains, deduplicated in order.
func (p *Pipeline) Members(ctx context.Context, collectionURI string) ([]string, error) {
	data, err := p.fetcher.FetchResource(ctx, collectionURI)
	if err != nil {
		return nil, err
	}
	g, err := rdf.ParseExpanded(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransform, collectionURI, err)
	}
	coll, ok := g.Node(collectionURI)
	if !ok {
		return nil, fmt.Errorf("%w: %s: collection not in representation", domain.ErrTransform, collectionURI)
	}

	seen := make(map[string]struct{})
	var members []string
	for _, pred := range []string{rdf.PCDMHasMember, rdf.LDPContains} {
		for _, m := range coll.Objects(pred) {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			members = append(members, m)
		}
	}
	return members, nil
}
