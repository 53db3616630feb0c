package pipeline

import (
	"fmt"
	"strings"

	"github.com/bft-labs/pit/internal/domain"
	"github.com/bft-labs/pit/internal/rdf"
)

// Indexable reports whether a notification describes a modified PCDM
// object. Missing headers mean false.
func Indexable(headers map[string]string) bool {
	return strings.Contains(headers[domain.HeaderResourceType], rdf.PCDMObject) &&
		strings.Contains(headers[domain.HeaderEventType], rdf.F4EVResourceModification)
}

// SubjectFromMessage returns the id of the PCDM object a notification body
// describes.
func SubjectFromMessage(body []byte) (string, error) {
	g, err := rdf.ParseExpanded(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrTransform, err)
	}
	n, ok := g.FirstOfType(rdf.PCDMObject)
	if !ok || n.ID == "" {
		return "", fmt.Errorf("%w: message has no %s subject", domain.ErrTransform, rdf.PCDMObject)
	}
	return n.ID, nil
}
