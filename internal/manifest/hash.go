package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/opencontainers/go-digest"
)

// Hash returns a content digest of m ("sha256:<hex>") computed over its
// RFC 8785 canonical JSON form, so key order and number formatting do not
// affect it. It is meant for change detection only. Values that do not
// encode as JSON yield common.ErrMalformedManifest.
func Hash(m Manifest) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrMalformedManifest, err)
	}

	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrMalformedManifest, err)
	}

	return digest.FromBytes(canonical).String(), nil
}
