package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imulab-x/client-service/internal/oauth"
)

// ParamSectorIdentifierURI 是 sector_identifier_uri 的参数名。
const ParamSectorIdentifierURI = "sector_identifier_uri"

// ValidateSector 拉取 sector_identifier_uri 指向的 JSON 数组，并确保其包含所有 redirect_uris。
// uri 为空时不做任何事。
func (f *DocumentFetcher) ValidateSector(ctx context.Context, uri string, redirects []string) error {
	if uri == "" {
		return nil
	}
	body, err := f.fetch(ctx, uri, ParamSectorIdentifierURI)
	if err != nil {
		return err
	}
	var listed []string
	if err := json.Unmarshal([]byte(body), &listed); err != nil {
		return oauth.Unmet(fmt.Sprintf("Value from %s is not a JSON array of URIs.", ParamSectorIdentifierURI))
	}
	return checkSectorRedirects(listed, redirects)
}

func checkSectorRedirects(listed, redirects []string) error {
	have := make(map[string]struct{}, len(listed))
	for _, u := range listed {
		have[u] = struct{}{}
	}
	for _, r := range redirects {
		if _, ok := have[r]; !ok {
			return oauth.Unmet(fmt.Sprintf("Redirect URI %s is not listed by %s.", r, ParamSectorIdentifierURI))
		}
	}
	return nil
}
