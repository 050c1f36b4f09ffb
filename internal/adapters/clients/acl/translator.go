package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/clients"
	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// Translator converts an external DTO to a domain type, validating as it goes.
type Translator[External any, Domain any] func(ext *External) (*Domain, error)

// Fetch runs one GET through client and turns a 200 JSON answer into a
// domain value. Every failure on the way is a fetch failure tagged with
// the stage it happened at.
func Fetch[External, Domain any](
	ctx context.Context,
	client *clients.Client,
	path string,
	query url.Values,
	translate Translator[External, Domain],
) (*Domain, error) {
	resp, err := client.Get(ctx, path, query)
	if err != nil {
		return nil, MapHTTPError(nil, err, client.ServiceName())
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()

		return nil, MapHTTPError(resp, nil, client.ServiceName())
	}

	ext, err := DecodeResponse[External](resp.Body)
	if err != nil {
		return nil, err
	}

	return translate(ext)
}

// DecodeResponse decodes a JSON body into T and closes it.
func DecodeResponse[T any](body io.ReadCloser) (*T, error) {
	if body == nil {
		return nil, domain.NewFetchError(StageDecode, errors.New("response body is nil"))
	}
	defer func() { _ = body.Close() }()

	var out T
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, domain.NewFetchError(StageDecode, fmt.Errorf("decoding response: %w", err))
	}

	return &out, nil
}
