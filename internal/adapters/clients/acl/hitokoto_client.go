package acl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/clients"
	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/logging"
)

// DefaultCategoryParam is the query parameter the public API filters on.
const DefaultCategoryParam = "c"

// HitokotoClientConfig contains configuration for the hitokoto client.
type HitokotoClientConfig struct {
	// Client is the HTTP client to use for requests. Its BaseURL should
	// point at the API root, e.g. https://v1.hitokoto.cn.
	Client *clients.Client

	// CategoryParam names the filter query parameter. Defaults to "c".
	CategoryParam string

	// Logger is the structured logger.
	Logger *slog.Logger
}

// HitokotoClient implements ports.QuoteClient against the hitokoto API.
type HitokotoClient struct {
	client        *clients.Client
	categoryParam string
	logger        *slog.Logger
}

// NewHitokotoClient creates a new hitokoto adapter.
// Panics if Client is nil. Defaults logger to slog.Default() if nil.
func NewHitokotoClient(cfg HitokotoClientConfig) *HitokotoClient {
	if cfg.Client == nil {
		panic("HitokotoClient: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	param := cfg.CategoryParam
	if param == "" {
		param = DefaultCategoryParam
	}

	return &HitokotoClient{
		client:        cfg.Client,
		categoryParam: param,
		logger:        logger,
	}
}

// hitokotoResponse is the wire form of a quote. Never exposed outside the ACL.
type hitokotoResponse struct {
	ID         int       `json:"id"`
	UUID       string    `json:"uuid"`
	Hitokoto   string    `json:"hitokoto"`
	Type       string    `json:"type"`
	From       string    `json:"from"`
	FromWho    *string   `json:"from_who"`
	Creator    string    `json:"creator"`
	CreatorUID int       `json:"creator_uid"`
	Reviewer   int       `json:"reviewer"`
	CommitFrom string    `json:"commit_from"`
	CreatedAt  unixStamp `json:"created_at"`
	Length     int       `json:"length"`
}

// unixStamp accepts epoch seconds sent either as a JSON string or number.
// Anything else leaves it zero: the timestamp is never shown, so it must
// not cost the quote.
type unixStamp struct {
	time.Time
}

func (u *unixStamp) UnmarshalJSON(data []byte) error {
	secs, err := strconv.ParseInt(strings.Trim(string(data), `"`), 10, 64)
	if err != nil {
		u.Time = time.Time{}
		return nil //nolint:nilerr // unparsable stamps decode as zero
	}

	u.Time = time.Unix(secs, 0).UTC()

	return nil
}

// RandomQuote fetches one random quote. An empty category asks for any
// category and sends no filter parameter at all.
// Implements ports.QuoteClient.
func (c *HitokotoClient) RandomQuote(ctx context.Context, category domain.Category) (*domain.Quote, error) {
	var query url.Values
	if !category.IsAll() {
		query = url.Values{c.categoryParam: {string(category)}}
	}

	c.logger.Log(ctx, logging.LevelTrace, "starting request",
		slog.String("category", string(category)))

	quote, err := Fetch[hitokotoResponse, domain.Quote](ctx, c.client, "/", query, translateQuote)
	if err != nil {
		return nil, err
	}

	c.logger.Log(ctx, logging.LevelTrace, "translated external DTO to domain",
		slog.Int("quote_id", quote.ID),
		slog.String("quote_category", string(quote.Category)))

	return quote, nil
}

// translateQuote converts the wire DTO into a domain Quote. A payload
// without text is treated as a decode failure since there is nothing to show.
func translateQuote(ext *hitokotoResponse) (*domain.Quote, error) {
	if strings.TrimSpace(ext.Hitokoto) == "" {
		return nil, domain.NewFetchError(StageDecode, errors.New("response has no hitokoto text"))
	}

	q := &domain.Quote{
		ID:         ext.ID,
		UUID:       ext.UUID,
		Text:       ext.Hitokoto,
		Category:   domain.Category(ext.Type),
		From:       ext.From,
		Creator:    ext.Creator,
		CreatorUID: ext.CreatorUID,
		Reviewer:   ext.Reviewer,
		CommitFrom: ext.CommitFrom,
		CreatedAt:  ext.CreatedAt.Time,
		Length:     ext.Length,
	}

	if ext.FromWho != nil {
		q.FromWho = *ext.FromWho
	}

	return q, nil
}

// Name returns the health check name for this client.
// Implements ports.HealthChecker.
func (c *HitokotoClient) Name() string {
	return c.client.ServiceName()
}

// Check fetches one quote to prove the API answers with something usable.
// Implements ports.HealthChecker.
func (c *HitokotoClient) Check(ctx context.Context) error {
	if _, err := c.RandomQuote(ctx, domain.CategoryAll); err != nil {
		var fetchErr *domain.FetchError
		if errors.As(err, &fetchErr) && fetchErr.Cause != nil {
			return fmt.Errorf("%s check failed at %s: %w", c.Name(), fetchErr.Stage, fetchErr.Cause)
		}

		return err
	}

	return nil
}
