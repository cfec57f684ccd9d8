package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kolo/xmlrpc"
	"github.com/rs/zerolog"

	"github.com/Belphemur/opensubtitles-dl/internal/apperrors"
	"github.com/Belphemur/opensubtitles-dl/internal/config"
	"github.com/Belphemur/opensubtitles-dl/internal/models"
)

// statusOK is the status string OpenSubtitles returns on success.
const statusOK = "200 OK"

// Searcher performs the remote subtitle search for a movie.
type Searcher interface {
	// AuthenticateAndSearch logs in and searches subtitles for imdbID in the given sublanguage ids.
	AuthenticateAndSearch(ctx context.Context, imdbID string, languages []string) (*models.SearchResponse, error)
}

// Client is the OpenSubtitles XML-RPC client.
type Client interface {
	Searcher

	// LogIn authenticates and returns the session token.
	LogIn(ctx context.Context) (string, error)

	// SearchSubtitles searches with an existing session token.
	SearchSubtitles(ctx context.Context, token, imdbID string, languages []string) (*models.SearchResponse, error)

	// Close releases the underlying RPC client.
	Close() error
}

// rpcCaller is the subset of *xmlrpc.Client used by the client.
type rpcCaller interface {
	Call(serviceMethod string, args interface{}, reply interface{}) error
	Close() error
}

// client implements the Client interface
type client struct {
	rpc       rpcCaller
	username  string
	password  string
	locale    string
	userAgent string
	logger    zerolog.Logger
}

// searchQuery is one entry of the SearchSubtitles query array.
type searchQuery struct {
	SubLanguageID string `xmlrpc:"sublanguageid"`
	IMDBID        string `xmlrpc:"imdbid"`
}

// NewClient creates an XML-RPC client for cfg.APIURL on top of transport.
func NewClient(cfg *config.Config, transport http.RoundTripper, logger zerolog.Logger) (Client, error) {
	rpc, err := xmlrpc.NewClient(cfg.APIURL, newCompressionTransport(transport))
	if err != nil {
		return nil, apperrors.Configuration("create XML-RPC client", err)
	}
	return newClient(rpc, cfg, logger), nil
}

func newClient(rpc rpcCaller, cfg *config.Config, logger zerolog.Logger) *client {
	locale := cfg.Locale
	if locale == "" {
		locale = "en"
	}
	return &client{
		rpc:       rpc,
		username:  cfg.Username,
		password:  cfg.Password,
		locale:    locale,
		userAgent: cfg.UserAgent,
		logger:    logger.With().Str("component", "opensubtitles").Logger(),
	}
}

func (c *client) LogIn(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Authentication("LogIn", err)
	}

	var reply interface{}
	if err := c.rpc.Call("LogIn", []interface{}{c.username, c.password, c.locale, c.userAgent}, &reply); err != nil {
		return "", apperrors.Authentication("LogIn", err)
	}

	members, ok := reply.(map[string]interface{})
	if !ok {
		return "", apperrors.Authentication("LogIn", fmt.Errorf("unexpected response type %T", reply))
	}

	status := stringMember(members, "status")
	token := stringMember(members, "token")
	if status != statusOK || token == "" {
		if status == "" {
			status = "no status"
		}
		return "", apperrors.Authentication("LogIn", fmt.Errorf("unable to retrieve the subtitles (%s)", status))
	}

	c.logger.Debug().Bool("anonymous", c.username == "").Msg("Logged in")
	return token, nil
}

func (c *client) SearchSubtitles(ctx context.Context, token, imdbID string, languages []string) (*models.SearchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Network("SearchSubtitles", err)
	}

	query := []searchQuery{{
		SubLanguageID: strings.Join(languages, ","),
		IMDBID:        imdbID,
	}}

	var reply interface{}
	if err := c.rpc.Call("SearchSubtitles", []interface{}{token, query}, &reply); err != nil {
		return nil, apperrors.Network("SearchSubtitles", err)
	}

	members, ok := reply.(map[string]interface{})
	if !ok {
		return nil, apperrors.Network("SearchSubtitles", fmt.Errorf("unexpected response type %T", reply))
	}

	response, err := decodeSearchResponse(members)
	if err != nil {
		return nil, apperrors.Network("SearchSubtitles", err)
	}
	if response.Status != statusOK {
		return nil, apperrors.Network("SearchSubtitles", fmt.Errorf("search failed (%s)", response.Status))
	}

	c.logger.Debug().
		Str("imdb_id", imdbID).
		Strs("languages", languages).
		Int("hits", len(response.Data)).
		Msg("Search completed")

	return response, nil
}

// AuthenticateAndSearch runs LogIn then SearchSubtitles. An authentication
// failure returns before any search call is made.
func (c *client) AuthenticateAndSearch(ctx context.Context, imdbID string, languages []string) (*models.SearchResponse, error) {
	token, err := c.LogIn(ctx)
	if err != nil {
		return nil, err
	}
	return c.SearchSubtitles(ctx, token, imdbID, languages)
}

func (c *client) Close() error {
	return c.rpc.Close()
}
