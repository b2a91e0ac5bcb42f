package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/likelovehate/internal/app"
	"github.com/pscheid92/likelovehate/internal/domain"
	apperrors "github.com/pscheid92/likelovehate/internal/platform/errors"
)

const (
	msgReactionSaved   = "Reaction saved successfully"
	msgReactionDeleted = "Reaction deleted successfully"
	msgInvalidReaction = "Reaction must be 1 (Like), 2 (Love), or 3 (Hate)"
	msgMissingIDs      = "itemId and userId are required"
	msgInvalidParams   = "invalid request parameters"
	exportFileName     = "reactions_export.json"
	exportDisposition  = `attachment; filename="` + exportFileName + `"`
)

// reactionParams accepts the same fields from the query string, a form body
// or a JSON body. Reaction is a json.Number so that both 2 and "2" decode.
type reactionParams struct {
	ItemID   string      `query:"itemId" form:"itemId" json:"itemId"`
	UserID   string      `query:"userId" form:"userId" json:"userId"`
	Reaction json.Number `query:"reaction" form:"reaction" json:"reaction"`
	UserName string      `query:"userName" form:"userName" json:"userName"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type reactionView struct {
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Reaction     int       `json:"reaction"`
	ReactionName string    `json:"reactionName"`
	Timestamp    time.Time `json:"timestamp"`
}

type itemReactionsResponse struct {
	Success   bool           `json:"success"`
	Reactions []reactionView `json:"reactions"`
	Likes     int            `json:"likes"`
	Loves     int            `json:"loves"`
	Hates     int            `json:"hates"`
	Total     int            `json:"total"`
}

type myReactionResponse struct {
	Success      bool       `json:"success"`
	Reaction     *int       `json:"reaction"`
	ReactionName string     `json:"reactionName,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// The static export route takes precedence over an item literally named
// "export"; that item stays reachable as /reactions/%65xport.
func (s *Server) registerReactionRoutes(limiter echo.MiddlewareFunc) {
	s.echo.POST("/reactions", s.handleSetReaction, limiter)
	s.echo.DELETE("/reactions", s.handleDeleteReaction, limiter)
	s.echo.GET("/reactions/export", s.handleExport)
	s.echo.GET("/reactions/:itemId", s.handleGetItemReactions)
	s.echo.GET("/reactions/:itemId/mine", s.handleGetMyReaction)
	s.echo.GET("/colors", s.handleColors)
}

func (s *Server) handleSetReaction(c echo.Context) error {
	params, err := bindReactionParams(c)
	if err != nil {
		return err
	}

	if params.ItemID == "" || params.UserID == "" {
		return toAPIError(domain.ErrMissingIdentifier, "failed to save reaction")
	}
	code, err := strconv.Atoi(params.Reaction.String())
	if err != nil {
		return apperrors.ValidationError(msgInvalidReaction).WithField("reaction", params.Reaction.String())
	}

	req := app.ReactRequest{
		ItemID:   params.ItemID,
		UserID:   params.UserID,
		Reaction: code,
		UserName: params.UserName,
	}
	if err := s.app.React(c.Request().Context(), req); err != nil {
		return toAPIError(err, "failed to save reaction")
	}

	if err := c.JSON(http.StatusOK, messageResponse{Success: true, Message: msgReactionSaved}); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteReaction(c echo.Context) error {
	params, err := bindReactionParams(c)
	if err != nil {
		return err
	}

	if err := s.app.DeleteReaction(c.Request().Context(), params.ItemID, params.UserID); err != nil {
		return toAPIError(err, "failed to delete reaction")
	}

	if err := c.JSON(http.StatusOK, messageResponse{Success: true, Message: msgReactionDeleted}); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

func (s *Server) handleGetItemReactions(c echo.Context) error {
	itemID, err := itemIDParam(c)
	if err != nil {
		return err
	}
	result, err := s.app.GetItemReactions(c.Request().Context(), itemID)
	if err != nil {
		return toAPIError(err, "failed to load reactions")
	}

	views := make([]reactionView, 0, len(result.Reactions))
	for _, r := range result.Reactions {
		views = append(views, reactionView{
			UserID:       r.UserID,
			UserName:     r.UserName,
			Reaction:     int(r.Kind),
			ReactionName: r.Kind.String(),
			Timestamp:    r.Timestamp,
		})
	}

	response := itemReactionsResponse{
		Success:   true,
		Reactions: views,
		Likes:     result.Stats.Likes,
		Loves:     result.Stats.Loves,
		Hates:     result.Stats.Hates,
		Total:     result.Stats.Total,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

func (s *Server) handleGetMyReaction(c echo.Context) error {
	itemID, err := itemIDParam(c)
	if err != nil {
		return err
	}
	r, ok, err := s.app.GetMyReaction(c.Request().Context(), itemID, c.QueryParam("userId"))
	if err != nil {
		return toAPIError(err, "failed to load reaction")
	}

	response := myReactionResponse{Success: true}
	if ok {
		code := int(r.Kind)
		ts := r.Timestamp
		response.Reaction = &code
		response.ReactionName = r.Kind.String()
		response.Timestamp = &ts
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

func (s *Server) handleExport(c echo.Context) error {
	data, err := s.app.ExportAll(c.Request().Context())
	if err != nil {
		return toAPIError(err, "failed to export reactions")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, exportDisposition)
	if err := c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func (s *Server) handleColors(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.app.Colors()); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// itemIDParam returns the decoded :itemId. echo matches against the raw path
// whenever the URL carries escapes such as %2F, and then leaves the param
// escaped.
func itemIDParam(c echo.Context) (string, error) {
	id := c.Param("itemId")
	if c.Request().URL.RawPath == "" {
		return id, nil
	}
	decoded, err := url.PathUnescape(id)
	if err != nil {
		return "", apperrors.ValidationError(msgInvalidParams).WithField("itemId", id)
	}
	return decoded, nil
}

func bindReactionParams(c echo.Context) (reactionParams, error) {
	var params reactionParams
	binder := &echo.DefaultBinder{}
	if err := binder.BindQueryParams(c, &params); err != nil {
		return params, apperrors.ValidationError(msgInvalidParams)
	}
	if err := binder.BindBody(c, &params); err != nil {
		// A non-numeric JSON reaction is the common cause; report it in the caller's terms.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return params, apperrors.ValidationError(msgInvalidReaction)
		}
		return params, apperrors.ValidationError(msgInvalidParams)
	}
	return params, nil
}

// toAPIError maps service failures onto the error envelope.
func toAPIError(err error, operation string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidReaction):
		return apperrors.ValidationError(msgInvalidReaction)
	case errors.Is(err, domain.ErrMissingIdentifier):
		return apperrors.ValidationError(msgMissingIDs)
	default:
		return apperrors.InternalError(operation, err)
	}
}
