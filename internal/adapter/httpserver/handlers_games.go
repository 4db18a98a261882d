package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/flaviosmedeiros/placar-realtime-sub000/internal/domain"
	apperrors "github.com/flaviosmedeiros/placar-realtime-sub000/internal/platform/errors"
)

const (
	gameAPIRate  = 20
	gameAPIBurst = 40
	maxGameBody  = 64 << 10
)

func (s *Server) registerGameRoutes(api *echo.Group) {
	games := api.Group("/games", newRateLimiter(gameAPIRate, gameAPIBurst))
	games.GET("/:id", s.handleGetGame)
	games.POST("", s.handleSaveGame)
}

func (s *Server) handleGetGame(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperrors.ValidationError("game id must be a positive integer").WithContext("id", c.Param("id"))
	}

	event, err := s.games.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, event); err != nil {
		return fmt.Errorf("failed to write game response: %w", err)
	}
	return nil
}

// handleSaveGame writes a game straight to the cache. It does not merge or
// broadcast.
func (s *Server) handleSaveGame(c echo.Context) error {
	var event domain.ScoreEvent
	dec := json.NewDecoder(http.MaxBytesReader(c.Response(), c.Request().Body, maxGameBody))
	if err := dec.Decode(&event); err != nil {
		return apperrors.ValidationError("request body is not a valid score event").WithContext("cause", err.Error())
	}

	if err := s.games.Save(c.Request().Context(), &event); err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("/api/games/%d", event.ID))
	if err := c.JSON(http.StatusCreated, &event); err != nil {
		return fmt.Errorf("failed to write game response: %w", err)
	}
	return nil
}
