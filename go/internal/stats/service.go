package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/focusguard/focusguard/go/internal/api/focusv1"
	"github.com/focusguard/focusguard/go/internal/models"
	"github.com/focusguard/focusguard/go/internal/rpc"
	"github.com/focusguard/focusguard/go/internal/session"
)

// StatsApp defines what the service layer needs from the stats application
type StatsApp interface {
	GetUserStats(ctx context.Context, ownerID string) (*UserStatsView, error)
	GetDailyStats(ctx context.Context, ownerID string, days int) ([]models.DailyStat, error)
	ListGarden(ctx context.Context, ownerID string, offset, limit int) (*GardenPage, error)
	GetGardenStats(ctx context.Context, ownerID string) (*models.GardenStats, error)
	GetUserTrends(ctx context.Context, ownerID string) (*UserTrends, error)
	SetGrowthStage(ctx context.Context, ownerID string, itemID uuid.UUID, stage int) (*models.GardenItem, error)
}

// Service implements the focus.v1.StatsService connect handlers
type Service struct {
	app StatsApp
}

// NewService creates a new stats service
func NewService(app StatsApp) *Service {
	return &Service{
		app: app,
	}
}

// Handler mounts every StatsService procedure and returns the path prefix to register.
func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = rpc.HandlerOptions(opts...)
	mux := http.NewServeMux()
	mux.Handle(focusv1.StatsServiceGetUserStatsProcedure, connect.NewUnaryHandler(
		focusv1.StatsServiceGetUserStatsProcedure, s.GetUserStats, opts...))
	mux.Handle(focusv1.StatsServiceGetDailyStatsProcedure, connect.NewUnaryHandler(
		focusv1.StatsServiceGetDailyStatsProcedure, s.GetDailyStats, opts...))
	mux.Handle(focusv1.StatsServiceListGardenProcedure, connect.NewUnaryHandler(
		focusv1.StatsServiceListGardenProcedure, s.ListGarden, opts...))
	mux.Handle(focusv1.StatsServiceGetGardenStatsProcedure, connect.NewUnaryHandler(
		focusv1.StatsServiceGetGardenStatsProcedure, s.GetGardenStats, opts...))
	mux.Handle(focusv1.StatsServiceGetUserTrendsProcedure, connect.NewUnaryHandler(
		focusv1.StatsServiceGetUserTrendsProcedure, s.GetUserTrends, opts...))
	mux.Handle(focusv1.StatsServiceGrowGardenItemProcedure, connect.NewUnaryHandler(
		focusv1.StatsServiceGrowGardenItemProcedure, s.GrowGardenItem, opts...))
	return "/" + focusv1.StatsServiceName + "/", mux
}

// GetUserStats returns the caller's XP, level and streak aggregate
func (s *Service) GetUserStats(ctx context.Context, req *connect.Request[focusv1.GetUserStatsRequest]) (*connect.Response[focusv1.GetUserStatsResponse], error) {
	owner, err := rpc.OwnerFromHeader(req.Header())
	if err != nil {
		return nil, err
	}

	stats, err := s.app.GetUserStats(ctx, owner)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&focusv1.GetUserStatsResponse{
		Stats: &focusv1.UserStats{
			OwnerID:           stats.OwnerID,
			TotalXP:           stats.TotalXP,
			Level:             stats.Level,
			XPIntoLevel:       stats.XPIntoLevel,
			XPPerLevel:        stats.XPPerLevel,
			TotalFocusSeconds: stats.TotalFocusSeconds,
			TotalSessions:     stats.TotalSessions,
			CurrentStreak:     stats.CurrentStreak,
			BestStreak:        stats.BestStreak,
			LastCompletedOn:   stats.LastCompletedOn,
		},
	}), nil
}

// GetDailyStats returns per-day completion totals
func (s *Service) GetDailyStats(ctx context.Context, req *connect.Request[focusv1.GetDailyStatsRequest]) (*connect.Response[focusv1.GetDailyStatsResponse], error) {
	owner, err := rpc.OwnerFromHeader(req.Header())
	if err != nil {
		return nil, err
	}

	days, err := s.app.GetDailyStats(ctx, owner, req.Msg.Days)
	if err != nil {
		return nil, toConnectError(err)
	}

	out := make([]*focusv1.DailyStat, len(days))
	for i, d := range days {
		out[i] = &focusv1.DailyStat{
			Day:               d.Day.Format(time.DateOnly),
			SessionsCompleted: d.SessionsCompleted,
			FocusSeconds:      d.FocusSeconds,
		}
	}
	return connect.NewResponse(&focusv1.GetDailyStatsResponse{Days: out}), nil
}

// ListGarden pages through the caller's garden
func (s *Service) ListGarden(ctx context.Context, req *connect.Request[focusv1.ListGardenRequest]) (*connect.Response[focusv1.ListGardenResponse], error) {
	owner, err := rpc.OwnerFromHeader(req.Header())
	if err != nil {
		return nil, err
	}

	page, err := s.app.ListGarden(ctx, owner, req.Msg.Offset, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(err)
	}

	items := make([]*focusv1.GardenItem, len(page.Items))
	for i, item := range page.Items {
		items[i] = session.GardenItemToProto(item)
	}
	return connect.NewResponse(&focusv1.ListGardenResponse{
		Items: items,
		Total: page.Total,
	}), nil
}

// GetGardenStats counts the caller's garden by rarity
func (s *Service) GetGardenStats(ctx context.Context, req *connect.Request[focusv1.GetGardenStatsRequest]) (*connect.Response[focusv1.GetGardenStatsResponse], error) {
	owner, err := rpc.OwnerFromHeader(req.Header())
	if err != nil {
		return nil, err
	}

	stats, err := s.app.GetGardenStats(ctx, owner)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&focusv1.GetGardenStatsResponse{
		Stats: &focusv1.GardenStats{
			TotalItems:     stats.TotalItems,
			RareItems:      stats.RareItems,
			EpicItems:      stats.EpicItems,
			LegendaryItems: stats.LegendaryItems,
			LastGrantedAt:  stats.LastGrantedAt,
		},
	}), nil
}

// GetUserTrends summarises the caller's last TrendWindowDays of completions
func (s *Service) GetUserTrends(ctx context.Context, req *connect.Request[focusv1.GetUserTrendsRequest]) (*connect.Response[focusv1.GetUserTrendsResponse], error) {
	owner, err := rpc.OwnerFromHeader(req.Header())
	if err != nil {
		return nil, err
	}

	trends, err := s.app.GetUserTrends(ctx, owner)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&focusv1.GetUserTrendsResponse{
		Trends: &focusv1.UserTrends{
			WindowDays:            trends.WindowDays,
			SessionsCompleted:     trends.SessionsCompleted,
			FocusMinutes:          trends.FocusSeconds / 60,
			AverageSessionMinutes: math.Round(trends.AverageSessionSeconds/60*10) / 10,
			MostProductiveHour:    trends.MostProductiveHour,
		},
	}), nil
}

// GrowGardenItem sets the growth stage of one of the caller's garden items
func (s *Service) GrowGardenItem(ctx context.Context, req *connect.Request[focusv1.GrowGardenItemRequest]) (*connect.Response[focusv1.GrowGardenItemResponse], error) {
	owner, err := rpc.OwnerFromHeader(req.Header())
	if err != nil {
		return nil, err
	}
	itemID, err := uuid.Parse(req.Msg.ItemID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid item id %q: %w", req.Msg.ItemID, err))
	}

	item, err := s.app.SetGrowthStage(ctx, owner, itemID, req.Msg.GrowthStage)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&focusv1.GrowGardenItemResponse{
		Item: session.GardenItemToProto(item),
	}), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
