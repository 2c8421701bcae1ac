package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/currency"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
	"github.com/mmynk/tripledger/internal/submission"
	"github.com/mmynk/tripledger/pkg/api"
)

// TripService implements the Connect TripService.
type TripService struct {
	store     storage.Store
	directory ledger.Directory
	syncer    *Syncer
	reporting string
}

var _ api.TripServiceHandler = (*TripService)(nil)

// NewTripService creates a TripService. directory may be nil, in which case
// trip participants must be listed explicitly.
func NewTripService(store storage.Store, directory ledger.Directory, syncer *Syncer, reporting string) *TripService {
	return &TripService{store: store, directory: directory, syncer: syncer, reporting: reporting}
}

// tripFields validates the editable fields shared by create and update.
func tripFields(name, start, end string, currencies, locations []string) (*models.Trip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: trip name is required", submission.ErrInvalidSubmission)
	}
	startDate, err := parseOptionalDate("start_date", start)
	if err != nil {
		return nil, err
	}
	endDate, err := parseOptionalDate("end_date", end)
	if err != nil {
		return nil, err
	}
	if startDate != nil && endDate != nil && endDate.Before(*startDate) {
		return nil, fmt.Errorf("%w: end date is before start date", submission.ErrInvalidSubmission)
	}

	codes := make([]string, 0, len(currencies))
	for _, c := range currencies {
		code := currency.NormalizeCode(c)
		if err := currency.ValidateCode(code); err != nil {
			return nil, fmt.Errorf("%w: %w", submission.ErrInvalidSubmission, err)
		}
		codes = append(codes, code)
	}

	return &models.Trip{
		Name:       name,
		StartDate:  startDate,
		EndDate:    endDate,
		Currencies: codes,
		Locations:  locations,
	}, nil
}

// participants resolves the remote users of a group: the explicit list if
// given, otherwise the group's members from the remote directory.
func (s *TripService) participants(ctx context.Context, groupID string, explicit []string) ([]models.RemoteUser, error) {
	if len(explicit) > 0 {
		users := make([]models.RemoteUser, 0, len(explicit))
		for _, id := range explicit {
			if id = strings.TrimSpace(id); id != "" {
				users = append(users, models.RemoteUser{ID: id})
			}
		}
		return users, nil
	}
	if s.directory == nil {
		return nil, nil
	}
	group, err := s.directory.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote group: %w", err)
	}
	return group.Members, nil
}

// CreateTrip creates one trip row per participant and runs an initial sync.
// Without a group id the trip is local-only and holds personal expenses.
func (s *TripService) CreateTrip(ctx context.Context, req *connect.Request[api.CreateTripRequest]) (*connect.Response[api.CreateTripResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("CreateTrip request received",
		"group_id", req.Msg.GroupID,
		"name", req.Msg.Name,
		"participants", len(req.Msg.ParticipantIDs),
	)

	fields, err := tripFields(req.Msg.Name, req.Msg.StartDate, req.Msg.EndDate, req.Msg.Currencies, req.Msg.Locations)
	if err != nil {
		return nil, toConnectError(err)
	}

	groupID := strings.TrimSpace(req.Msg.GroupID)
	var members []models.RemoteUser
	if groupID == "" {
		groupID = models.NewLocalID()
	} else {
		existing, err := s.store.ListTripsByGroup(ctx, groupID)
		if err != nil {
			return nil, toConnectError(err)
		}
		if len(existing) > 0 {
			return nil, connect.NewError(connect.CodeAlreadyExists, fmt.Errorf("trip for group %s already exists", groupID))
		}
		if members, err = s.participants(ctx, groupID, req.Msg.ParticipantIDs); err != nil {
			slog.Error("CreateTrip failed to resolve participants", "group_id", groupID, "error", err)
			return nil, toConnectError(err)
		}
	}

	callerRow := *fields
	callerRow.UserID = userID
	trips := []*models.Trip{&callerRow}
	seen := map[string]bool{userID: true}
	callerRemote := middleware.GetRemoteID(ctx)

	for _, m := range members {
		if m.ID == callerRemote {
			continue
		}
		user := &models.User{RemoteID: m.ID, Name: m.Name, Email: m.Email}
		if user.Name == "" {
			user.Name = m.ID
		}
		if err := s.store.UpsertUser(ctx, user); err != nil {
			slog.Error("CreateTrip failed to store participant", "remote_id", m.ID, "error", err)
			return nil, toConnectError(err)
		}
		if seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		row := *fields
		row.UserID = user.ID
		trips = append(trips, &row)
	}

	for _, t := range trips {
		t.GroupID = groupID
		t.CreatedBy = userID
	}
	if err := s.store.CreateTrips(ctx, trips); err != nil {
		slog.Error("CreateTrip failed", "group_id", groupID, "error", err)
		return nil, toConnectError(err)
	}
	slog.Info("Trip created", "trip_id", callerRow.ID, "group_id", groupID, "rows", len(trips))

	resp := &api.CreateTripResponse{}
	if !models.IsLocalID(groupID) && s.syncer.Enabled() {
		result, err := s.syncer.Sync(ctx, groupID)
		if err != nil {
			// The trip exists; the caller can retry with SyncTrip.
			slog.Warn("Initial sync failed", "group_id", groupID, "error", err)
		} else {
			resp.Sync = &api.SyncTripResponse{
				Inserted: result.Inserted,
				Updated:  result.Updated,
				Deleted:  result.Deleted,
			}
		}
	}

	trip, err := s.store.GetTrip(ctx, callerRow.ID)
	if err != nil {
		return nil, toConnectError(err)
	}
	resp.Trip = tripToAPI(trip)
	return connect.NewResponse(resp), nil
}

// ownTrip loads a trip row and checks it belongs to the caller.
func (s *TripService) ownTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.UserID != middleware.GetUserID(ctx) {
		return nil, errNotMember
	}
	return trip, nil
}

// UpdateTrip updates the trip for every participant.
func (s *TripService) UpdateTrip(ctx context.Context, req *connect.Request[api.UpdateTripRequest]) (*connect.Response[api.UpdateTripResponse], error) {
	slog.Info("UpdateTrip request received", "trip_id", req.Msg.TripID, "name", req.Msg.Name)

	trip, err := s.ownTrip(ctx, req.Msg.TripID)
	if err != nil {
		return nil, toConnectError(err)
	}
	fields, err := tripFields(req.Msg.Name, req.Msg.StartDate, req.Msg.EndDate, req.Msg.Currencies, req.Msg.Locations)
	if err != nil {
		return nil, toConnectError(err)
	}
	fields.GroupID = trip.GroupID

	if err := s.store.UpdateTrip(ctx, fields); err != nil {
		slog.Error("UpdateTrip failed", "trip_id", trip.ID, "error", err)
		return nil, toConnectError(err)
	}

	updated, err := s.store.GetTrip(ctx, trip.ID)
	if err != nil {
		slog.Error("Failed to fetch updated trip", "error", err)
		return nil, toConnectError(err)
	}
	slog.Info("Trip updated", "trip_id", trip.ID)
	return connect.NewResponse(&api.UpdateTripResponse{Trip: tripToAPI(updated)}), nil
}

// ListTrips returns the caller's trips.
func (s *TripService) ListTrips(ctx context.Context, req *connect.Request[api.ListTripsRequest]) (*connect.Response[api.ListTripsResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("ListTrips request received", "user_id", userID)

	trips, err := s.store.ListTripsByUser(ctx, userID)
	if err != nil {
		slog.Error("ListTrips failed", "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.ListTripsResponse{Trips: make([]*api.Trip, 0, len(trips))}
	for _, t := range trips {
		resp.Trips = append(resp.Trips, tripToAPI(t))
	}
	slog.Info("ListTrips successful", "count", len(trips))
	return connect.NewResponse(resp), nil
}

// GetTrip returns one of the caller's trips.
func (s *TripService) GetTrip(ctx context.Context, req *connect.Request[api.GetTripRequest]) (*connect.Response[api.GetTripResponse], error) {
	slog.Info("GetTrip request received", "trip_id", req.Msg.TripID)

	trip, err := s.ownTrip(ctx, req.Msg.TripID)
	if err != nil {
		slog.Error("GetTrip failed", "trip_id", req.Msg.TripID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetTripResponse{Trip: tripToAPI(trip)}), nil
}

// DeleteTrip deletes the trip for every participant together with all of
// its expense rows. The remote ledger is not touched.
func (s *TripService) DeleteTrip(ctx context.Context, req *connect.Request[api.DeleteTripRequest]) (*connect.Response[api.DeleteTripResponse], error) {
	slog.Info("DeleteTrip request received", "trip_id", req.Msg.TripID)

	trip, err := s.ownTrip(ctx, req.Msg.TripID)
	if err != nil {
		return nil, toConnectError(err)
	}
	unlock := s.syncer.Lock(trip.GroupID)
	err = s.store.DeleteTrip(ctx, trip.GroupID)
	unlock()
	if err != nil {
		slog.Error("DeleteTrip failed", "group_id", trip.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Trip deleted", "trip_id", trip.ID, "group_id", trip.GroupID)
	return connect.NewResponse(&api.DeleteTripResponse{}), nil
}

// ListRemoteGroups lists the remote ledger's groups, marking those the
// caller already has a trip for.
func (s *TripService) ListRemoteGroups(ctx context.Context, req *connect.Request[api.ListRemoteGroupsRequest]) (*connect.Response[api.ListRemoteGroupsResponse], error) {
	userID := middleware.GetUserID(ctx)
	slog.Info("ListRemoteGroups request received", "user_id", userID)

	if s.directory == nil {
		return nil, toConnectError(errNoLedger)
	}
	groups, err := s.directory.ListGroups(ctx)
	if err != nil {
		slog.Error("ListRemoteGroups failed", "error", err)
		return nil, toConnectError(fmt.Errorf("failed to list remote groups: %w", err))
	}
	trips, err := s.store.ListTripsByUser(ctx, userID)
	if err != nil {
		slog.Error("ListRemoteGroups failed to load trips", "error", err)
		return nil, toConnectError(err)
	}
	tracked := make(map[string]bool, len(trips))
	for _, t := range trips {
		tracked[t.GroupID] = true
	}

	resp := &api.ListRemoteGroupsResponse{Groups: make([]api.RemoteGroup, 0, len(groups))}
	for _, g := range groups {
		group := api.RemoteGroup{
			ID:      g.ID,
			Name:    g.Name,
			Members: make([]api.RemoteMember, 0, len(g.Members)),
			Tracked: tracked[g.ID],
		}
		for _, m := range g.Members {
			group.Members = append(group.Members, api.RemoteMember{ID: m.ID, Name: m.Name})
		}
		resp.Groups = append(resp.Groups, group)
	}

	slog.Info("ListRemoteGroups successful", "count", len(resp.Groups))
	return connect.NewResponse(resp), nil
}

// GetTripSummary aggregates the trip's expense rows in the reporting currency.
func (s *TripService) GetTripSummary(ctx context.Context, req *connect.Request[api.GetTripSummaryRequest]) (*connect.Response[api.GetTripSummaryResponse], error) {
	slog.Info("GetTripSummary request received", "trip_id", req.Msg.TripID)

	trip, err := s.ownTrip(ctx, req.Msg.TripID)
	if err != nil {
		return nil, toConnectError(err)
	}
	rows, err := s.store.ListExpenseRows(ctx, trip.GroupID)
	if err != nil {
		slog.Error("GetTripSummary failed", "group_id", trip.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	summary := calculator.Summarize(rows)
	byParticipant := totalsToAPI(summary.ByParticipant)
	ids := make([]string, 0, len(byParticipant))
	for _, t := range byParticipant {
		ids = append(ids, t.Key)
	}
	users, err := s.store.GetUsersByRemoteIDs(ctx, ids)
	if err != nil {
		slog.Error("GetTripSummary failed to load participants", "group_id", trip.GroupID, "error", err)
		return nil, toConnectError(err)
	}
	for i := range byParticipant {
		if u, ok := users[byParticipant[i].Key]; ok {
			byParticipant[i].Name = u.Name
		}
	}

	return connect.NewResponse(&api.GetTripSummaryResponse{
		Currency:       s.reporting,
		Total:          summary.Total,
		ByParticipant:  byParticipant,
		ByCategory:     totalsToAPI(summary.ByCategory),
		ByLocation:     totalsToAPI(summary.ByLocation),
		ByDay:          totalsToAPI(summary.ByDay),
		OriginalTotals: totalsToAPI(summary.OriginalTotals),
	}), nil
}

