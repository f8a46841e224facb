package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/germz92/gearbook/internal/gateway"
	"github.com/germz92/gearbook/internal/liststore"
	"github.com/germz92/gearbook/internal/model"
)

// Test dates sit far in the future so nothing is skipped as past.
var (
	junRange = model.DateRange{Start: model.MakeDay(2030, time.June, 2), End: model.MakeDay(2030, time.June, 5)}
	julRange = model.DateRange{Start: model.MakeDay(2030, time.July, 1), End: model.MakeDay(2030, time.July, 4)}
)

// fakeDocBackend backs a real liststore.Store in memory.
type fakeDocBackend struct {
	saves int
}

func (f *fakeDocBackend) FetchEvent(ctx context.Context, eventID string) (*model.EventDocument, error) {
	return model.NewEventDocument(eventID), nil
}

func (f *fakeDocBackend) SaveEvent(ctx context.Context, doc *model.EventDocument) (int64, error) {
	f.saves++
	return doc.Revision + 1, nil
}

func (f *fakeDocBackend) Checkin(ctx context.Context, req gateway.ReservationRequest) error {
	return nil
}

// fakeReserver scripts per-call failures keyed by gear ID and start date.
type fakeReserver struct {
	checkouts []gateway.ReservationRequest
	checkins  []gateway.ReservationRequest

	checkoutErrs map[string]error
	checkinErrs  map[string]error
}

func reqKey(req gateway.ReservationRequest) string {
	return req.GearID + "|" + req.CheckOutDate.String()
}

func (f *fakeReserver) Checkout(ctx context.Context, req gateway.ReservationRequest) (*gateway.CheckoutResult, error) {
	f.checkouts = append(f.checkouts, req)
	if err, ok := f.checkoutErrs[reqKey(req)]; ok {
		return nil, err
	}
	return &gateway.CheckoutResult{
		ReservationID: "r-" + req.GearID,
		GearID:        req.GearID,
		Label:         "Unit " + req.GearID,
		Quantity:      req.Quantity,
		CheckOutDate:  req.CheckOutDate,
		CheckInDate:   req.CheckInDate,
	}, nil
}

func (f *fakeReserver) Checkin(ctx context.Context, req gateway.ReservationRequest) error {
	f.checkins = append(f.checkins, req)
	if err, ok := f.checkinErrs[reqKey(req)]; ok {
		return err
	}
	return nil
}

// fakeInventory serves a static unit snapshot.
type fakeInventory struct {
	units []model.GearUnit
}

func (f *fakeInventory) FetchInventory(ctx context.Context) ([]model.GearUnit, error) {
	return f.units, nil
}

func newTestListStore(t *testing.T) *liststore.Store {
	t.Helper()
	s := liststore.New(&fakeDocBackend{}, nil)
	if err := s.Load(context.Background(), "event-a"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func addHeld(t *testing.T, s *liststore.Store, gearID, label string, rng model.DateRange) {
	t.Helper()
	err := s.AddReservedItem(context.Background(), "Gear", &gateway.CheckoutResult{
		ReservationID: "r-" + gearID,
		GearID:        gearID,
		Label:         label,
		Quantity:      1,
		CheckOutDate:  rng.Start,
		CheckInDate:   rng.End,
	})
	if err != nil {
		t.Fatalf("AddReservedItem: %v", err)
	}
}

func transportErr(op string) error {
	return &gateway.TransportError{Op: op, Status: 500}
}
