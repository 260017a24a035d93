package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FolioPulse/internal/domain/models"
	"FolioPulse/internal/usecase"
	xlogger "FolioPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type noProvider struct{}

func (noProvider) FetchQuote(context.Context, string, models.Range) (*models.QuoteResult, error) {
	return nil, context.Canceled
}

type noMetrics struct{}

func (noMetrics) RecordFetch(string)                 {}
func (noMetrics) ObserveSession(bool, time.Duration) {}
func (noMetrics) SetHoldings(int)                    {}
func (noMetrics) SetPortfolioValue(float64)          {}

type noStorage struct{}

func (noStorage) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (noStorage) Set(context.Context, string, interface{}) error         { return nil }
func (noStorage) Remove(context.Context, string) error                   { return nil }

type noAuto struct{}

func (noAuto) SetRefreshFunc(func()) {}
func (noAuto) SetEnabled(bool)       {}
func (noAuto) SetInterval(int)       {}
func (noAuto) Enabled() bool         { return false }
func (noAuto) Interval() int         { return 5 }

func TestHubPushesSnapshots(t *testing.T) {
	log := xlogger.Nop()
	store := usecase.NewPortfolioStore()
	ref := usecase.NewRefresher(store, noProvider{}, noMetrics{}, log)
	tr := usecase.NewTracker(store, ref, noProvider{}, noStorage{}, usecase.NewSettings(noStorage{}, log), noAuto{}, noMetrics{}, log)
	defer tr.Close()

	hub := NewHub(tr, log)
	defer hub.Close()
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if msg.Type != "snapshot" || len(msg.Data.Holdings) != 0 {
		t.Fatalf("unexpected initial message %+v", msg)
	}

	for hub.Clients() == 0 {
		time.Sleep(time.Millisecond)
	}
	if _, err := tr.AddHolding(context.Background(), usecase.AddParams{Symbol: "A", Qty: 1, AvgPrice: 4}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if len(msg.Data.Holdings) != 1 || msg.Data.Value != 4 {
		t.Fatalf("unexpected update %+v", msg.Data)
	}
}

func TestHubFirstViewNeverStale(t *testing.T) {
	log := xlogger.Nop()
	store := usecase.NewPortfolioStore()
	ref := usecase.NewRefresher(store, noProvider{}, noMetrics{}, log)
	tr := usecase.NewTracker(store, ref, noProvider{}, noStorage{}, usecase.NewSettings(noStorage{}, log), noAuto{}, noMetrics{}, log)
	defer tr.Close()
	hub := NewHub(tr, log)
	defer hub.Close()
	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	// mutate while the client connects; whatever the interleaving, the
	// last frame it reads must carry the holding
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = tr.AddHolding(context.Background(), usecase.AddParams{Symbol: "A", Qty: 1, AvgPrice: 4})
	}()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	<-done

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("client never saw the added holding: %v", err)
		}
		if len(msg.Data.Holdings) == 1 {
			return
		}
	}
}

func TestBroadcastSkipsOlderSnapshots(t *testing.T) {
	hub := &Hub{log: xlogger.Nop(), clients: map[*client]struct{}{}}
	cl := &client{send: make(chan Message, sendBuffer), version: 5}
	hub.clients[cl] = struct{}{}

	var older, newer usecase.PortfolioView
	older.Version, newer.Version = 3, 6
	hub.broadcast(older)
	hub.broadcast(newer)

	if len(cl.send) != 1 {
		t.Fatalf("expected only the newer snapshot queued, got %d", len(cl.send))
	}
	if msg := <-cl.send; msg.Data.Version != 6 {
		t.Fatalf("unexpected version %d", msg.Data.Version)
	}
}
